package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Row is one FIELD/VALUE line of a key-value table.
type Row struct {
	Field string
	Value string
}

func WriteKeyValueTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, r := range rows {
		value := r.Value
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Field, value)
	}
	return tw.Flush()
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
