package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTemplate Format = "template"
)

// Spec is a parsed --output value. Template is set only for FormatTemplate,
// written as "template=<go template>".
type Spec struct {
	Format   Format
	Template string
}

func ParseSpec(raw string) (Spec, error) {
	if raw == "" {
		return Spec{Format: FormatTable}, nil
	}
	if name, tmpl, ok := strings.Cut(raw, "="); ok {
		if Format(name) != FormatTemplate {
			return Spec{}, fmt.Errorf("unknown output format: %s", name)
		}
		if tmpl == "" {
			return Spec{}, fmt.Errorf("template output requires a template, e.g. template='{{.status}}'")
		}
		return Spec{Format: FormatTemplate, Template: tmpl}, nil
	}
	switch Format(raw) {
	case FormatTable, FormatJSON, FormatYAML:
		return Spec{Format: Format(raw)}, nil
	case FormatTemplate:
		return Spec{}, fmt.Errorf("template output requires a template, e.g. template='{{.status}}'")
	default:
		return Spec{}, fmt.Errorf("unknown output format: %s", raw)
	}
}

// Write renders obj in the requested structured format. FormatTable is
// delegated to table, which callers supply per object type.
func Write(w io.Writer, spec Spec, obj any, table func(io.Writer) error) error {
	switch spec.Format {
	case FormatTable:
		if table == nil {
			return WriteObject(w, FormatYAML, obj)
		}
		return table(w)
	case FormatTemplate:
		return WriteTemplate(w, spec.Template, obj)
	default:
		return WriteObject(w, spec.Format, obj)
	}
}

func WriteObject(w io.Writer, format Format, obj any) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case FormatTable:
		return fmt.Errorf("table format requires a specific formatter")
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteTemplate executes tmpl against the JSON form of obj, so templates use
// the same field names as -o json.
func WriteTemplate(w io.Writer, tmpl string, obj any) error {
	t, err := template.New("output").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("invalid output template: %w", err)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render output template: %w", err)
	}
	if !strings.HasSuffix(tmpl, "\n") {
		_, err = fmt.Fprintln(w)
	}
	return err
}
