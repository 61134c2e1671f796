package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/devtrack/TradingAgents/pkg/tactl/output"
)

func NewAPICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call the TradingAgents API with the current session",
	}
	cmd.AddCommand(newAPIGetCommand())
	return cmd
}

func newAPIGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Send an authenticated GET request and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			spec, err := rt.OutputSpec()
			if err != nil {
				return err
			}
			authClient, _, err := buildAuthClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			apiClient, err := buildAPIClient(cmd.Context(), rt, authClient)
			if err != nil {
				return err
			}
			raw, err := apiClient.GetRaw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var body any
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			return output.Write(rt.Writer(), spec, body, func(w io.Writer) error {
				// tables have no generic shape for arbitrary JSON
				return output.WriteObject(w, output.FormatJSON, body)
			})
		},
	}
}
