package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/devtrack/TradingAgents/pkg/tactl/config"
	"github.com/devtrack/TradingAgents/pkg/tactl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tactl configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigSetValueCommand(),
		newConfigPrefsCommand(),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with defaults and any overrides given as flags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if err := config.Save(path, rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, rt.cfg)
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			// edit the file as written, without env and flag overrides
			path := rt.configPathValue()
			cfg, err := config.LoadOrDefault(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return config.Save(path, cfg)
		},
	}
}

func newConfigPrefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show saved session preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			spec, err := rt.OutputSpec()
			if err != nil {
				return err
			}
			prefs := config.LoadPreferences(config.DefaultPreferencesPath())
			return output.Write(rt.Writer(), spec, prefs, func(w io.Writer) error {
				return output.WriteKeyValueTable(w, []output.Row{
					{Field: "llm-provider", Value: prefs.LLMProvider},
					{Field: "deep-think-llm", Value: prefs.DeepThinkLLM},
					{Field: "quick-think-llm", Value: prefs.QuickThinkLLM},
					{Field: "backend-url", Value: prefs.BackendURL},
				})
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Set a session preference; an empty value unsets it",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.PreferenceKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPreferencesPath()
			prefs := config.LoadPreferences(path)
			if err := prefs.Set(args[0], args[1]); err != nil {
				return err
			}
			return config.SavePreferences(path, prefs)
		},
	})
	return cmd
}
