package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtrack/TradingAgents/pkg/metrics"
	"github.com/devtrack/TradingAgents/pkg/system"
	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
	"github.com/devtrack/TradingAgents/pkg/tactl/config"
	"github.com/devtrack/TradingAgents/pkg/tactl/output"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	// ErrWriter receives log lines and the device login prompt.
	ErrWriter io.Writer
	// BrowserOpener replaces the system browser launcher.
	BrowserOpener auth.BrowserOpener
}

type runtimeState struct {
	configPath     string
	cfg            *config.Config
	nonInteractive bool
	verbose        bool
	writer         io.Writer
	errWriter      io.Writer
	browser        auth.BrowserOpener
	log            *zap.SugaredLogger
	closeLog       func()
}

type runtimeKey struct{}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	config.KeyBaseURL:      "base-url",
	config.KeyIssuer:       "issuer",
	config.KeyClientID:     "client-id",
	config.KeyScope:        "scope",
	config.KeyCAFile:       "ca-file",
	config.KeyInsecure:     "insecure-skip-tls-verify",
	config.KeyTokenStorage: "token-storage",
	config.KeyTokenFile:    "token-file",
	config.KeyServer:       "server",
	config.KeyOutput:       "output",
	config.KeyLogLevel:     "log-level",
	config.KeyLogFile:      "log-file",
	config.KeyMetricsFile:  "metrics-file",
}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrWriter,
		browser:    cfg.BrowserOpener,
	}

	root := &cobra.Command{
		Use:           "tactl",
		Short:         "TradingAgents CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if isConfigInit(cmd) {
				// init writes the file, it must not require one
				def := config.DefaultConfig()
				rt.cfg = &def
			} else {
				loaded, err := config.LoadOrDefault(rt.configPathValue())
				if err != nil {
					return err
				}
				rt.cfg = loaded
			}
			if err := config.ApplyOverrides(rt.cfg, cmd.Flags(), flagKeys); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			log, closeLog, err := system.NewLogger(system.LogOptions{
				Level:   rt.cfg.Settings.LogLevel,
				Verbose: rt.verbose,
				File:    rt.cfg.Settings.LogFile,
				Console: rt.ErrWriter(),
			})
			if err != nil {
				return err
			}
			rt.log = log
			rt.closeLog = closeLog
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	flags.StringP("output", "o", "", "Output format: table, json, yaml or template=<go-template>")
	flags.String("token-storage", "", "Token storage backend: auto, keychain or file")
	flags.String("token-file", "", "Path of the file token backend")
	flags.BoolVar(&rt.nonInteractive, "non-interactive", false, "Fail instead of starting a device login")
	flags.BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")
	flags.String("log-level", "", "Console log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after each command")
	flags.String("base-url", "", "Authorization server base URL")
	flags.String("issuer", "", "OpenID issuer used to discover the authorization endpoints")
	flags.String("client-id", "", "OAuth client ID")
	flags.String("scope", "", "OAuth scopes to request")
	flags.String("server", "", "TradingAgents API server")
	flags.String("ca-file", "", "CA bundle for the authorization and API servers")
	flags.Bool("insecure-skip-tls-verify", false, "Skip TLS certificate verification")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewAuthCommand(),
		NewAPICommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

// Execute runs the command tree under ctx, then exports metrics and closes
// the log file whether or not the command succeeded.
func Execute(ctx context.Context, cfg Config, args []string) error {
	root := NewRootCommand(cfg)
	rt, err := getRuntime(root)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	err = root.ExecuteContext(context.WithValue(ctx, runtimeKey{}, rt))
	if finishErr := rt.finish(); err == nil {
		err = finishErr
	}
	return err
}

func isConfigInit(cmd *cobra.Command) bool {
	return cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config"
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) OutputSpec() (output.Spec, error) {
	if rt.cfg == nil {
		return output.ParseSpec("")
	}
	return output.ParseSpec(rt.cfg.Settings.OutputFormat)
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

// finish exports metrics and releases the log file.
func (rt *runtimeState) finish() error {
	var err error
	if rt.cfg != nil {
		err = metrics.WriteTextfile(rt.cfg.Settings.MetricsFile)
	}
	if rt.closeLog != nil {
		rt.closeLog()
		rt.closeLog = nil
	}
	return err
}
