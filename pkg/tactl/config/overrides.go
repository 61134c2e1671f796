package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys name overridable settings; they mirror the YAML paths.
const (
	KeyBaseURL      = "auth.base-url"
	KeyIssuer       = "auth.issuer"
	KeyClientID     = "auth.client-id"
	KeyScope        = "auth.scope"
	KeyCAFile       = "auth.ca-file"
	KeyInsecure     = "auth.insecure-skip-tls-verify"
	KeyNoBrowser    = "auth.no-browser"
	KeyTokenStorage = "auth.token-storage"
	KeyTokenFile    = "auth.token-file"
	KeyServer       = "api.server"
	KeyTimeout      = "api.timeout"
	KeyOutput       = "settings.output-format"
	KeyLogLevel     = "settings.log-level"
	KeyLogFile      = "settings.log-file"
	KeyMetricsFile  = "settings.metrics-file"
)

var envBindings = map[string][]string{
	KeyBaseURL:      {"TRADINGAGENTS_AUTH_BASE_URL"},
	KeyClientID:     {"TRADINGAGENTS_CLIENT_ID"},
	KeyScope:        {"TRADINGAGENTS_SCOPE"},
	KeyIssuer:       {"TACTL_ISSUER"},
	KeyCAFile:       {"TACTL_CA_FILE"},
	KeyInsecure:     {"TACTL_INSECURE_SKIP_TLS_VERIFY"},
	KeyNoBrowser:    {"TACTL_NO_BROWSER"},
	KeyTokenStorage: {"TACTL_TOKEN_STORAGE"},
	KeyTokenFile:    {"TACTL_TOKEN_FILE"},
	KeyServer:       {"TACTL_SERVER", "TRADINGAGENTS_BACKEND_URL"},
	KeyTimeout:      {"TACTL_TIMEOUT"},
	KeyOutput:       {"TACTL_OUTPUT"},
	KeyLogLevel:     {"TACTL_LOG_LEVEL"},
	KeyLogFile:      {"TACTL_LOG_FILE"},
	KeyMetricsFile:  {"TACTL_METRICS_FILE"},
}

// ApplyOverrides layers environment variables and explicitly set flags over
// cfg. flagKeys maps a config key to the flag that overrides it; flags left
// at their default never override the file.
func ApplyOverrides(cfg *Config, flags *pflag.FlagSet, flagKeys map[string]string) error {
	v := viper.New()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	if flags != nil {
		for key, name := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	for key, dst := range cfg.stringFields() {
		if v.IsSet(key) {
			if value := v.GetString(key); value != "" {
				*dst = value
			}
		}
	}
	if v.IsSet(KeyInsecure) {
		cfg.Auth.InsecureSkipTLS = v.GetBool(KeyInsecure)
	}
	if v.IsSet(KeyNoBrowser) {
		cfg.Auth.NoBrowser = v.GetBool(KeyNoBrowser)
	}
	return nil
}
