package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version  string   `yaml:"version"`
	Auth     Auth     `yaml:"auth,omitempty"`
	API      API      `yaml:"api,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

type Auth struct {
	BaseURL string `yaml:"base-url,omitempty"`
	// Issuer enables OpenID discovery of the device, token and revocation endpoints.
	Issuer          string `yaml:"issuer,omitempty"`
	ClientID        string `yaml:"client-id,omitempty"`
	Scope           string `yaml:"scope,omitempty"`
	CAFile          string `yaml:"ca-file,omitempty"`
	InsecureSkipTLS bool   `yaml:"insecure-skip-tls-verify,omitempty"`
	NoBrowser       bool   `yaml:"no-browser,omitempty"`
	TokenStorage    string `yaml:"token-storage,omitempty"`
	TokenFile       string `yaml:"token-file,omitempty"`
}

type API struct {
	Server  string `yaml:"server,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	LogLevel     string `yaml:"log-level,omitempty"`
	LogFile      string `yaml:"log-file,omitempty"`
	MetricsFile  string `yaml:"metrics-file,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Auth: Auth{
			BaseURL:      auth.DefaultBaseURL,
			ClientID:     auth.DefaultClientID,
			Scope:        auth.DefaultScope,
			TokenStorage: string(auth.StorageAuto),
		},
		API: API{
			Timeout: "30s",
		},
		Settings: Settings{
			OutputFormat: "table",
		},
	}
}

// Load reads path on top of DefaultConfig so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault treats a missing file as an empty one.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported config version %q", c.Version)
	}
	if c.Auth.BaseURL == "" && c.Auth.Issuer == "" {
		return errors.New("auth base-url or issuer is required")
	}
	for name, raw := range map[string]string{
		"auth.base-url": c.Auth.BaseURL,
		"auth.issuer":   c.Auth.Issuer,
		"api.server":    c.API.Server,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := auth.ParseStorageMode(c.Auth.TokenStorage); err != nil {
		return err
	}
	if _, err := c.API.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (a API) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid api timeout %q", a.Timeout)
	}
	return d, nil
}

// TokenPath is where the file token backend lives.
func (a Auth) TokenPath() string {
	if a.TokenFile != "" {
		return a.TokenFile
	}
	return DefaultTokenPath()
}

// ClientConfig converts the auth section for auth.NewClient.
func (a Auth) ClientConfig() auth.Config {
	return auth.Config{
		BaseURL:  a.BaseURL,
		ClientID: a.ClientID,
		Scope:    a.Scope,
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// Set assigns a value by its dotted key (see the Key constants), as used by
// "tactl config set".
func (c *Config) Set(key, value string) error {
	switch key {
	case KeyInsecure, KeyNoBrowser:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %q", key, value)
		}
		if key == KeyInsecure {
			c.Auth.InsecureSkipTLS = b
		} else {
			c.Auth.NoBrowser = b
		}
		return nil
	}
	field, ok := c.stringFields()[key]
	if !ok {
		return fmt.Errorf("unsupported key: %s", key)
	}
	*field = value
	return nil
}

func (c *Config) stringFields() map[string]*string {
	return map[string]*string{
		KeyBaseURL:      &c.Auth.BaseURL,
		KeyIssuer:       &c.Auth.Issuer,
		KeyClientID:     &c.Auth.ClientID,
		KeyScope:        &c.Auth.Scope,
		KeyCAFile:       &c.Auth.CAFile,
		KeyTokenStorage: &c.Auth.TokenStorage,
		KeyTokenFile:    &c.Auth.TokenFile,
		KeyServer:       &c.API.Server,
		KeyTimeout:      &c.API.Timeout,
		KeyOutput:       &c.Settings.OutputFormat,
		KeyLogLevel:     &c.Settings.LogLevel,
		KeyLogFile:      &c.Settings.LogFile,
		KeyMetricsFile:  &c.Settings.MetricsFile,
	}
}
