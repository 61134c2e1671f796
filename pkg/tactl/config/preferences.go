package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Preferences are the session overrides remembered between analysis runs.
type Preferences struct {
	LLMProvider   string `toml:"llm_provider,omitempty" json:"llmProvider,omitempty" yaml:"llm-provider,omitempty"`
	DeepThinkLLM  string `toml:"deep_think_llm,omitempty" json:"deepThinkLLM,omitempty" yaml:"deep-think-llm,omitempty"`
	QuickThinkLLM string `toml:"quick_think_llm,omitempty" json:"quickThinkLLM,omitempty" yaml:"quick-think-llm,omitempty"`
	BackendURL    string `toml:"backend_url,omitempty" json:"backendURL,omitempty" yaml:"backend-url,omitempty"`
}

var preferenceKeys = map[string]func(*Preferences) *string{
	"llm-provider":    func(p *Preferences) *string { return &p.LLMProvider },
	"deep-think-llm":  func(p *Preferences) *string { return &p.DeepThinkLLM },
	"quick-think-llm": func(p *Preferences) *string { return &p.QuickThinkLLM },
	"backend-url":     func(p *Preferences) *string { return &p.BackendURL },
}

func PreferenceKeys() []string {
	keys := make([]string, 0, len(preferenceKeys))
	for k := range preferenceKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a preference by its CLI key. An empty value unsets it.
func (p *Preferences) Set(key, value string) error {
	field, ok := preferenceKeys[key]
	if !ok {
		return fmt.Errorf("unknown preference %q", key)
	}
	if key == "backend-url" && value != "" {
		if err := validateURL(value); err != nil {
			return err
		}
	}
	*field(p) = value
	return nil
}

// LoadPreferences never fails: a missing or unreadable file yields empty
// preferences, which simply means nothing is overridden.
func LoadPreferences(path string) Preferences {
	var prefs Preferences
	if _, err := toml.DecodeFile(path, &prefs); err != nil {
		return Preferences{}
	}
	return prefs
}

func SavePreferences(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open preferences file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(prefs); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return f.Close()
}
