/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
	"github.com/devtrack/TradingAgents/pkg/tactl/config"
)

type testEnv struct {
	dir        string
	configPath string
	tokenPath  string
	opened     []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		tokenPath:  filepath.Join(dir, "auth_tokens.json"),
	}
}

// run executes tactl with a file-backed token store and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	full := append([]string{"--token-storage", "file", "--token-file", e.tokenPath}, args...)
	err := Execute(context.Background(), Config{
		ConfigPath:   e.configPath,
		OutputWriter: stdout,
		ErrWriter:    stderr,
		BrowserOpener: func(url string) error {
			e.opened = append(e.opened, url)
			return nil
		},
	}, full)
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) saveToken(t *testing.T, token auth.Token) {
	t.Helper()
	store := auth.NewTokenStore(nil, auth.NewFileBackend(e.tokenPath))
	require.NoError(t, store.Save(token))
}

type fakeAuthServer struct {
	*httptest.Server
	tokenCalls  int32
	revokeCalls int32
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	s := &fakeAuthServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/device/code":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"device_code":      "device-secret",
				"user_code":        "ABCD-EFGH",
				"verification_uri": "https://auth.example.com/device",
				"expires_in":       600,
				"interval":         0,
			})
		case "/token":
			if atomic.AddInt32(&s.tokenCalls, 1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"authorization_pending"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "cli-access",
				"refresh_token": "cli-refresh",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		case "/revoke":
			atomic.AddInt32(&s.revokeCalls, 1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func TestNewRootCommand_Structure(t *testing.T) {
	root := NewRootCommand(DefaultConfig())
	assert.Equal(t, "tactl", root.Use)

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"auth", "api", "config", "completion", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	authCmd, _, err := root.Find([]string{"auth"})
	require.NoError(t, err)
	authNames := map[string]bool{}
	for _, sub := range authCmd.Commands() {
		authNames[sub.Name()] = true
	}
	for _, want := range []string{"login", "status", "logout", "token", "header"} {
		assert.True(t, authNames[want], "missing auth command %s", want)
	}
}

func TestCompletionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bash completion")

	_, _, err = env.run(t, "completion", "tcsh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported shell")
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tactl ")

	out, _, err = env.run(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "platform")

	_, _, err = env.run(t, "version", "-o", "xml")
	require.Error(t, err)
}

func TestConfigInitSetView(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "config", "init", "--base-url", "https://auth.example.com/v1/auth")
	require.NoError(t, err)
	assert.Contains(t, out, env.configPath)

	_, _, err = env.run(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = env.run(t, "config", "set", config.KeyServer, "https://api.example.com")
	require.NoError(t, err)

	_, _, err = env.run(t, "config", "set", "settings.color", "always")
	require.Error(t, err)

	cfg, err := config.Load(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/v1/auth", cfg.Auth.BaseURL)
	assert.Equal(t, "https://api.example.com", cfg.API.Server)

	out, _, err = env.run(t, "config", "view")
	require.NoError(t, err)
	assert.Contains(t, out, "base-url: https://auth.example.com/v1/auth")
	assert.Contains(t, out, "server: https://api.example.com")
}

func TestConfigInvalidOverrideFails(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "auth", "status", "--base-url", "ftp://auth.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.base-url")
}

func TestConfigPrefs(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "config", "prefs", "set", "llm-provider", "anthropic")
	require.NoError(t, err)
	_, _, err = env.run(t, "config", "prefs", "set", "backend-url", "not a url")
	require.Error(t, err)

	out, _, err := env.run(t, "config", "prefs", "-o", "json")
	require.NoError(t, err)
	var prefs map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	assert.Equal(t, "anthropic", prefs["llmProvider"])

	_, err = os.Stat(config.DefaultPreferencesPath())
	require.NoError(t, err)
}

func TestAuthStatus_NotAuthenticated(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not-authenticated")
	assert.Contains(t, out, "file")
}

func TestAuthStatus_StoredToken(t *testing.T) {
	env := newTestEnv(t)
	env.saveToken(t, auth.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		Scope:        "openid",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	out, _, err := env.run(t, "auth", "status", "-o", "json")
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "valid", status["state"])
	assert.Equal(t, true, status["refreshable"])
	assert.Equal(t, "openid", status["scope"])

	out, _, err = env.run(t, "auth", "status", "-o", "template={{ .state | upper }}")
	require.NoError(t, err)
	assert.Equal(t, "VALID\n", out)
}

func TestAuthStatus_SkipsIssuerDiscovery(t *testing.T) {
	env := newTestEnv(t)
	var hits int32
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer issuer.Close()

	out, _, err := env.run(t, "--issuer", issuer.URL, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not-authenticated")
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestAuthStatus_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.saveToken(t, auth.Token{AccessToken: "access", TokenType: "bearer", ExpiresAt: time.Now().Add(10 * time.Second)})

	out, _, err := env.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "expired")
}

func TestAuthLoginTokenHeaderLogout(t *testing.T) {
	env := newTestEnv(t)
	server := newFakeAuthServer(t)

	out, errOut, err := env.run(t, "--base-url", server.URL, "auth", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Authenticated")
	assert.Contains(t, errOut, "ABCD-EFGH")
	assert.NotContains(t, errOut, "device-secret")
	assert.Equal(t, []string{"https://auth.example.com/device"}, env.opened)

	out, _, err = env.run(t, "--base-url", server.URL, "auth", "token")
	require.NoError(t, err)
	assert.Equal(t, "cli-access\n", out)

	out, _, err = env.run(t, "--base-url", server.URL, "auth", "header")
	require.NoError(t, err)
	assert.Equal(t, "Authorization: Bearer cli-access\n", out)

	out, _, err = env.run(t, "--base-url", server.URL, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.revokeCalls))
	_, err = os.Stat(env.tokenPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAuthLogin_NoBrowser(t *testing.T) {
	env := newTestEnv(t)
	server := newFakeAuthServer(t)

	_, _, err := env.run(t, "--base-url", server.URL, "auth", "login", "--no-browser")
	require.NoError(t, err)
	assert.Empty(t, env.opened)
}

func TestAuthToken_NonInteractive(t *testing.T) {
	env := newTestEnv(t)
	server := newFakeAuthServer(t)

	_, _, err := env.run(t, "--base-url", server.URL, "--non-interactive", "auth", "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrLoginRequired)

	_, _, err = env.run(t, "--base-url", server.URL, "--non-interactive", "auth", "login")
	require.Error(t, err)
}

func TestAPIGet(t *testing.T) {
	env := newTestEnv(t)
	env.saveToken(t, auth.Token{AccessToken: "api-access", TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)})

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer api-access", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/analyses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"ticker":"NVDA","decision":"BUY"}]}`))
	}))
	defer api.Close()

	out, _, err := env.run(t, "--server", api.URL+"/v1", "api", "get", "/analyses")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"ticker":"NVDA","decision":"BUY"}]}`, out)

	out, _, err = env.run(t, "--server", api.URL+"/v1", "-o", "yaml", "api", "get", "/analyses")
	require.NoError(t, err)
	assert.Contains(t, out, "ticker: NVDA")
}

func TestAPIGet_RequiresServer(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "api", "get", "/analyses")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API server configured")
}

func TestMetricsFileWrittenAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	metricsPath := filepath.Join(env.dir, "tactl.prom")
	env.saveToken(t, auth.Token{AccessToken: "access", TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)})

	_, _, err := env.run(t, "--metrics-file", metricsPath, "api", "get", "/analyses")
	require.Error(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tactl_")
}

func TestOutputSpecFromConfig(t *testing.T) {
	rt := &runtimeState{cfg: &config.Config{Settings: config.Settings{OutputFormat: "yaml"}}}
	spec, err := rt.OutputSpec()
	require.NoError(t, err)
	assert.Equal(t, "yaml", string(spec.Format))

	rt = &runtimeState{}
	spec, err = rt.OutputSpec()
	require.NoError(t, err)
	assert.Equal(t, "table", string(spec.Format))
}
