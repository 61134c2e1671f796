package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

// steppingClock advances itself by the requested duration whenever a timer is
// created, so poll waits complete instantly while still being recorded.
type steppingClock struct {
	*clocktesting.FakeClock

	mu     sync.Mutex
	delays []time.Duration
}

func newSteppingClock() *steppingClock {
	return &steppingClock{FakeClock: clocktesting.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))}
}

func (s *steppingClock) NewTimer(d time.Duration) clock.Timer {
	timer := s.FakeClock.NewTimer(d)
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	s.Step(d)
	return timer
}

func (s *steppingClock) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newFileStore(t *testing.T) (*TokenStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth_tokens.json")
	return NewTokenStore(nil, NewFileBackend(path)), path
}

func newTestClient(t *testing.T, baseURL string, store Store, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithBrowserOpener(func(string) error { return nil }),
		WithPromptWriter(io.Discard),
	}
	return NewClient(Config{BaseURL: baseURL, ClientID: "tactl-test", Scope: "openid offline_access"}, store, append(base, opts...)...)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func oauthError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}

func tokenPayload(access string) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  access,
		"refresh_token": "refresh-" + access,
		"token_type":    "bearer",
		"expires_in":    3600,
	}
}
