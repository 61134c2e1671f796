package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "missing server",
			opts:    []Option{},
			wantErr: true,
		},
		{
			name:    "relative server",
			opts:    []Option{WithServer("api.example.com")},
			wantErr: true,
		},
		{
			name: "valid config",
			opts: []Option{
				WithServer("https://example.com"),
				WithStaticToken("test-token"),
			},
		},
		{
			name: "with custom user agent",
			opts: []Option{
				WithServer("https://example.com"),
				WithUserAgent("test-agent"),
			},
		},
		{
			name: "invalid timeout",
			opts: []Option{
				WithServer("https://example.com"),
				WithTimeout(0),
			},
			wantErr: true,
		},
		{
			name: "missing CA file",
			opts: []Option{
				WithServer("https://example.com"),
				WithTLSConfig("/nonexistent/ca.pem", false),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, client)
			} else {
				require.NoError(t, err)
				require.NotNil(t, client)
			}
		})
	}
}

func TestGetRaw_SendsBearerAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "/v1/analyses", r.URL.Path)
		assert.Equal(t, "ticker=NVDA", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"ticker":"NVDA"}]}`))
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL+"/v1"), WithStaticToken("test-token"), WithUserAgent("test-agent"))
	require.NoError(t, err)

	body, err := c.GetRaw(context.Background(), "/analyses?ticker=NVDA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"ticker":"NVDA"}]}`, string(body))

	var out struct {
		Items []struct {
			Ticker string `json:"ticker"`
		} `json:"items"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/analyses?ticker=NVDA", &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "NVDA", out.Items[0].Ticker)
}

type countingSource struct {
	calls int
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	s.calls++
	return &oauth2.Token{AccessToken: "from-source", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestGetRaw_UsesTokenSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer from-source", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	source := &countingSource{}
	c, err := New(WithServer(server.URL), WithTokenSource(source))
	require.NoError(t, err)

	_, err = c.GetRaw(context.Background(), "/health")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestGetRaw_TokenSourceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	sourceErr := errors.New("not logged in")
	c, err := New(WithServer(server.URL), WithTokenSource(errSource{err: sourceErr}))
	require.NoError(t, err)

	_, err = c.GetRaw(context.Background(), "/health")
	require.Error(t, err)
	assert.ErrorIs(t, err, sourceErr)
}

type errSource struct{ err error }

func (s errSource) Token() (*oauth2.Token, error) { return nil, s.err }

func TestGetRaw_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "string error", status: http.StatusForbidden, body: `{"error":"forbidden"}`, wantMsg: "request failed (403): forbidden"},
		{name: "object error", status: http.StatusBadRequest, body: `{"error":{"message":"bad ticker"}}`, wantMsg: "request failed (400): bad ticker"},
		{name: "detail", status: http.StatusUnprocessableEntity, body: `{"detail":"missing date"}`, wantMsg: "request failed (422): missing date"},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down", wantMsg: "request failed (502): upstream down"},
		{name: "empty body", status: http.StatusNotFound, body: "", wantMsg: "request failed (404): 404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := New(WithServer(server.URL))
			require.NoError(t, err)

			_, err = c.GetRaw(context.Background(), "/anything")
			require.Error(t, err)
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestGetRaw_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)
	_, err = c.GetRaw(context.Background(), "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not JSON")
}

func TestGetRaw_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)
	body, err := c.GetRaw(context.Background(), "/ping")
	require.NoError(t, err)
	assert.Equal(t, "null", string(body))
}
