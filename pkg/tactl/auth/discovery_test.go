package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiscoveryServer(t *testing.T, extra map[string]string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		doc := map[string]string{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/oauth/token",
			"jwks_uri":               server.URL + "/keys",
		}
		for k, v := range extra {
			doc[k] = server.URL + v
		}
		writeJSON(w, http.StatusOK, doc)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDiscoverEndpoints(t *testing.T) {
	server := newDiscoveryServer(t, map[string]string{
		"device_authorization_endpoint": "/oauth/device",
		"revocation_endpoint":           "/oauth/revoke",
	})

	endpoints, err := DiscoverEndpoints(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, Endpoints{
		DeviceCode: server.URL + "/oauth/device",
		Token:      server.URL + "/oauth/token",
		Revoke:     server.URL + "/oauth/revoke",
	}, endpoints)
}

func TestDiscoverEndpoints_FallsBackToConventionalPaths(t *testing.T) {
	server := newDiscoveryServer(t, nil)

	endpoints, err := DiscoverEndpoints(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/device/code", endpoints.DeviceCode)
	assert.Equal(t, server.URL+"/oauth/token", endpoints.Token)
	assert.Equal(t, server.URL+"/revoke", endpoints.Revoke)
}

func TestDiscoverEndpoints_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := DiscoverEndpoints(context.Background(), server.Client(), server.URL)
	require.Error(t, err)
}

func TestEndpointsFromBase(t *testing.T) {
	assert.Equal(t, Endpoints{
		DeviceCode: "https://auth.example.com/v1/auth/device/code",
		Token:      "https://auth.example.com/v1/auth/token",
		Revoke:     "https://auth.example.com/v1/auth/revoke",
	}, EndpointsFromBase("https://auth.example.com/v1/auth/"))
}
