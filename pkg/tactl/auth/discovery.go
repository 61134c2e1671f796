package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Endpoints are the three URLs the device flow talks to.
type Endpoints struct {
	DeviceCode string
	Token      string
	Revoke     string
}

// EndpointsFromBase derives the fixed sub-paths under a base URL.
func EndpointsFromBase(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		DeviceCode: base + "/device/code",
		Token:      base + "/token",
		Revoke:     base + "/revoke",
	}
}

// DiscoverEndpoints reads the issuer's OpenID configuration. Issuers that
// do not advertise a device or revocation endpoint get the conventional
// sub-paths.
func DiscoverEndpoints(ctx context.Context, client *http.Client, issuer string) (Endpoints, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	var claims struct {
		DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		RevocationEndpoint          string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return Endpoints{}, fmt.Errorf("failed to read provider metadata: %w", err)
	}
	endpoints := EndpointsFromBase(issuer)
	if tokenURL := provider.Endpoint().TokenURL; tokenURL != "" {
		endpoints.Token = tokenURL
	}
	if claims.DeviceAuthorizationEndpoint != "" {
		endpoints.DeviceCode = claims.DeviceAuthorizationEndpoint
	}
	if claims.RevocationEndpoint != "" {
		endpoints.Revoke = claims.RevocationEndpoint
	}
	return endpoints, nil
}
