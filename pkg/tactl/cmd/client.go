package cmd

import (
	"context"
	"errors"

	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
	"github.com/devtrack/TradingAgents/pkg/tactl/client"
	"github.com/devtrack/TradingAgents/pkg/version"
)

// buildAuthClient is the one place the CLI assembles an auth.Client from the
// effective configuration.
func buildAuthClient(ctx context.Context, rt *runtimeState) (*auth.Client, *auth.TokenStore, error) {
	if rt.cfg == nil {
		return nil, nil, errors.New("config not loaded")
	}
	authCfg := rt.cfg.Auth
	store, err := openTokenStore(rt)
	if err != nil {
		return nil, nil, err
	}
	httpClient, err := auth.NewHTTPClient(authCfg.CAFile, authCfg.InsecureSkipTLS, auth.DefaultRequestTimeout)
	if err != nil {
		return nil, nil, err
	}

	clientCfg := authCfg.ClientConfig()
	if authCfg.Issuer != "" {
		endpoints, err := auth.DiscoverEndpoints(ctx, httpClient, authCfg.Issuer)
		if err != nil {
			return nil, nil, err
		}
		clientCfg.Endpoints = &endpoints
	}

	opts := []auth.Option{
		auth.WithHTTPClient(httpClient),
		auth.WithLogger(rt.Logger()),
		auth.WithPromptWriter(rt.ErrWriter()),
		auth.WithOpenBrowser(!authCfg.NoBrowser && !rt.nonInteractive),
		auth.WithInteractiveLogin(!rt.nonInteractive),
	}
	if rt.browser != nil {
		opts = append(opts, auth.WithBrowserOpener(rt.browser))
	}
	return auth.NewClient(clientCfg, store, opts...), store, nil
}

// openTokenStore opens only the configured token storage; it never touches
// the network.
func openTokenStore(rt *runtimeState) (*auth.TokenStore, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	mode, err := auth.ParseStorageMode(rt.cfg.Auth.TokenStorage)
	if err != nil {
		return nil, err
	}
	return auth.OpenTokenStore(mode, rt.cfg.Auth.TokenPath(), rt.Logger())
}

func buildAPIClient(ctx context.Context, rt *runtimeState, authClient *auth.Client) (*client.Client, error) {
	if rt.cfg.API.Server == "" {
		return nil, errors.New("no API server configured (set api.server or pass --server)")
	}
	timeout, err := rt.cfg.API.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return client.New(
		client.WithServer(rt.cfg.API.Server),
		client.WithTimeout(timeout),
		client.WithTLSConfig(rt.cfg.Auth.CAFile, rt.cfg.Auth.InsecureSkipTLS),
		client.WithTokenSource(authClient.TokenSource(ctx)),
		client.WithUserAgent(version.UserAgent()),
	)
}
