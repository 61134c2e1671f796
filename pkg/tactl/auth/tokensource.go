package auth

import (
	"context"

	"golang.org/x/oauth2"
)

type sessionSource struct {
	ctx    context.Context
	client *Client
}

func (s sessionSource) Token() (*oauth2.Token, error) {
	token, err := s.client.GetSession(s.ctx)
	if err != nil {
		return nil, err
	}
	return token.OAuth2(), nil
}

// TokenSource adapts GetSession for oauth2.NewClient and friends. The
// returned source caches the token until it is within the skew of expiry and
// serializes calls into GetSession.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, sessionSource{ctx: ctx, client: c}, c.skew)
}
