package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	// DefaultSkew is how early a token is treated as expired.
	DefaultSkew = 30 * time.Second

	defaultGrantLifetime = 600 * time.Second
	defaultPollInterval  = 5 * time.Second
	defaultTokenType     = "bearer"
)

// Grant is an issued device authorization request. DeviceCode is secret and
// must never be shown to the user or logged.
type Grant struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration
}

func (g Grant) ExpiredAt(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// BrowserURI prefers the URI that already embeds the user code.
func (g Grant) BrowserURI() string {
	if g.VerificationURIComplete != "" {
		return g.VerificationURIComplete
	}
	return g.VerificationURI
}

// Token is an issued credential bundle. It is a value: refreshing yields a new
// Token rather than modifying an existing one. Empty RefreshToken and Scope
// mean the server did not provide them.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

func (t Token) IsExpired(skew time.Duration) bool {
	return t.ExpiredAt(time.Now(), skew)
}

// ExpiredAt reports whether now+skew has reached the expiry instant.
func (t Token) ExpiredAt(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(t.ExpiresAt)
}

func (t Token) Refreshable() bool {
	return t.RefreshToken != ""
}

// AuthorizationHeader renders the value for an HTTP Authorization header,
// e.g. "Bearer abc".
func (t Token) AuthorizationHeader() string {
	return capitalize(t.TokenType) + " " + t.AccessToken
}

func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    capitalize(t.TokenType),
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// Identity holds the user-facing claims of a JWT access token.
type Identity struct {
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
}

// Display returns the most human-friendly identifier available.
func (i Identity) Display() string {
	switch {
	case i.Email != "":
		return i.Email
	case i.Username != "":
		return i.Username
	default:
		return i.Subject
	}
}

// Identity decodes the access token without verifying it. Opaque tokens
// return false.
func (t Token) Identity() (Identity, bool) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(t.AccessToken, claims); err != nil {
		return Identity{}, false
	}
	id := Identity{}
	if v, ok := claims["sub"].(string); ok {
		id.Subject = v
	}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := claims["preferred_username"].(string); ok {
		id.Username = v
	}
	return id, id.Display() != ""
}

// ParseGrant builds a Grant from a device authorization response body.
// ExpiresAt is computed against now, so it inherits the local clock.
func ParseGrant(body []byte, now time.Time) (Grant, error) {
	if !gjson.ValidBytes(body) {
		return Grant{}, newError(ErrAuthentication, "malformed device code response", nil)
	}
	res := gjson.ParseBytes(body)
	grant := Grant{
		DeviceCode:              res.Get("device_code").String(),
		UserCode:                res.Get("user_code").String(),
		VerificationURI:         firstString(res, "verification_uri", "verification_url"),
		VerificationURIComplete: res.Get("verification_uri_complete").String(),
	}
	if grant.DeviceCode == "" || grant.UserCode == "" {
		return Grant{}, newError(ErrAuthentication, "device code response missing device_code or user_code", nil)
	}
	if grant.VerificationURI == "" {
		grant.VerificationURI = grant.VerificationURIComplete
	}
	if grant.VerificationURI == "" {
		return Grant{}, newError(ErrAuthentication, "device code response missing verification_uri", nil)
	}
	grant.ExpiresAt = now.Add(seconds(res.Get("expires_in"), defaultGrantLifetime))
	grant.Interval = seconds(res.Get("interval"), defaultPollInterval)
	if grant.Interval < 0 {
		grant.Interval = 0
	}
	return grant, nil
}

// ParseToken builds a Token from a token endpoint response body.
func ParseToken(body []byte, now time.Time) (Token, error) {
	if !gjson.ValidBytes(body) {
		return Token{}, newError(ErrAuthentication, "malformed token response", nil)
	}
	res := gjson.ParseBytes(body)
	token := Token{
		AccessToken:  res.Get("access_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		TokenType:    res.Get("token_type").String(),
		Scope:        res.Get("scope").String(),
	}
	if token.AccessToken == "" {
		return Token{}, newError(ErrAuthentication, "token response missing access_token", nil)
	}
	if token.TokenType == "" {
		token.TokenType = defaultTokenType
	}
	token.ExpiresAt = now.Add(seconds(res.Get("expires_in"), 0))
	return token, nil
}

func seconds(r gjson.Result, def time.Duration) time.Duration {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return time.Duration(r.Int()) * time.Second
}

func firstString(res gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := res.Get(key).String(); v != "" {
			return v
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return "Bearer"
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
