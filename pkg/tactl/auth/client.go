package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/devtrack/TradingAgents/pkg/metrics"
	"github.com/devtrack/TradingAgents/pkg/version"
)

const (
	DefaultBaseURL  = "https://api.openai.com/v1/auth"
	DefaultClientID = "tradingagents-cli"
	DefaultScope    = "openid profile offline_access"

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

type Config struct {
	BaseURL  string
	ClientID string
	Scope    string
	// Endpoints, when set, replaces the URLs derived from BaseURL.
	Endpoints *Endpoints
}

// Client runs the device authorization flow and manages the stored session.
// A Client is not safe for concurrent GetSession calls; callers serialize them
// or go through TokenSource.
type Client struct {
	cfg         Config
	endpoints   Endpoints
	store       Store
	httpClient  *http.Client
	rest        *resty.Client
	log         *zap.SugaredLogger
	clock       clock.Clock
	browser     BrowserOpener
	prompt      func(Grant)
	openBrowser bool
	interactive bool
	skew        time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithBrowserOpener(opener BrowserOpener) Option {
	return func(c *Client) {
		if opener != nil {
			c.browser = opener
		}
	}
}

// WithPrompt replaces how the user code and verification URI are shown.
func WithPrompt(prompt func(Grant)) Option {
	return func(c *Client) {
		if prompt != nil {
			c.prompt = prompt
		}
	}
}

// WithPromptWriter prints the default prompt to w.
func WithPromptWriter(w io.Writer) Option {
	return func(c *Client) {
		if w != nil {
			c.prompt = writePrompt(w)
		}
	}
}

// WithOpenBrowser sets whether GetSession opens a browser when it has to
// fall back to a fresh login.
func WithOpenBrowser(open bool) Option {
	return func(c *Client) {
		c.openBrowser = open
	}
}

// WithInteractiveLogin controls whether GetSession may fall back to the
// device flow. When disabled it returns ErrLoginRequired instead.
func WithInteractiveLogin(enabled bool) Option {
	return func(c *Client) {
		c.interactive = enabled
	}
}

func WithSkew(skew time.Duration) Option {
	return func(c *Client) {
		if skew >= 0 {
			c.skew = skew
		}
	}
}

func NewClient(cfg Config, store Store, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	c := &Client{
		cfg:         cfg,
		store:       store,
		httpClient:  &http.Client{Timeout: DefaultRequestTimeout},
		log:         zap.NewNop().Sugar(),
		clock:       clock.RealClock{},
		browser:     OpenBrowser,
		prompt:      writePrompt(os.Stdout),
		openBrowser: true,
		interactive: true,
		skew:        DefaultSkew,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Endpoints != nil {
		c.endpoints = *cfg.Endpoints
	} else {
		c.endpoints = EndpointsFromBase(cfg.BaseURL)
	}
	c.rest = resty.NewWithClient(c.httpClient).
		SetLogger(c.log).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	return c
}

func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func writePrompt(w io.Writer) func(Grant) {
	return func(g Grant) {
		_, _ = fmt.Fprintf(w, "Visit %s and enter code: %s\n", g.VerificationURI, g.UserCode)
	}
}

// StartDeviceCode requests a new device code.
func (c *Client) StartDeviceCode(ctx context.Context) (Grant, error) {
	form := map[string]string{"client_id": c.cfg.ClientID}
	if c.cfg.Scope != "" {
		form["scope"] = c.cfg.Scope
	}
	resp, err := c.post(ctx, "device_code", c.endpoints.DeviceCode, form)
	if err != nil {
		return Grant{}, requestFailed(ctx, ErrDeviceCode, err)
	}
	if !resp.IsSuccess() {
		return Grant{}, newError(ErrDeviceCode, responseReason(resp.StatusCode(), resp.Body()), nil)
	}
	grant, err := ParseGrant(resp.Body(), c.clock.Now())
	if err != nil {
		return Grant{}, err
	}
	c.log.Infow("Device code issued",
		"userCode", grant.UserCode,
		"verificationURI", grant.VerificationURI,
		"expiresAt", grant.ExpiresAt.UTC().Format(time.RFC3339),
		"interval", grant.Interval)
	return grant, nil
}

// Refresh exchanges a refresh token for a new Token. Nothing is stored.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, newError(ErrTokenRefresh, "no refresh token", nil)
	}
	resp, err := c.post(ctx, "refresh", c.endpoints.Token, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     c.cfg.ClientID,
	})
	if err != nil {
		return Token{}, requestFailed(ctx, ErrTokenRefresh, err)
	}
	if !resp.IsSuccess() {
		return Token{}, newError(ErrTokenRefresh, responseReason(resp.StatusCode(), resp.Body()), nil)
	}
	token, err := ParseToken(resp.Body(), c.clock.Now())
	if err != nil {
		return Token{}, newError(ErrTokenRefresh, "malformed refresh response", err)
	}
	return token, nil
}

// Revoke asks the server to invalidate accessToken. Only 200 and 204 count
// as success.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, "revoke", c.endpoints.Revoke, map[string]string{
		"token":     accessToken,
		"client_id": c.cfg.ClientID,
	})
	if err != nil {
		return requestFailed(ctx, ErrTokenRevocation, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	default:
		return newError(ErrTokenRevocation, responseReason(resp.StatusCode(), resp.Body()), nil)
	}
}

// Login runs the full device flow and stores the resulting token.
func (c *Client) Login(ctx context.Context, openBrowser bool) (Token, error) {
	grant, err := c.StartDeviceCode(ctx)
	if err != nil {
		return Token{}, err
	}
	c.prompt(grant)
	if openBrowser {
		uri := grant.BrowserURI()
		if err := c.browser(uri); err != nil {
			c.log.Warnw("Failed to open browser", "uri", uri, "error", err)
		}
	}
	token, err := c.PollForToken(ctx, grant)
	if err != nil {
		return Token{}, err
	}
	if err := c.store.Save(token); err != nil {
		return Token{}, err
	}
	return token, nil
}

// GetSession returns a usable token: the stored one when still valid, a
// refreshed one when it has expired, or a new login as the last resort.
// Refresh is attempted at most once.
func (c *Client) GetSession(ctx context.Context) (Token, error) {
	stored, ok, err := c.store.Load()
	if err != nil {
		return Token{}, err
	}
	if ok && !stored.ExpiredAt(c.clock.Now(), c.skew) {
		metrics.SessionResolutions.WithLabelValues("cache").Inc()
		return stored, nil
	}
	if ok && stored.Refreshable() {
		refreshed, err := c.Refresh(ctx, stored.RefreshToken)
		switch {
		case err == nil:
			if err := c.store.Save(refreshed); err != nil {
				return Token{}, err
			}
			metrics.SessionResolutions.WithLabelValues("refresh").Inc()
			return refreshed, nil
		case errors.Is(err, ErrTokenRefresh):
			c.log.Infow("Token refresh failed, starting a new login", "error", err)
		default:
			return Token{}, err
		}
	}
	if !c.interactive {
		return Token{}, newError(ErrLoginRequired, "run 'tactl auth login'", nil)
	}
	token, err := c.Login(ctx, c.openBrowser)
	if err != nil {
		return Token{}, err
	}
	metrics.SessionResolutions.WithLabelValues("login").Inc()
	return token, nil
}

// Logout revokes the stored access token when there is one and always clears
// local storage. Revocation failures are logged and ignored.
func (c *Client) Logout(ctx context.Context) error {
	stored, ok, err := c.store.Load()
	if err != nil {
		c.log.Warnw("Failed to load stored token before logout", "error", err)
	}
	if ok {
		if err := c.Revoke(ctx, stored.AccessToken); err != nil {
			c.log.Warnw("Token revocation failed", "error", err)
		}
	}
	return c.store.Clear()
}

func (c *Client) post(ctx context.Context, endpoint, url string, form map[string]string) (*resty.Response, error) {
	requestID := uuid.NewString()
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetFormData(form).
		Post(url)
	if err != nil {
		metrics.AuthRequests.WithLabelValues(endpoint, "transport_error").Inc()
		c.log.Debugw("Authorization request failed", "endpoint", endpoint, "requestID", requestID, "error", err)
		return nil, err
	}
	metrics.AuthRequests.WithLabelValues(endpoint, statusClass(resp.StatusCode())).Inc()
	c.log.Debugw("Authorization request", "endpoint", endpoint, "requestID", requestID, "status", resp.StatusCode())
	return resp, nil
}

// requestFailed returns the context error unchanged so callers can tell
// cancellation from server trouble.
func requestFailed(ctx context.Context, kind error, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return newError(kind, "request failed", err)
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// errorCode extracts the OAuth error code from a JSON body, or "".
func errorCode(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	field := gjson.GetBytes(body, "error")
	switch {
	case field.Type == gjson.String:
		return field.String()
	case field.IsObject():
		return firstString(field, "code", "type", "message")
	default:
		return ""
	}
}

func responseReason(status int, body []byte) string {
	if code := errorCode(body); code != "" {
		if desc := gjson.GetBytes(body, "error_description").String(); desc != "" {
			return code + " (" + desc + ")"
		}
		return code
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	const maxReason = 200
	if len(text) > maxReason {
		text = text[:maxReason] + "..."
	}
	return text
}
