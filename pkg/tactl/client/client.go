package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
	"github.com/devtrack/TradingAgents/pkg/version"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL   *url.URL
	source    oauth2.TokenSource
	http      *http.Client
	userAgent string
	timeout   time.Duration
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{},
		userAgent: version.UserAgent(),
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	c.http.Timeout = c.timeout
	if c.source != nil {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.Transport = &oauth2.Transport{Source: c.source, Base: base}
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid server: %q is not an absolute URL", server)
		}
		c.baseURL = parsed
		return nil
	}
}

// WithTokenSource authenticates every request with the bearer token from
// source.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(c *Client) error {
		c.source = source
		return nil
	}
}

// WithStaticToken is WithTokenSource for a fixed access token.
func WithStaticToken(token string) Option {
	return func(c *Client) error {
		if token == "" {
			return nil
		}
		c.source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		if caFile == "" && !insecureSkipTLSVerify {
			return nil
		}
		httpClient, err := auth.NewHTTPClient(caFile, insecureSkipTLSVerify, c.timeout)
		if err != nil {
			return err
		}
		c.http = httpClient
		return nil
	}
}

// GetRaw fetches endpoint relative to the server and returns the body as-is.
func (c *Client) GetRaw(ctx context.Context, endpoint string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response from %s is not JSON", endpoint)
	}
	return json.RawMessage(body), nil
}

func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.GetRaw(ctx, endpoint)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) resolve(endpoint string) (string, error) {
	full := *c.baseURL
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	full.Path = path.Join("/", full.Path, parsed.Path)
	full.RawQuery = parsed.RawQuery
	return full.String(), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp, body)
	}
	return body, nil
}

func decodeError(resp *http.Response, body []byte) error {
	var msg string
	if gjson.ValidBytes(body) {
		field := gjson.GetBytes(body, "error")
		if field.IsObject() {
			msg = field.Get("message").String()
		} else {
			msg = field.String()
		}
		if msg == "" {
			msg = gjson.GetBytes(body, "detail").String()
		}
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}
