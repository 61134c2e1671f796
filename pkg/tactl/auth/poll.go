package auth

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/devtrack/TradingAgents/pkg/metrics"
)

const slowDownStep = 5 * time.Second

type pollOutcome int

const (
	pollSuccess pollOutcome = iota
	pollPending
	pollSlowDown
	pollExpired
	pollDenied
)

func (o pollOutcome) String() string {
	switch o {
	case pollSuccess:
		return "success"
	case pollPending:
		return "pending"
	case pollSlowDown:
		return "slow_down"
	case pollExpired:
		return "expired"
	default:
		return "denied"
	}
}

type pollResult struct {
	outcome pollOutcome
	token   Token
	// reason is set for pollDenied.
	reason string
}

// classifyPoll maps a token endpoint response onto the closed set of poll
// outcomes. Anything unrecognised is a denial carrying the server's reason.
func classifyPoll(status int, body []byte, now time.Time) pollResult {
	switch code := errorCode(body); code {
	case "authorization_pending":
		return pollResult{outcome: pollPending}
	case "slow_down":
		return pollResult{outcome: pollSlowDown}
	case "expired_token":
		return pollResult{outcome: pollExpired}
	case "":
		if status < 200 || status > 299 {
			return pollResult{outcome: pollDenied, reason: responseReason(status, body)}
		}
		token, err := ParseToken(body, now)
		if err != nil {
			return pollResult{outcome: pollDenied, reason: err.Error()}
		}
		return pollResult{outcome: pollSuccess, token: token}
	default:
		return pollResult{outcome: pollDenied, reason: responseReason(status, body)}
	}
}

// PollForToken polls the token endpoint until the user approves the grant,
// the grant expires, or ctx is done. Request starts are at least the current
// interval apart; slow_down permanently adds five seconds to it. The caller's
// Grant is not modified.
func (c *Client) PollForToken(ctx context.Context, grant Grant) (Token, error) {
	interval := grant.Interval
	limiter := newPollLimiter(interval, time.Time{})
	for attempt := 1; ; attempt++ {
		now := c.clock.Now()
		if err := c.sleep(ctx, limiter.ReserveN(now, 1).DelayFrom(now)); err != nil {
			return Token{}, err
		}
		if grant.ExpiredAt(c.clock.Now()) {
			metrics.PollOutcomes.WithLabelValues(pollExpired.String()).Inc()
			return Token{}, newError(ErrDeviceCode, "device code expired", nil)
		}
		resp, err := c.post(ctx, "token", c.endpoints.Token, map[string]string{
			"grant_type":  deviceCodeGrantType,
			"device_code": grant.DeviceCode,
			"client_id":   c.cfg.ClientID,
		})
		if err != nil {
			return Token{}, requestFailed(ctx, ErrAuthentication, err)
		}
		result := classifyPoll(resp.StatusCode(), resp.Body(), c.clock.Now())
		metrics.PollOutcomes.WithLabelValues(result.outcome.String()).Inc()
		c.log.Debugw("Polled token endpoint", "attempt", attempt, "outcome", result.outcome.String(), "interval", interval)

		switch result.outcome {
		case pollSuccess:
			return result.token, nil
		case pollPending:
		case pollSlowDown:
			interval += slowDownStep
			limiter = newPollLimiter(interval, c.clock.Now())
		case pollExpired:
			return Token{}, newError(ErrDeviceCode, "expired_token", nil)
		default:
			return Token{}, newError(ErrAuthentication, result.reason, nil)
		}
	}
}

// newPollLimiter paces requests one per interval. A non-zero spent marks the
// burst token as used at that instant so the next request waits a full interval.
func newPollLimiter(interval time.Duration, spent time.Time) *rate.Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	if !spent.IsZero() {
		limiter.ReserveN(spent, 1)
	}
	return limiter
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
