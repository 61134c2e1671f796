package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthRequests counts calls to the authorization server by endpoint
	// (device_code, token, refresh, revoke) and result: the HTTP status class
	// ("2xx", "4xx", ...) or "transport_error" when no response arrived.
	AuthRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tactl_auth_requests_total",
		Help: "Total number of requests sent to the authorization server",
	}, []string{"endpoint", "result"})
	PollOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tactl_auth_poll_outcomes_total",
		Help: "Total number of device-code poll responses grouped by outcome",
	}, []string{"outcome"})
	// SessionResolutions records where GetSession obtained its token from.
	SessionResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tactl_session_resolutions_total",
		Help: "Total number of sessions resolved from cache, refresh, or a new login",
	}, []string{"source"})
	TokenStoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tactl_token_store_operations_total",
		Help: "Total number of token store operations grouped by backend, operation, and result",
	}, []string{"backend", "operation", "result"})
)

func init() {
	prometheus.MustRegister(AuthRequests)
	prometheus.MustRegister(PollOutcomes)
	prometheus.MustRegister(SessionResolutions)
	prometheus.MustRegister(TokenStoreOperations)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// WriteTextfile dumps all registered metrics in the text exposition format so
// a node-exporter textfile collector can pick them up after a CLI run.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
