// Package metrics defines Prometheus metrics for tactl, covering device-code
// authorization requests, poll outcomes, session resolution, and token store
// operations.
package metrics
