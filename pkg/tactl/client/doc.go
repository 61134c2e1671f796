// Package client calls the TradingAgents backend API on behalf of the
// signed-in user.
package client
