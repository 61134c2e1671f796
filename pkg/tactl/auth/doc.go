// Package auth implements the OAuth 2.0 device authorization grant for tactl:
// requesting a device code, polling the token endpoint, refreshing and
// revoking tokens, and persisting the resulting session in the OS keyring
// with a permission-restricted file as fallback.
package auth
