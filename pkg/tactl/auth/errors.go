package auth

import (
	"errors"
	"strings"
)

var (
	// ErrAuthentication is the root of every error returned by this package.
	ErrAuthentication = errors.New("authentication error")
	// ErrDeviceCode covers device code issuance and an expired device code.
	ErrDeviceCode      = specialize("device code")
	ErrTokenRefresh    = specialize("token refresh")
	ErrTokenRevocation = specialize("token revocation")
	ErrTokenStorage    = specialize("token storage")
	// ErrLoginRequired is returned by GetSession when a new login is needed
	// but interactive login is disabled.
	ErrLoginRequired = specialize("login required")
)

func specialize(name string) error {
	return &kindError{name: name}
}

type kindError struct {
	name string
}

func (k *kindError) Error() string { return k.name + " error" }

func (k *kindError) Unwrap() error { return ErrAuthentication }

// Error is the concrete error type returned by the client and the token store.
// Kind is one of the package sentinels, so errors.Is(err, ErrTokenRefresh)
// and errors.Is(err, ErrAuthentication) both work.
type Error struct {
	Kind error
	// Reason is the server-reported error code or a short description.
	Reason string
	Err    error
}

func newError(kind error, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
