package auth

import (
	"github.com/skratchdot/open-golang/open"
)

// BrowserOpener launches a URL for the user. Failures are never fatal to a
// login; the prompt already shows the URI.
type BrowserOpener func(url string) error

// OpenBrowser starts the platform URL handler without waiting for it.
func OpenBrowser(url string) error {
	return open.Start(url)
}
