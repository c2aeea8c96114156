package banweb

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadCredentials is returned when the portal rejects the login
	// handshake. Never retried internally.
	ErrBadCredentials = errors.New("portal rejected credentials")

	// ErrSessionLost is returned when a fetch kept landing on the session
	// timeout page after re-authenticating up to the retry ceiling.
	ErrSessionLost = errors.New("could not recover portal session")

	ErrTimeout = errors.New("http connection timed out")
)

// ParseError signals that a page no longer has the shape this package was
// written against. It is fatal for the (term, subject) unit being scraped;
// silently defaulting would mean silent data loss in the catalog.
type ParseError struct {
	Page   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s page: %s", e.Page, e.Detail)
}

func parseErrorf(page, format string, args ...interface{}) *ParseError {
	return &ParseError{Page: page, Detail: fmt.Sprintf(format, args...)}
}

// IsParseError reports whether err means the source markup changed, as
// opposed to an auth or transport failure.
func IsParseError(err error) bool {
	_, ok := errors.Cause(err).(*ParseError)
	return ok
}
