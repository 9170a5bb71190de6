package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind int

const (
	// Transient failures (timeouts, connection resets, 5xx) may succeed
	// on a retry.
	Transient Kind = iota
	// Permanent failures (4xx, malformed URLs) will not improve on retry.
	Permanent
	// InvalidContent means the server answered 200 with something that is
	// not a usable page image, e.g. an HTML error page.
	InvalidContent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case InvalidContent:
		return "invalid_content"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a fetch failure worth retrying.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == Transient
}

// KindOf extracts the failure kind from err. The second return is false
// when err is not a fetch error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
