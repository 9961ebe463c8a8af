package paginate

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrNetwork marks transport-level failures. Fetch implementations wrap it
// (fmt.Errorf("...: %w", ErrNetwork)) when they detect a connectivity problem
// that the standard library types below would not reveal.
var ErrNetwork = errors.New("network error")

// Kind classifies a failed fetch.
type Kind int

const (
	// KindUnexpected covers every failure that is not a transport problem:
	// decoding errors, unexpected HTTP statuses, panics inside Fetch.
	KindUnexpected Kind = iota

	// KindNetwork covers connectivity and transport failures.
	KindNetwork
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// fallbackMessage is used when the underlying error carries no text.
const fallbackMessage = "unknown error"

// Error is the value handed to Config.OnError. Both kinds are recoverable:
// calling LoadNextItems again retries the same page.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Page is the cursor whose fetch failed.
	Page any

	// Err is the original error returned by Fetch.
	Err error
}

// Error returns a message suitable for display.
func (e *Error) Error() string {
	msg := fallbackMessage
	if e.Err != nil && e.Err.Error() != "" {
		msg = e.Err.Error()
	}
	if e.Kind == KindNetwork && !errors.Is(e.Err, ErrNetwork) {
		return fmt.Sprintf("%s: %s", ErrNetwork, msg)
	}
	return msg
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error { return e.Err }

// Classify reports which [Kind] err belongs to.
func Classify(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	if errors.Is(err, ErrNetwork) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnexpected
}

// KindOf returns the kind of a *Error in err's chain, or classifies err
// directly when none is present.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Classify(err)
}

func wrap(page any, err error) *Error {
	return &Error{Kind: Classify(err), Page: page, Err: err}
}
