package fetcher

import "errors"

// Fetch errors.
// These are returned (wrapped) by Fetcher.Fetch and Fetcher.Get.
//
// Design decision: We define specific error values rather than wrapping all
// errors generically. This allows callers to tell a page that is down apart
// from a page that is up but not the content we can process, and to report
// each failure mode with its own message.
var (
	// ErrUnavailablePage is returned when the server answers with any
	// status other than 200 OK.
	ErrUnavailablePage = errors.New("page unavailable")

	// ErrNotHTMLContent is returned when the response Content-Type is not
	// exactly the expected HTML content type.
	ErrNotHTMLContent = errors.New("page is not HTML content")

	// ErrFetchTransport is returned when the request could not be completed:
	// invalid URL, DNS failure, connection reset, or timeout.
	ErrFetchTransport = errors.New("fetch transport error")
)

// Status is the outcome of a liveness check.
type Status int

const (
	// StatusReachable means the target answered 200 OK.
	StatusReachable Status = iota

	// StatusUnreachable means the target answered with another status.
	StatusUnreachable

	// StatusTransportError means no response was received.
	StatusTransportError
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusReachable:
		return "reachable"
	case StatusUnreachable:
		return "unreachable"
	case StatusTransportError:
		return "transport error"
	default:
		return "unknown"
	}
}

// transportErrorStatusCode is the status recorded for checks that got no
// response at all. Reporting these as 404 keeps them in the same bucket
// as a missing resource.
const transportErrorStatusCode = 404

// Liveness is the result of checking one URL.
type Liveness struct {
	// URL is the checked URL.
	URL string

	// Status classifies the outcome.
	Status Status

	// StatusCode is the HTTP status received, or 404 for transport errors.
	StatusCode int

	// Err holds the transport error, if any.
	Err error
}

// Reachable reports whether the URL answered 200 OK.
func (l Liveness) Reachable() bool {
	return l.Status == StatusReachable
}
