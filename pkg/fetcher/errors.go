package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind tags a failure so callers can branch on it without inspecting
// messages.
type Kind int

const (
	// KindOther covers bad statuses, parse failures and local I/O errors.
	KindOther Kind = iota
	// KindConnectivity means the server could not be reached.
	KindConnectivity
	// KindNotFound means the site redirected instead of serving the resource.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// FetchError is a transport failure or a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       Kind
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a request was answered after one or more
// redirects, the site's way of saying the resource does not exist.
type NotFoundError struct {
	URL      string
	FinalURL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s redirected to %s: resource does not exist", e.URL, e.FinalURL)
}

// KindOf classifies err. Unknown errors are KindOther.
func KindOf(err error) Kind {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return KindNotFound
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}

// classifyTransport decides whether a transport error means the server was
// unreachable.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return KindConnectivity
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectivity
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindConnectivity
	}
	return KindOther
}
