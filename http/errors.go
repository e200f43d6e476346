package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"syscall"
)

// RetriableStatusCodes are the server statuses worth another attempt.
var RetriableStatusCodes = []int{
	http.StatusInternalServerError, // 500
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

// HTTPError indicates an HTTP error response.
type HTTPError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is the response body
	Body []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// Retriable reports whether the status is in RetriableStatusCodes.
func (e *HTTPError) Retriable() bool {
	return IsRetriableStatus(e.StatusCode)
}

// TransportError indicates the request never produced a usable response:
// the connection failed, was reset, or the response was malformed.
type TransportError struct {
	// Op names the request that failed ("open session", "upload chunk").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Sentinel errors for HTTP operations.
var (
	// ErrNoResponse indicates no response was received from the server.
	ErrNoResponse = errors.New("no response received")

	// ErrMalformedResponse indicates the server answered with something the
	// protocol does not allow (missing headers, unparsable ranges).
	ErrMalformedResponse = errors.New("malformed response")
)

// IsRetriableStatus reports whether statusCode is one of RetriableStatusCodes.
func IsRetriableStatus(statusCode int) bool {
	for _, code := range RetriableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// IsTransportError reports whether err is a connection-level failure:
// refused or reset connections, broken pipes, truncated bodies, timeouts
// and malformed responses. Context cancellation, credential and
// certificate failures are not transport errors.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrNoResponse) || errors.Is(err, ErrMalformedResponse) {
		return true
	}
	return isConnectionFailure(err)
}

// isConnectionFailure reports whether the cause of err is the connection
// itself. *url.Error is not enough on its own: it also carries token
// refresh, TLS verification and unsupported scheme failures.
func isConnectionFailure(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var protoErr textproto.ProtocolError
	if errors.As(err, &protoErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsClientError checks if status code is a client error (4xx).
func IsClientError(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500
}

// IsServerError checks if status code is a server error (5xx).
func IsServerError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}

// statusClass names the error class of statusCode, or "" for non-errors.
func statusClass(statusCode int) string {
	switch {
	case IsClientError(statusCode):
		return "client error"
	case IsServerError(statusCode):
		return "server error"
	}
	return ""
}
