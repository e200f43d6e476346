package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func TestNewClientNilConfig(t *testing.T) {
	client := New(nil, nil)
	if client == nil {
		t.Fatal("expected client to be created with default config")
	}
	client.Close()
}

func TestClientDoReturnsAnyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "ytreact/1.0" {
			t.Errorf("User-Agent = %q, want ytreact/1.0", got)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("busy"))
	}))
	defer server.Close()

	client := New(DefaultConfig(), nil)
	defer client.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := client.Do(req, "get")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}

	err = ReadError(resp, "get")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("ReadError() = %v, want *HTTPError", err)
	}
	if string(httpErr.Body) != "busy" {
		t.Errorf("body = %q, want busy", httpErr.Body)
	}
	if !httpErr.Retriable() {
		t.Error("503 should be retriable")
	}
}

func TestClientDoTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(DefaultConfig(), nil)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	_, err := client.Do(req, "get")

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Do() error = %v, want *TransportError", err)
	}
	if te.Op != "get" {
		t.Errorf("Op = %q, want get", te.Op)
	}
	if !IsTransportError(err) {
		t.Error("IsTransportError() = false, want true")
	}
}

func TestClientDoHijackedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("hijacking not supported")
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer server.Close()

	client := New(DefaultConfig(), nil)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	_, err := client.Do(req, "get")
	if !IsTransportError(err) {
		t.Errorf("closed connection: IsTransportError(%v) = false, want true", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClientDoClassifiesByCause(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
	}{
		{"connection reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"truncated", io.ErrUnexpectedEOF, true},
		{"token refresh", errors.New("oauth2: token expired and refresh token is not set"), false},
		{"unknown authority", x509.UnknownAuthorityError{}, false},
		{"certificate", &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return nil, tt.err
			})}
			client := New(&Config{}, base)
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodPut, "https://upload.example/session", nil)

			_, err := client.Do(req, "upload chunk")
			if err == nil {
				t.Fatal("Do() error = nil")
			}
			var te *TransportError
			if got := errors.As(err, &te); got != tt.transport {
				t.Errorf("Do() error = %v; *TransportError = %v, want %v", err, got, tt.transport)
			}
			if got := IsTransportError(err); got != tt.transport {
				t.Errorf("IsTransportError(%v) = %v, want %v", err, got, tt.transport)
			}
			if !strings.HasPrefix(err.Error(), "upload chunk: ") {
				t.Errorf("error %q does not name the operation", err)
			}
		})
	}
}

func TestClientDoCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(DefaultConfig(), nil)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err := client.Do(req, "get")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if IsTransportError(err) {
		t.Error("cancellation must not be a transport error")
	}
}

func TestIsRetriableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{501, false},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{429, false},
	}
	for _, tt := range tests {
		if got := IsRetriableStatus(tt.code); got != tt.want {
			t.Errorf("IsRetriableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped transport", &TransportError{Op: "put chunk", Err: errors.New("reset")}, true},
		{"malformed", ErrMalformedResponse, true},
		{"http error", &HTTPError{StatusCode: 500}, false},
		{"canceled", context.Canceled, false},
		{"generic", errors.New("boom"), false},
		{"op error", &net.OpError{Op: "read", Err: syscall.EPIPE}, true},
		{"url error around credentials", &url.Error{Op: "Put", URL: "https://x", Err: errors.New("oauth2: cannot fetch token")}, false},
		{"url error around reset", &url.Error{Op: "Put", URL: "https://x", Err: syscall.ECONNRESET}, true},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportError(tt.err); got != tt.want {
				t.Errorf("IsTransportError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, ""},
		{308, ""},
		{403, "client error"},
		{429, "client error"},
		{503, "server error"},
	}
	for _, tt := range tests {
		if got := statusClass(tt.code); got != tt.want {
			t.Errorf("statusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
