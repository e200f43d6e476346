// Package auth obtains OAuth2 credentials for uploading with the
// installed-app flow: the user approves access in a browser and the code
// is delivered to a loopback callback server. Tokens are cached in a file
// and refreshed tokens are written back.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"ytreact/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// UploadScope grants permission to upload videos.
const UploadScope = "https://www.googleapis.com/auth/youtube.upload"

// CallbackPath is the path of the loopback redirect.
const CallbackPath = "/oauth2callback"

// Sentinel errors for authentication.
var (
	ErrClientSecrets = errors.New("auth: invalid client secrets")
	ErrNoToken       = errors.New("auth: no cached token")
	ErrStateMismatch = errors.New("auth: state mismatch in callback")
	ErrDenied        = errors.New("auth: authorization denied")
)

// LoadConfig reads an installed-app client secrets file.
func LoadConfig(secretsFile string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(secretsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientSecrets, err)
	}
	if len(scopes) == 0 {
		scopes = []string{UploadScope}
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrClientSecrets, secretsFile, err)
	}
	return cfg, nil
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return storage.WriteFileAtomic(path, data, 0600)
}

// Flow runs the installed-app authorization.
type Flow struct {
	Config *oauth2.Config
	// TokenFile caches the token between runs.
	TokenFile string
	// ListenAddr is the loopback address of the callback server.
	ListenAddr string
	// OpenURL presents the consent URL. Defaults to printing it to Out.
	OpenURL func(url string) error
	// Out receives instructions for the user. Defaults to os.Stderr.
	Out io.Writer
}

// NewFlow creates a Flow from a client secrets file.
func NewFlow(secretsFile, tokenFile, listenAddr string) (*Flow, error) {
	cfg, err := LoadConfig(secretsFile)
	if err != nil {
		return nil, err
	}
	return &Flow{Config: cfg, TokenFile: tokenFile, ListenAddr: listenAddr}, nil
}

// Client returns an HTTP client authorized for uploads. A cached token is
// used when present; otherwise the user is asked to authorize.
func (f *Flow) Client(ctx context.Context) (*http.Client, error) {
	tok, err := LoadToken(f.TokenFile)
	if errors.Is(err, ErrNoToken) {
		tok, err = f.Authorize(ctx)
	}
	if err != nil {
		return nil, err
	}
	ts := &persistingSource{
		src:  f.Config.TokenSource(ctx, tok),
		path: f.TokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

type callbackResult struct {
	code string
	err  error
}

// Authorize runs the consent flow and caches the resulting token.
func (f *Flow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	addr := f.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	cfg := *f.Config
	cfg.RedirectURL = "http://" + ln.Addr().String() + CallbackPath
	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler:           callbackRouter(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := f.openURL(authURL); err != nil {
		return nil, fmt.Errorf("open consent page: %w", err)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := SaveToken(f.TokenFile, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	log.Printf("auth: token saved to %s", f.TokenFile)
	return tok, nil
}

func (f *Flow) openURL(url string) error {
	if f.OpenURL != nil {
		return f.OpenURL(url)
	}
	out := f.Out
	if out == nil {
		out = os.Stderr
	}
	_, err := fmt.Fprintf(out, "Open this URL in your browser to authorize uploads:\n\n  %s\n\n", url)
	return err
}

// callbackRouter serves the redirect target. The first request with the
// expected state delivers its result; later requests are ignored.
func callbackRouter(state string, results chan<- callbackResult) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	var once sync.Once
	deliver := func(res callbackResult) {
		once.Do(func() { results <- res })
	}

	r.Get(CallbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			deliver(callbackResult{err: ErrStateMismatch})
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrDenied, e)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("%w: no code in callback", ErrDenied)})
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		deliver(callbackResult{code: code})
	})
	return r
}

// persistingSource writes refreshed tokens back to the cache file.
type persistingSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			log.Printf("auth: cache refreshed token: %v", err)
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
