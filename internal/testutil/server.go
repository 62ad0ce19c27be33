package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/httpserver"
	"finitefield.org/kmart-web/internal/session"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*serverSetup)

type serverSetup struct {
	cfg           httpserver.Config
	backend       *FakeBackend
	clearRejected bool
}

// WithBackend replaces the default empty FakeBackend.
func WithBackend(b *FakeBackend) ServerOption {
	return func(s *serverSetup) {
		s.backend = b
	}
}

// WithClearRejectedToken makes the guard drop tokens the backend rejects.
func WithClearRejectedToken() ServerOption {
	return func(s *serverSetup) {
		s.clearRejected = true
	}
}

// WithUploadLimit caps each uploaded image.
func WithUploadLimit(limit int64) ServerOption {
	return func(s *serverSetup) {
		s.cfg.UploadLimit = limit
	}
}

// NewServer constructs an httptest server running the storefront stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) (*httptest.Server, *FakeBackend) {
	t.Helper()

	setup := &serverSetup{
		cfg: httpserver.Config{
			Address: ":0",
		},
	}
	for _, opt := range opts {
		opt(setup)
	}
	if setup.backend == nil {
		setup.backend = NewFakeBackend()
	}

	sessions, err := session.NewManager(session.Config{})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	setup.cfg.Backend = setup.backend
	setup.cfg.Sessions = sessions
	setup.cfg.Guard = auth.NewGuard(setup.backend, setup.backend, auth.WithClearRejected(setup.clearRejected))

	srv := httpserver.New(setup.cfg)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ts, setup.backend
}

// Browser keeps cookies between requests and never follows redirects.
type Browser struct {
	t      testing.TB
	base   *url.URL
	client *http.Client
}

// NewBrowser returns a Browser talking to ts.
func NewBrowser(t testing.TB, ts *httptest.Server) *Browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	base, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return &Browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Get performs a page navigation.
func (b *Browser) Get(path string) Response {
	b.t.Helper()
	return b.do(http.MethodGet, path, nil, "", false)
}

// Fragment performs an htmx GET.
func (b *Browser) Fragment(path string) Response {
	b.t.Helper()
	return b.do(http.MethodGet, path, nil, "", true)
}

// PostForm submits an urlencoded form carrying the CSRF token field.
func (b *Browser) PostForm(path string, values url.Values, htmx bool) Response {
	b.t.Helper()
	if values == nil {
		values = url.Values{}
	}
	values.Set("csrf_token", b.CSRFToken())
	return b.do(http.MethodPost, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", htmx)
}

// Post sends body with the given content type and the CSRF header.
func (b *Browser) Post(path string, body io.Reader, contentType string, htmx bool) Response {
	b.t.Helper()
	return b.do(http.MethodPost, path, body, contentType, htmx)
}

// CSRFToken returns the token cookie issued by the server. A page must have
// been requested before.
func (b *Browser) CSRFToken() string {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == "kmart_csrf" {
			return c.Value
		}
	}
	b.t.Fatalf("csrf cookie not issued")
	return ""
}

func (b *Browser) do(method, path string, body io.Reader, contentType string, htmx bool) Response {
	b.t.Helper()

	req, err := http.NewRequest(method, b.base.String()+path, body)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if method == http.MethodPost {
		req.Header.Set("X-CSRF-Token", b.CSRFToken())
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read %s %s: %v", method, path, err)
	}
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}
