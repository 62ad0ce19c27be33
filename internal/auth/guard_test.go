package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/session"
)

type memoryStore struct {
	token   string
	cleared bool
}

func (m *memoryStore) Token() string         { return m.token }
func (m *memoryStore) SetToken(token string) { m.token = token }
func (m *memoryStore) ClearToken()           { m.token = ""; m.cleared = true }

type fakeVerifier struct {
	calls atomic.Int32
	valid string
	delay time.Duration
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) error {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if token != f.valid {
		return &backend.APIError{Kind: backend.KindServer, Status: http.StatusUnauthorized, Message: "Invalid token"}
	}
	return nil
}

type fakeLogin struct {
	calls  atomic.Int32
	result backend.LoginResult
	err    error
}

func (f *fakeLogin) Login(ctx context.Context, username, password string) (backend.LoginResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func TestCheckWithoutTokenMakesNoCall(t *testing.T) {
	verifier := &fakeVerifier{valid: "abc123"}
	guard := NewGuard(verifier, nil)

	decision := guard.Check(context.Background(), &memoryStore{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonMissingToken, decision.Reason)

	decision = guard.Check(context.Background(), nil)
	require.Equal(t, ReasonMissingToken, decision.Reason)
	require.Zero(t, verifier.calls.Load())
}

func TestCheckRejectedTokenIsKeptByDefault(t *testing.T) {
	verifier := &fakeVerifier{valid: "abc123"}
	store := &memoryStore{token: "stale"}

	decision := NewGuard(verifier, nil).Check(context.Background(), store)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonTokenRejected, decision.Reason)
	require.True(t, backend.IsStatus(decision.Err, http.StatusUnauthorized))
	require.Equal(t, "stale", store.token)
	require.EqualValues(t, 1, verifier.calls.Load())
}

func TestCheckRejectedTokenClearedWhenConfigured(t *testing.T) {
	store := &memoryStore{token: "stale"}
	decision := NewGuard(&fakeVerifier{valid: "abc123"}, nil, WithClearRejected(true)).Check(context.Background(), store)
	require.False(t, decision.Allowed)
	require.True(t, store.cleared)
	require.Empty(t, store.token)
}

func TestCheckAllowsVerifiedToken(t *testing.T) {
	decision := NewGuard(&fakeVerifier{valid: "abc123"}, nil).Check(context.Background(), &memoryStore{token: "abc123"})
	require.True(t, decision.Allowed)
	require.Empty(t, decision.Reason)
}

func TestStartRunsConcurrently(t *testing.T) {
	verifier := &fakeVerifier{valid: "abc123", delay: 30 * time.Millisecond}
	guard := NewGuard(verifier, nil)

	started := time.Now()
	pending := guard.Start(context.Background(), &memoryStore{token: "abc123"})
	require.Less(t, time.Since(started), 30*time.Millisecond)

	require.True(t, pending.Wait(context.Background()).Allowed)
}

func TestPendingWaitHonoursContext(t *testing.T) {
	guard := NewGuard(&fakeVerifier{valid: "abc123", delay: 200 * time.Millisecond}, nil)
	pending := guard.Start(context.Background(), &memoryStore{token: "abc123"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	decision := pending.Wait(ctx)
	require.False(t, decision.Allowed)
	require.ErrorIs(t, decision.Err, context.DeadlineExceeded)
}

func TestLoginRequiresCredentials(t *testing.T) {
	login := &fakeLogin{}
	guard := NewGuard(&fakeVerifier{}, login)

	_, err := guard.Login(context.Background(), &memoryStore{}, Credentials{Username: "admin"})
	require.ErrorIs(t, err, ErrCredentialsRequired)
	require.Equal(t, "Username and password required", err.Error())
	_, err = guard.Login(context.Background(), &memoryStore{}, Credentials{Username: "  ", Password: "x"})
	require.ErrorIs(t, err, ErrCredentialsRequired)
	require.Zero(t, login.calls.Load())
}

func TestLoginPersistsTokenAndLogoutClears(t *testing.T) {
	login := &fakeLogin{result: backend.LoginResult{Message: "Login successful", Token: "abc123"}}
	guard := NewGuard(&fakeVerifier{valid: "abc123"}, login)
	store := &memoryStore{}

	outcome, err := guard.Login(context.Background(), store, Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "Login successful", outcome.Message)
	require.Equal(t, "abc123", store.token)

	guard.Logout(store)
	require.Empty(t, store.token)
}

func TestLoginFailureLeavesStoreUntouched(t *testing.T) {
	login := &fakeLogin{err: &backend.APIError{Kind: backend.KindServer, Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	store := &memoryStore{token: "old"}

	_, err := NewGuard(&fakeVerifier{}, login).Login(context.Background(), store, Credentials{Username: "admin", Password: "bad"})
	require.Error(t, err)
	require.Equal(t, "Invalid credentials", backend.UserMessage(err))
	require.Equal(t, "old", store.token)
}

func TestRequireAdmin(t *testing.T) {
	verifier := &fakeVerifier{valid: "abc123"}
	guard := NewGuard(verifier, nil)
	mgr, err := session.NewManager(session.Config{HashKey: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireAdmin(guard, "/admin")(ok)

	serve := func(token string, htmx bool) *httptest.ResponseRecorder {
		sess := mgr.New()
		sess.SetToken(token)
		req := httptest.NewRequest(http.MethodGet, "/admin-dashboard/fragments/products", nil)
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		req = req.WithContext(session.WithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("", false)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin", rec.Header().Get("Location"))
	require.Zero(t, verifier.calls.Load())

	rec = serve("stale", true)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "/admin", rec.Header().Get("HX-Redirect"))

	rec = serve("abc123", false)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.EqualValues(t, 2, verifier.calls.Load())
}

func TestNewGuardRequiresVerifier(t *testing.T) {
	require.Panics(t, func() { NewGuard(nil, nil) })
}
