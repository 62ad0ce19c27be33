// Package auth gates the admin views behind a bearer token that the backend verifies.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/observability"
)

const (
	// ReasonMissingToken means no token was stored; no network call was made.
	ReasonMissingToken = "missing_token"
	// ReasonTokenRejected means the backend refused the stored token.
	ReasonTokenRejected = "token_rejected"
)

// ErrCredentialsRequired is returned by Login when a credential is blank.
var ErrCredentialsRequired = errors.New("Username and password required")

// TokenStore persists the admin token for one browser session.
type TokenStore interface {
	Token() string
	SetToken(token string)
	ClearToken()
}

// Verifier validates a token against the backend.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// LoginClient exchanges credentials for a token.
type LoginClient interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

// Credentials are submitted by the login form.
type Credentials struct {
	Username string
	Password string
}

// LoginOutcome carries the backend message of a successful login.
type LoginOutcome struct {
	Message string
}

// Option customises a Guard.
type Option func(*Guard)

// WithClearRejected makes the guard drop a stored token the backend rejected.
func WithClearRejected(enabled bool) Option {
	return func(g *Guard) {
		g.clearRejected = enabled
	}
}

// Guard decides whether a session may render the admin views.
type Guard struct {
	verifier      Verifier
	login         LoginClient
	clearRejected bool
}

// NewGuard constructs a Guard.
func NewGuard(verifier Verifier, login LoginClient, opts ...Option) *Guard {
	if verifier == nil {
		panic("auth: verifier is required")
	}
	g := &Guard{verifier: verifier, login: login}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Check reads the stored token and asks the backend to verify it. Without a
// token it denies immediately and makes no network call. A rejected token is
// kept unless WithClearRejected(true) was given.
func (g *Guard) Check(ctx context.Context, store TokenStore) Decision {
	token := tokenOf(store)
	if token == "" {
		return Decision{Reason: ReasonMissingToken}
	}
	decision := g.verify(ctx, token)
	g.settle(store, decision)
	return decision
}

// Pending is a verification running alongside the gated view's own fetches.
type Pending struct {
	guard    *Guard
	store    TokenStore
	done     chan struct{}
	decision Decision
	once     sync.Once
}

// Start reads the stored token and verifies it in the background. The store
// is only written by Wait, on the caller's goroutine.
func (g *Guard) Start(ctx context.Context, store TokenStore) *Pending {
	p := &Pending{guard: g, store: store, done: make(chan struct{})}
	token := tokenOf(store)
	if token == "" {
		p.decision = Decision{Reason: ReasonMissingToken}
		close(p.done)
		return p
	}
	go func() {
		defer close(p.done)
		p.decision = g.verify(ctx, token)
	}()
	return p
}

// Wait blocks until the verification finished or ctx is done.
func (p *Pending) Wait(ctx context.Context) Decision {
	select {
	case <-p.done:
	case <-ctx.Done():
		return Decision{Reason: ReasonTokenRejected, Err: ctx.Err()}
	}
	p.once.Do(func() { p.guard.settle(p.store, p.decision) })
	return p.decision
}

func (g *Guard) verify(ctx context.Context, token string) Decision {
	if err := g.verifier.Verify(ctx, token); err != nil {
		observability.FromContext(ctx).Info("admin token rejected",
			zap.String("reason", ReasonTokenRejected),
			zap.Error(err),
		)
		return Decision{Reason: ReasonTokenRejected, Err: err}
	}
	return Decision{Allowed: true}
}

func (g *Guard) settle(store TokenStore, decision Decision) {
	if g.clearRejected && decision.Reason == ReasonTokenRejected && store != nil {
		store.ClearToken()
	}
}

func tokenOf(store TokenStore) string {
	if store == nil {
		return ""
	}
	return strings.TrimSpace(store.Token())
}

// Login validates the credentials, asks the backend for a token and stores it.
func (g *Guard) Login(ctx context.Context, store TokenStore, creds Credentials) (LoginOutcome, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return LoginOutcome{}, ErrCredentialsRequired
	}
	if g.login == nil {
		return LoginOutcome{}, errors.New("auth: login client not configured")
	}

	result, err := g.login.Login(ctx, username, creds.Password)
	if err != nil {
		return LoginOutcome{}, err
	}
	store.SetToken(result.Token)
	return LoginOutcome{Message: result.Message}, nil
}

// Logout forgets the stored token.
func (g *Guard) Logout(store TokenStore) {
	if store != nil {
		store.ClearToken()
	}
}
