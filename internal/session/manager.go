// Package session persists the browser session, including the admin bearer
// token, in a signed and encrypted cookie.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName = "kmart_session"
	defaultCookiePath = "/"
	defaultLifetime   = 365 * 24 * time.Hour
)

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the persisted cookie payload. The admin token lives under the fixed
// key "atoken" and carries no expiry of its own; only the backend decides
// whether it is still valid.
type Data struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"atoken,omitempty"`
}

// Session holds mutable state for the current request.
type Session struct {
	data      Data
	dirty     bool
	destroyed bool
}

// Config controls cookie encoding.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	Lifetime       time.Duration
	Now            func() time.Time
}

// Manager decodes and persists sessions via securecookie.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager. Missing keys are replaced with random
// per-process keys, which is only suitable outside production.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		cfg.HashKey = securecookie.GenerateRandomKey(32)
	}
	if cfg.BlockKey == nil {
		cfg.BlockKey = securecookie.GenerateRandomKey(32)
	}
	if len(cfg.HashKey) == 0 || len(cfg.BlockKey) == 0 {
		return nil, fmt.Errorf("%w: unable to generate keys", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// Load retrieves the session from the request or starts a new one. A cookie
// that fails verification is treated as absent.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}

	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.New(), nil
	}
	if stored.ID == "" {
		sess := m.New()
		sess.data.Token = stored.Token
		return sess, nil
	}
	return &Session{data: stored}, nil
}

// New returns a pristine session with a fresh identifier.
func (m *Manager) New() *Session {
	return &Session{
		data: Data{
			ID:        mustGenerateToken(24),
			CreatedAt: m.now().UTC(),
		},
		dirty: true,
	}
}

// Save writes the session cookie when it changed. Destroyed sessions clear it.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	if sess.destroyed {
		m.Destroy(w)
		return nil
	}
	if !sess.dirty {
		return nil
	}

	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Expires:  m.now().Add(m.cfg.Lifetime).UTC(),
		MaxAge:   int(m.cfg.Lifetime.Seconds()),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	})
	sess.dirty = false
	return nil
}

// Destroy expires the session cookie immediately.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	})
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.data.ID
}

// CreatedAt returns when the session was started.
func (s *Session) CreatedAt() time.Time {
	return s.data.CreatedAt
}

// Token returns the stored admin token, empty when none.
func (s *Session) Token() string {
	return s.data.Token
}

// SetToken stores the admin token.
func (s *Session) SetToken(token string) {
	if s.data.Token == token {
		return
	}
	s.data.Token = token
	s.dirty = true
}

// ClearToken removes the admin token.
func (s *Session) ClearToken() {
	s.SetToken("")
}

// Destroy marks the session for deletion.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Destroyed reports whether Destroy was called.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// Dirty reports whether the session changed during this request.
func (s *Session) Dirty() bool {
	return s.dirty
}

func mustGenerateToken(length int) string {
	token, err := generateToken(length)
	if err != nil {
		panic(err)
	}
	return token
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
