package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultAddr           = ":8080"
	defaultBackendTimeout = 8 * time.Second
	envProd               = "prod"
)

// Config captures runtime configuration organised by concern.
type Config struct {
	Backend BackendConfig
	Server  ServerConfig
	Session SessionConfig
	Auth    AuthConfig
	Log     LogConfig
}

// BackendConfig locates the REST backend every view talks to.
type BackendConfig struct {
	BaseURL string        `env:"KMART_BASE_URL,required"`
	Timeout time.Duration `env:"KMART_BACKEND_TIMEOUT" envDefault:"8s"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `env:"KMART_WEB_ADDR"`
	// Port is the Cloud Run style fallback used when Addr is unset.
	Port string `env:"PORT"`
	Env  string `env:"KMART_WEB_ENV" envDefault:"dev"`
}

// SessionConfig holds the securecookie keys. Empty keys are generated per
// process outside prod.
type SessionConfig struct {
	HashKey  string `env:"KMART_SESSION_HASH_KEY"`
	BlockKey string `env:"KMART_SESSION_BLOCK_KEY"`
}

// AuthConfig tunes the admin guard.
type AuthConfig struct {
	ClearRejectedToken bool `env:"KMART_CLEAR_REJECTED_TOKEN" envDefault:"false"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*env.Options)

// WithEnvMap replaces the process environment with an explicit key/value map.
func WithEnvMap(values map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = values
	}
}

// Load parses the environment into a Config and validates it.
func Load(opts ...Option) (Config, error) {
	options := env.Options{}
	for _, opt := range opts {
		opt(&options)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, options); err != nil {
		var aggregate env.AggregateError
		if errors.As(err, &aggregate) {
			return Config{}, &ValidationError{fields: aggregateFields(aggregate)}
		}
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaultBackendTimeout
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = defaultAddr
		if port := strings.TrimSpace(cfg.Server.Port); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}
	cfg.Server.Env = strings.ToLower(strings.TrimSpace(cfg.Server.Env))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProd reports whether the service runs in the production environment.
func (c Config) IsProd() bool {
	return c.Server.Env == envProd
}

func (c Config) validate() error {
	var fields []string
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		fields = append(fields, "KMART_BASE_URL")
	}
	switch c.Server.Env {
	case "dev", "test", envProd:
	default:
		fields = append(fields, "KMART_WEB_ENV")
	}
	if n := len(c.Session.HashKey); n != 0 && n < 32 {
		fields = append(fields, "KMART_SESSION_HASH_KEY")
	}
	switch len(c.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		fields = append(fields, "KMART_SESSION_BLOCK_KEY")
	}
	// Generated keys do not survive a restart, so prod must pin both.
	if c.IsProd() {
		if c.Session.HashKey == "" {
			fields = append(fields, "KMART_SESSION_HASH_KEY")
		}
		if c.Session.BlockKey == "" {
			fields = append(fields, "KMART_SESSION_BLOCK_KEY")
		}
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}
