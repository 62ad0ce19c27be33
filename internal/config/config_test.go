package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL": "https://api.example.com/",
	}))
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	require.Equal(t, 8*time.Second, cfg.Backend.Timeout)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "dev", cfg.Server.Env)
	require.False(t, cfg.IsProd())
	require.False(t, cfg.Auth.ClearRejectedToken)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFallsBackToPort(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL": "http://localhost:4000",
		"PORT":           "9090",
	}))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)

	cfg, err = Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL": "http://localhost:4000",
		"PORT":           "9090",
		"KMART_WEB_ADDR": "127.0.0.1:7000",
	}))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
}

func TestLoadRequiresBaseURL(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}))
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
	require.Contains(t, vErr.Fields(), "KMART_BASE_URL")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL":          "not a url",
		"KMART_WEB_ENV":           "staging",
		"KMART_SESSION_BLOCK_KEY": "short",
	}))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
	require.ElementsMatch(t, []string{"KMART_BASE_URL", "KMART_WEB_ENV", "KMART_SESSION_BLOCK_KEY"}, vErr.Fields())
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL":             "https://api.example.com",
		"KMART_BACKEND_TIMEOUT":      "2s",
		"KMART_WEB_ENV":              "PROD",
		"KMART_CLEAR_REJECTED_TOKEN": "true",
		"LOG_LEVEL":                  "debug",
		"KMART_SESSION_HASH_KEY":     hashKey,
		"KMART_SESSION_BLOCK_KEY":    blockKey,
	}))
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	require.True(t, cfg.IsProd())
	require.True(t, cfg.Auth.ClearRejectedToken)
	require.Equal(t, "debug", cfg.Log.Level)
}

const (
	hashKey  = "0123456789abcdef0123456789abcdef"
	blockKey = "fedcba9876543210fedcba9876543210"
)

func TestLoadRequiresSessionKeysInProd(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL":         "https://api.example.com",
		"KMART_WEB_ENV":          "prod",
		"KMART_SESSION_HASH_KEY": hashKey,
	}))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
	require.Equal(t, []string{"KMART_SESSION_BLOCK_KEY"}, vErr.Fields())

	_, err = Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL": "https://api.example.com",
		"KMART_WEB_ENV":  "prod",
	}))
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
	require.ElementsMatch(t, []string{"KMART_SESSION_HASH_KEY", "KMART_SESSION_BLOCK_KEY"}, vErr.Fields())

	cfg, err := Load(WithEnvMap(map[string]string{
		"KMART_BASE_URL":         "https://api.example.com",
		"KMART_WEB_ENV":          "dev",
		"KMART_SESSION_HASH_KEY": hashKey,
	}))
	require.NoError(t, err)
	require.Empty(t, cfg.Session.BlockKey)
}
