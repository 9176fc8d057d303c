package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadFrom(context.Background(), "", envconfig.MapLookuper(env))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, map[string]string{"API_URL": "https://api.example.com/"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIURL, "trailing slash trimmed")
	assert.Equal(t, StoreFile, cfg.CredentialStore)
	assert.Equal(t, filepath.Join(DataDir(), "credentials.json"), cfg.CredentialFile)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, "127.0.0.1:8765", cfg.ListenAddr)
	assert.Equal(t, 60, cfg.SearchRateLimit)
	assert.Equal(t, time.Minute, cfg.SearchRateWindow)
	assert.Zero(t, cfg.ClientRPS)
}

func TestLoadRequiresAPIURL(t *testing.T) {
	_, err := load(t, map[string]string{})
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative api url", map[string]string{"API_URL": "/api"}},
		{"unknown backend", map[string]string{"CREDENTIAL_STORE": "keychain"}},
		{"postgres without url", map[string]string{"CREDENTIAL_STORE": "postgres"}},
		{"redis without url", map[string]string{"CREDENTIAL_STORE": "redis"}},
		{"page size zero", map[string]string{"PAGE_SIZE": "0"}},
		{"negative client rps", map[string]string{"CLIENT_RPS": "-1"}},
		{"rps without burst", map[string]string{"CLIENT_RPS": "2", "CLIENT_BURST": "0"}},
		{"negative search limit", map[string]string{"SEARCH_RATE_LIMIT": "-1"}},
		{"zero search window", map[string]string{"SEARCH_RATE_WINDOW": "0s"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"API_URL": "https://api.example.com"}
			for k, v := range tt.env {
				env[k] = v
			}
			_, err := load(t, env)
			assert.Error(t, err)
		})
	}
}

func TestLoadBackends(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"API_URL":          "http://localhost:8000",
		"CREDENTIAL_STORE": "redis",
		"REDIS_URL":        "redis://localhost:6379/0",
		"REDIS_TOKEN_TTL":  "24h",
	})
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.CredentialStore)
	assert.Equal(t, 24*time.Hour, cfg.RedisTokenTTL)

	cfg, err = load(t, map[string]string{
		"API_URL":            "http://localhost:8000",
		"SEARCH_RATE_LIMIT":  "0",
		"SEARCH_RATE_WINDOW": "0s",
	})
	require.NoError(t, err, "window is ignored when the limit is off")
	assert.Zero(t, cfg.SearchRateLimit)
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEARCHCTL_TEST_API_URL=https://dotenv.example.com\n"), 0o600))
	t.Setenv("SEARCHCTL_TEST_API_URL", "")
	os.Unsetenv("SEARCHCTL_TEST_API_URL")

	// The dotenv file feeds the process environment; the lookuper reads it.
	_, err := LoadFrom(context.Background(), path, envconfig.MapLookuper(map[string]string{
		"API_URL": "https://api.example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://dotenv.example.com", os.Getenv("SEARCHCTL_TEST_API_URL"))
}

func TestLoadMissingDotenvIsIgnored(t *testing.T) {
	_, err := LoadFrom(context.Background(), filepath.Join(t.TempDir(), "absent.env"),
		envconfig.MapLookuper(map[string]string{"API_URL": "https://api.example.com"}))
	require.NoError(t, err)
}
