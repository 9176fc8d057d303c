package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Credential store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	APIURL string `env:"API_URL,required"`

	CredentialStore string        `env:"CREDENTIAL_STORE,default=file"`
	CredentialFile  string        `env:"CREDENTIAL_FILE"`
	SQLitePath      string        `env:"SQLITE_PATH"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	RedisKeyPrefix  string        `env:"REDIS_KEY_PREFIX,default=searchctl"`
	RedisTokenTTL   time.Duration `env:"REDIS_TOKEN_TTL,default=0s"`

	// Outgoing API client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=15s"`
	ClientRPS   float64       `env:"CLIENT_RPS,default=0"`
	ClientBurst int           `env:"CLIENT_BURST,default=5"`

	PageSize  int    `env:"PAGE_SIZE,default=5"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	// Local dashboard server
	ListenAddr  string        `env:"LISTEN_ADDR,default=127.0.0.1:8765"`
	CORSOrigins []string      `env:"CORS_ORIGINS"`
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	// WriteTimeout covers proxied search calls, keep it above HTTPTimeout.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT,default=60s"`

	// Per API key limit on proxied searches; 0 disables it.
	SearchRateLimit  int           `env:"SEARCH_RATE_LIMIT,default=60"`
	SearchRateWindow time.Duration `env:"SEARCH_RATE_WINDOW,default=1m"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), ".env", envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit dotenv path and lookuper.
func LoadFrom(ctx context.Context, dotenvPath string, lookuper envconfig.Lookuper) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", dotenvPath, err)
		}
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.CredentialFile == "" {
		c.CredentialFile = filepath.Join(DataDir(), "credentials.json")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(DataDir(), "credentials.db")
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}

	switch c.CredentialStore {
	case StoreMemory, StoreFile, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CREDENTIAL_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CREDENTIAL_STORE=redis")
		}
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be one of memory, file, sqlite, postgres, redis, got %q", c.CredentialStore)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.ClientRPS < 0 {
		return fmt.Errorf("CLIENT_RPS must not be negative, got %v", c.ClientRPS)
	}
	if c.ClientRPS > 0 && c.ClientBurst < 1 {
		return fmt.Errorf("CLIENT_BURST must be at least 1 when CLIENT_RPS is set, got %d", c.ClientBurst)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	}
	if c.SearchRateLimit < 0 {
		return fmt.Errorf("SEARCH_RATE_LIMIT must not be negative, got %d", c.SearchRateLimit)
	}
	if c.SearchRateLimit > 0 && c.SearchRateWindow <= 0 {
		return fmt.Errorf("SEARCH_RATE_WINDOW must be positive, got %s", c.SearchRateWindow)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'console' or 'json', got %q", c.LogFormat)
	}

	return nil
}

// DataDir is where file-backed credentials live by default.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "searchctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".searchctl")
}
