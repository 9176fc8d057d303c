package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/config"
)

// Open builds the credential store selected by cfg.CredentialStore.
func Open(ctx context.Context, cfg *config.Config) (CredentialStore, error) {
	var (
		s   CredentialStore
		err error
	)
	switch cfg.CredentialStore {
	case config.StoreMemory:
		s = NewMemory()
	case config.StoreFile:
		s = NewFile(cfg.CredentialFile)
	case config.StoreSQLite:
		s, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case config.StoreRedis:
		s, err = OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.RedisTokenTTL)
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s credential store: %w", cfg.CredentialStore, err)
	}

	log.Debug().Str("backend", cfg.CredentialStore).Msg("credential store opened")
	return s, nil
}
