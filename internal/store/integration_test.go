//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPostgresCredentialStoreIntegration(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pg, err := OpenPostgres(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { pg.Close() })

	if _, err := pg.pool.Exec(ctx, `TRUNCATE TABLE credentials`); err != nil {
		t.Fatalf("truncate credentials: %v", err)
	}

	exerciseCredentialStore(t, pg)

	// Re-running migrations against an up-to-date schema is a no-op.
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
}

func TestRedisCredentialStoreIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}

	ctx := context.Background()
	prefix := "searchctl-test-" + uuid.NewString()
	r, err := OpenRedis(ctx, redisURL, prefix, time.Minute)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() {
		r.Clear(context.Background())
		r.Close()
	})

	exerciseCredentialStore(t, r)

	if err := r.Save(ctx, "access", "refresh"); err != nil {
		t.Fatalf("save: %v", err)
	}
	ttl, err := r.client.TTL(ctx, r.key(AccessTokenKey)).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
}
