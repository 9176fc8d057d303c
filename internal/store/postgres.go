package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/searchapi-console/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres applies pending migrations and connects a pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(pool), nil
}

// Migrate runs the embedded schema migrations against databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres:// URL to the scheme the pgx/v5 migrate
// driver registers.
func pgx5URL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (p *Postgres) Save(ctx context.Context, accessToken, refreshToken string) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, entry := range []struct{ name, value string }{
			{AccessTokenKey, accessToken},
			{RefreshTokenKey, refreshToken},
		} {
			if entry.value == "" {
				if _, err := tx.Exec(ctx, `DELETE FROM credentials WHERE name = $1`, entry.name); err != nil {
					return fmt.Errorf("delete %s: %w", entry.name, err)
				}
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO credentials (name, value, updated_at) VALUES ($1, $2, NOW())
				ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			`, entry.name, entry.value)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", entry.name, err)
			}
		}
		return nil
	})
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM credentials WHERE name = ANY($1)`, []string{AccessTokenKey, RefreshTokenKey}); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (model.Credentials, error) {
	rows, err := p.pool.Query(ctx, `SELECT name, value FROM credentials WHERE name = ANY($1)`, []string{AccessTokenKey, RefreshTokenKey})
	if err != nil {
		return model.Credentials{}, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var creds model.Credentials
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return model.Credentials{}, fmt.Errorf("scan credential: %w", err)
		}
		assignCredential(&creds, name, value)
	}
	return creds, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
