package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/searchapi-console/internal/model"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a credential database at dbPath.
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, accessToken, refreshToken string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credential tx: %w", err)
	}
	defer tx.Rollback()

	for name, value := range map[string]string{AccessTokenKey: accessToken, RefreshTokenKey: refreshToken} {
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE name = ?`, name); err != nil {
				return fmt.Errorf("delete %s: %w", name, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, name, value)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE name IN (?, ?)`, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (model.Credentials, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM credentials WHERE name IN (?, ?)`, AccessTokenKey, RefreshTokenKey)
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

func (s *SQLite) Close() error {
	return s.db.Close()
}

func assignCredential(creds *model.Credentials, name, value string) {
	switch name {
	case AccessTokenKey:
		creds.AccessToken = value
	case RefreshTokenKey:
		creds.RefreshToken = value
	}
}
