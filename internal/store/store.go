package store

import (
	"context"

	"github.com/searchapi-console/internal/model"
)

// Entry names shared by every backend.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// CredentialStore persists the dashboard session's token pair. Values
// are opaque. Clear on an empty store is a no-op.
type CredentialStore interface {
	Save(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
	Load(ctx context.Context) (model.Credentials, error)
	Close() error
}

// AccessToken returns the stored access token and whether one is present.
func AccessToken(ctx context.Context, s CredentialStore) (string, bool, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	return creds.AccessToken, creds.AccessToken != "", nil
}

// RefreshToken returns the stored refresh token and whether one is present.
func RefreshToken(ctx context.Context, s CredentialStore) (string, bool, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	return creds.RefreshToken, creds.RefreshToken != "", nil
}
