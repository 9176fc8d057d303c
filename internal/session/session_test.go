package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/store"
)

type authFunc func(ctx context.Context, email, password string) (*model.TokenPair, error)

func (f authFunc) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	return f(ctx, email, password)
}

func succeed(access, refresh string) authFunc {
	return func(context.Context, string, string) (*model.TokenPair, error) {
		return &model.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
	}
}

var errBadCredentials = &client.Error{Kind: client.KindUnauthorized, Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "Incorrect email or password"}

func fail() authFunc {
	return func(context.Context, string, string) (*model.TokenPair, error) {
		return nil, errBadCredentials
	}
}

func newController(t *testing.T, auth Authenticator) (*Controller, *store.Memory) {
	t.Helper()
	creds := store.NewMemory()
	c := New(auth, creds)
	return c, creds
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted token restores the session", func(t *testing.T) {
		c, creds := newController(t, succeed("a", "r"))
		creds.Save(ctx, "persisted", "r")

		if got := c.State().Status; got != model.SessionLoading {
			t.Fatalf("expected loading before init, got %s", got)
		}
		if err := c.Init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
		if !c.IsLoggedIn() {
			t.Fatalf("expected authenticated, got %s", c.State().Status)
		}
	})

	t.Run("no token means anonymous", func(t *testing.T) {
		c, _ := newController(t, succeed("a", "r"))
		if err := c.Init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
		if got := c.State().Status; got != model.SessionAnonymous {
			t.Fatalf("expected anonymous, got %s", got)
		}
	})
}

func TestLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	c, creds := newController(t, succeed("access-1", "refresh-1"))
	c.Init(ctx)

	if err := c.Login(ctx, "ana@example.com", "s3cret!!"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := c.State().Status; got != model.SessionAuthenticated {
		t.Fatalf("expected authenticated, got %s", got)
	}
	stored, _ := creds.Load(ctx)
	if stored.AccessToken != "access-1" || stored.RefreshToken != "refresh-1" {
		t.Fatalf("expected both tokens persisted, got %+v", stored)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := c.State().Status; got != model.SessionAnonymous {
		t.Fatalf("expected anonymous, got %s", got)
	}
	stored, _ = creds.Load(ctx)
	if !stored.Empty() {
		t.Fatalf("expected empty store after logout, got %+v", stored)
	}
}

func TestFailedLogin(t *testing.T) {
	ctx := context.Background()
	c, creds := newController(t, fail())
	c.Init(ctx)
	creds.Save(ctx, "leftover", "")

	err := c.Login(ctx, "ana@example.com", "wrong-pass")
	if !client.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	s := c.State()
	if s.Status != model.SessionAuthenticationFailed {
		t.Fatalf("expected authentication_failed, got %s", s.Status)
	}
	if s.LastError != "Incorrect email or password" {
		t.Fatalf("unexpected last error %q", s.LastError)
	}
	if c.IsLoggedIn() {
		t.Fatal("failed login must route as anonymous")
	}
	if stored, _ := creds.Load(ctx); !stored.Empty() {
		t.Fatalf("expected credentials cleared, got %+v", stored)
	}

	t.Run("next attempt clears the last error", func(t *testing.T) {
		seen := make(chan model.SessionState, 1)
		c.auth = authFunc(func(context.Context, string, string) (*model.TokenPair, error) {
			seen <- c.State()
			return &model.TokenPair{AccessToken: "a"}, nil
		})
		if err := c.Login(ctx, "ana@example.com", "s3cret!!"); err != nil {
			t.Fatalf("login: %v", err)
		}
		during := <-seen
		if during.Status != model.SessionAuthenticating || during.LastError != "" {
			t.Fatalf("expected authenticating without error, got %+v", during)
		}
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, succeed("a", "r"))
	c.Init(ctx)

	sub, cancel := c.Subscribe()
	defer cancel()
	<-sub

	for i := 0; i < 3; i++ {
		if err := c.Logout(ctx); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	select {
	case s := <-sub:
		t.Fatalf("expected no transition, got %+v", s)
	default:
	}
}

func TestStaleLoginDoesNotResurrectSession(t *testing.T) {
	ctx := context.Background()
	started := make(chan string, 2)
	release := make(chan struct{})

	auth := authFunc(func(_ context.Context, email, _ string) (*model.TokenPair, error) {
		started <- email
		if email == "slow@example.com" {
			<-release
			return &model.TokenPair{AccessToken: "slow-token", RefreshToken: "slow-refresh"}, nil
		}
		return nil, errBadCredentials
	})
	c, creds := newController(t, auth)
	c.Init(ctx)

	slow := make(chan error, 1)
	go func() { slow <- c.Login(ctx, "slow@example.com", "s3cret!!") }()
	<-started

	if err := c.Login(ctx, "fast@example.com", "wrong-pass"); !client.IsUnauthorized(err) {
		t.Fatalf("expected the fast attempt to fail, got %v", err)
	}
	if got := c.State().Status; got != model.SessionAuthenticationFailed {
		t.Fatalf("expected authentication_failed, got %s", got)
	}

	// A login is still in flight, so this logout must take effect.
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(release)

	if err := <-slow; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}
	if got := c.State().Status; got != model.SessionAnonymous {
		t.Fatalf("stale success resurrected the session: %s", got)
	}
	if stored, _ := creds.Load(ctx); !stored.Empty() {
		t.Fatalf("stale success persisted tokens: %+v", stored)
	}
}

func TestLastLoginToResolveWins(t *testing.T) {
	ctx := context.Background()
	started := make(chan string, 2)
	release := make(chan struct{})

	auth := authFunc(func(_ context.Context, email, _ string) (*model.TokenPair, error) {
		started <- email
		if email == "slow@example.com" {
			<-release
			return &model.TokenPair{AccessToken: "slow-token"}, nil
		}
		return nil, errBadCredentials
	})
	c, creds := newController(t, auth)
	c.Init(ctx)

	slow := make(chan error, 1)
	go func() { slow <- c.Login(ctx, "slow@example.com", "s3cret!!") }()
	<-started

	c.Login(ctx, "fast@example.com", "wrong-pass")
	close(release)

	if err := <-slow; err != nil {
		t.Fatalf("slow login: %v", err)
	}
	if got := c.State().Status; got != model.SessionAuthenticated {
		t.Fatalf("expected the last resolution to win, got %s", got)
	}
	if tok, _, _ := store.AccessToken(ctx, creds); tok != "slow-token" {
		t.Fatalf("unexpected stored token %q", tok)
	}
}

func TestForcedLogoutOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	creds := store.NewMemory()
	cl := client.New(srv.URL, creds)
	c := New(cl, creds)

	creds.Save(ctx, "expired", "r")
	c.Init(ctx)
	if !c.IsLoggedIn() {
		t.Fatal("expected optimistic restore")
	}

	if _, err := cl.ListAPIKeys(ctx); !client.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := c.State().Status; got != model.SessionAnonymous {
		t.Fatalf("expected forced logout, got %s", got)
	}
	if stored, _ := creds.Load(ctx); !stored.Empty() {
		t.Fatalf("expected store cleared, got %+v", stored)
	}

	t.Run("ignores rejections of a replaced token", func(t *testing.T) {
		creds.Save(ctx, "good", "")
		c.mu.Lock()
		c.setLocked(model.SessionAuthenticated, "")
		c.mu.Unlock()

		c.handleUnauthorized("list_api_keys", "expired")
		if !c.IsLoggedIn() {
			t.Fatal("a 401 for an older token must not log out the current session")
		}
	})

	t.Run("ignores rejections while anonymous", func(t *testing.T) {
		c.Logout(ctx)
		gen := c.Guard()
		c.handleUnauthorized("list_api_keys", "good")
		if c.Guard() != gen {
			t.Fatal("unexpected transition")
		}
	})
}

func TestGenerationGuard(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, succeed("a", "r"))
	c.Init(ctx)
	c.Login(ctx, "ana@example.com", "s3cret!!")

	gen := c.Guard()
	if !c.Current(gen) {
		t.Fatal("expected generation to be current")
	}

	c.Logout(ctx)
	if c.Current(gen) {
		t.Fatal("logout must invalidate the generation")
	}

	c.Login(ctx, "ana@example.com", "s3cret!!")
	if c.Current(gen) {
		t.Fatal("a new session must not revive an old generation")
	}
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, succeed("a", "r"))

	sub, cancel := c.Subscribe()
	if s := <-sub; s.Status != model.SessionLoading {
		t.Fatalf("expected initial loading state, got %s", s.Status)
	}

	c.Init(ctx)
	c.Login(ctx, "ana@example.com", "s3cret!!")

	select {
	case s := <-sub:
		if s.Status != model.SessionAuthenticated {
			t.Fatalf("expected latest state authenticated, got %s", s.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	cancel()
	cancel()
	if _, ok := <-sub; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestTokenExpiry(t *testing.T) {
	ctx := context.Background()
	c, creds := newController(t, succeed("a", "r"))

	t.Run("no token", func(t *testing.T) {
		if _, ok, err := c.TokenExpiry(ctx); ok || err != nil {
			t.Fatalf("expected no expiry, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("jwt with exp", func(t *testing.T) {
		exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		creds.Save(ctx, unsignedJWT(fmt.Sprintf(`{"sub":"1","exp":%d}`, exp.Unix())), "")

		got, ok, err := c.TokenExpiry(ctx)
		if err != nil || !ok {
			t.Fatalf("expected expiry, got ok=%v err=%v", ok, err)
		}
		if !got.Equal(exp) {
			t.Fatalf("got %v want %v", got, exp)
		}
	})

	t.Run("opaque token", func(t *testing.T) {
		creds.Save(ctx, "not-a-jwt", "")
		if _, ok, err := c.TokenExpiry(ctx); ok || err != nil {
			t.Fatalf("expected no expiry, got ok=%v err=%v", ok, err)
		}
	})
}

func unsignedJWT(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(payload)) + "." +
		enc.EncodeToString([]byte("sig"))
}
