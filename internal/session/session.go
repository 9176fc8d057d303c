package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/store"
)

// forcedLogoutTimeout bounds the store I/O done from the unauthorized
// hook, which has no caller context.
const forcedLogoutTimeout = 5 * time.Second

// ErrSuperseded is returned by Login when a logout happened while the
// attempt was in flight. The attempt's result was discarded.
var ErrSuperseded = errors.New("login attempt superseded by logout")

// Authenticator exchanges credentials for a token pair.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.TokenPair, error)
}

type unauthorizedSource interface {
	OnUnauthorized(fn client.UnauthorizedFunc)
}

// Controller owns the dashboard session. It is the only writer of the
// credential store.
type Controller struct {
	auth  Authenticator
	creds store.CredentialStore
	now   func() time.Time

	mu       sync.Mutex
	state    model.SessionState
	epoch    uint64 // bumped on every logout; login attempts commit only under the epoch they started in
	inflight int
	subs     map[int]chan model.SessionState
	nextSub  int
}

// New returns a controller in the Loading state. If auth reports
// authorization failures (as *client.Client does), the controller
// subscribes to them and forces a logout.
func New(auth Authenticator, creds store.CredentialStore) *Controller {
	c := &Controller{
		auth:  auth,
		creds: creds,
		now:   time.Now,
		subs:  make(map[int]chan model.SessionState),
	}
	c.state = model.SessionState{Status: model.SessionLoading, Since: c.now()}

	if src, ok := auth.(unauthorizedSource); ok {
		src.OnUnauthorized(c.handleUnauthorized)
	}
	return c
}

// Init resolves the Loading state from the persisted token. Token
// presence is trusted without a validation call.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != model.SessionLoading {
		return nil
	}

	_, ok, err := store.AccessToken(ctx, c.creds)
	if err != nil {
		c.setLocked(model.SessionAnonymous, "")
		return fmt.Errorf("reading credentials: %w", err)
	}
	if ok {
		c.setLocked(model.SessionAuthenticated, "")
		log.Debug().Msg("restored persisted session")
		return nil
	}
	c.setLocked(model.SessionAnonymous, "")
	return nil
}

// Login authenticates and commits the result unless a logout happened
// while the request was in flight. Among overlapping attempts the last
// one to resolve wins.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.mu.Lock()
	epoch := c.epoch
	c.inflight++
	c.setLocked(model.SessionAuthenticating, "")
	c.mu.Unlock()

	tokens, err := c.auth.Login(ctx, email, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if epoch != c.epoch {
		log.Debug().Msg("discarding login result after logout")
		return ErrSuperseded
	}

	if err != nil {
		if clearErr := c.creds.Clear(ctx); clearErr != nil {
			log.Error().Err(clearErr).Msg("failed to clear credentials after failed login")
		}
		c.setLocked(model.SessionAuthenticationFailed, client.Message(err))
		return err
	}

	if err := c.creds.Save(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		c.setLocked(model.SessionAuthenticationFailed, "could not persist the session")
		return fmt.Errorf("saving credentials: %w", err)
	}
	c.setLocked(model.SessionAuthenticated, "")
	log.Info().Msg("session established")
	return nil
}

// Logout clears the credential store and returns to Anonymous. It is a
// no-op when already logged out with no login in flight.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight == 0 && (c.state.Status == model.SessionAnonymous || c.state.Status == model.SessionAuthenticationFailed) {
		return nil
	}
	return c.logoutLocked(ctx)
}

func (c *Controller) logoutLocked(ctx context.Context) error {
	c.epoch++
	err := c.creds.Clear(ctx)
	c.setLocked(model.SessionAnonymous, "")
	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// handleUnauthorized forces a logout when a bearer call was rejected
// with the token that is still current. Rejections of a token that a
// newer login already replaced are ignored.
func (c *Controller) handleUnauthorized(operation, accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != model.SessionAuthenticated || accessToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), forcedLogoutTimeout)
	defer cancel()

	current, _, err := store.AccessToken(ctx, c.creds)
	if err != nil {
		log.Error().Err(err).Msg("failed to read credentials for forced logout")
		return
	}
	if current != accessToken {
		return
	}

	log.Warn().Str("operation", operation).Msg("session rejected by server, logging out")
	if err := c.logoutLocked(ctx); err != nil {
		log.Error().Err(err).Msg("forced logout")
	}
}

// State returns a snapshot of the current session state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsLoggedIn() bool {
	return c.State().Status.LoggedIn()
}

// Guard returns the current session generation. Consumers capture it
// before a fetch and check Current afterwards.
func (c *Controller) Guard() uint64 {
	return c.State().Generation
}

// Current reports whether gen still identifies a live authenticated
// session.
func (c *Controller) Current(gen uint64) bool {
	s := c.State()
	return s.Generation == gen && s.Status == model.SessionAuthenticated
}

// Subscribe returns a channel that receives the current state and then
// every change. Slow receivers only see the latest state. The cancel
// func closes the channel.
func (c *Controller) Subscribe() (<-chan model.SessionState, func()) {
	ch := make(chan model.SessionState, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	cancel := sync.OnceFunc(func() {
		c.mu.Lock()
		delete(c.subs, id)
		close(ch)
		c.mu.Unlock()
	})
	return ch, cancel
}

// TokenExpiry reports the exp claim of the stored access token. The
// token is not verified; the value is for display only.
func (c *Controller) TokenExpiry(ctx context.Context) (time.Time, bool, error) {
	token, ok, err := store.AccessToken(ctx, c.creds)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		// Opaque tokens are valid too.
		return time.Time{}, false, nil
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// setLocked applies a transition. The generation moves whenever the
// session enters or leaves Authenticated.
func (c *Controller) setLocked(status model.SessionStatus, lastError string) {
	if c.state.Status == model.SessionAuthenticated || status == model.SessionAuthenticated {
		c.state.Generation++
	}
	c.state.Status = status
	c.state.LastError = lastError
	c.state.Since = c.now()

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.state:
		default:
		}
	}
}
