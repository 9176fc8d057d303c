package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/httputil"
	"github.com/searchapi-console/internal/model"
)

// Session is the part of the session controller the API drives.
type Session interface {
	State() model.SessionState
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	TokenExpiry(ctx context.Context) (time.Time, bool, error)
}

type sessionResponse struct {
	model.SessionState
	LoggedIn       bool       `json:"logged_in"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func renderSession(ctx context.Context, s Session) sessionResponse {
	state := s.State()
	resp := sessionResponse{SessionState: state, LoggedIn: state.Status.LoggedIn()}
	if resp.LoggedIn {
		exp, ok, err := s.TokenExpiry(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read token expiry")
		} else if ok {
			resp.TokenExpiresAt = &exp
		}
	}
	return resp
}

// --- Get Session ---

type GetSessionHandler struct {
	session Session
}

func NewGetSessionHandler(s Session) *GetSessionHandler {
	return &GetSessionHandler{session: s}
}

func (h *GetSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, renderSession(r.Context(), h.session))
}

// --- Login ---

type LoginHandler struct {
	session Session
}

func NewLoginHandler(s Session) *LoginHandler {
	return &LoginHandler{session: s}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON request body")
		return
	}

	if err := h.session.Login(r.Context(), req.Email, req.Password); err != nil {
		RespondErr(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, renderSession(r.Context(), h.session))
}

// --- Logout ---

type LogoutHandler struct {
	session Session
}

func NewLogoutHandler(s Session) *LogoutHandler {
	return &LogoutHandler{session: s}
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		RespondErr(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, renderSession(r.Context(), h.session))
}

// --- Register ---

// Registrar creates dashboard accounts.
type Registrar interface {
	Register(ctx context.Context, r model.Registration) (*model.Account, error)
}

type RegisterHandler struct {
	registrar Registrar
}

func NewRegisterHandler(r Registrar) *RegisterHandler {
	return &RegisterHandler{registrar: r}
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := httputil.DecodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON request body")
		return
	}

	account, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		RespondErr(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}
