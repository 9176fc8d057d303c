package handler

import (
	"net/http"
	"time"

	"github.com/searchapi-console/internal/model"
)

// StateReader exposes the current session state.
type StateReader interface {
	State() model.SessionState
}

type HealthHandler struct {
	session   StateReader
	apiURL    string
	version   string
	startTime time.Time
}

func NewHealthHandler(s StateReader, apiURL, version string) *HealthHandler {
	return &HealthHandler{
		session:   s,
		apiURL:    apiURL,
		version:   version,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	APIURL        string              `json:"api_url"`
	Session       model.SessionStatus `json:"session"`
	UptimeSeconds int64               `json:"uptime_seconds"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       h.version,
		APIURL:        h.apiURL,
		Session:       h.session.State().Status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}
