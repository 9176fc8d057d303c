package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/httputil"
	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/quota"
)

type keyItem struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Token        string             `json:"token"`
	Visible      bool               `json:"visible"`
	Status       model.APIKeyStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	Package      string             `json:"package,omitempty"`
	RequestsUsed int64              `json:"requests_used"`
	RequestLimit int64              `json:"request_limit"`
	Percentage   float64            `json:"percentage"`
	Level        quota.Level        `json:"level"`
}

func toKeyItem(reg *apikeys.Registry, k model.APIKey) keyItem {
	usage := k.Usage()
	pct := quota.PercentageUsed(usage)
	return keyItem{
		ID:           k.ID,
		Name:         k.Name,
		Token:        reg.DisplayToken(k),
		Visible:      reg.IsVisible(k.ID),
		Status:       k.Status(),
		CreatedAt:    k.CreatedAt,
		Package:      k.Package.Name,
		RequestsUsed: usage.RequestsUsed,
		RequestLimit: usage.RequestLimit,
		Percentage:   pct,
		Level:        quota.StatusLevel(pct),
	}
}

func parseKeyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// --- List Keys ---

type ListKeysHandler struct {
	registry *apikeys.Registry
}

func NewListKeysHandler(reg *apikeys.Registry) *ListKeysHandler {
	return &ListKeysHandler{registry: reg}
}

type listKeysResponse struct {
	Keys       []keyItem     `json:"keys"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
	Filtered   int           `json:"filtered"`
	Total      int           `json:"total"`
	Stats      apikeys.Stats `json:"stats"`
}

func (h *ListKeysHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := httputil.ParsePage(q.Get("page"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	status, err := apikeys.ParseStatusFilter(q.Get("status"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	refresh, err := httputil.ParseBool(q.Get("refresh"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if refresh || !h.registry.Loaded() {
		if err := h.registry.Refresh(r.Context()); err != nil {
			RespondErr(w, err)
			return
		}
	}

	// Each request carries its own selection; the registry's stateful
	// filter belongs to single-consumer callers.
	view := h.registry.ViewOf(apikeys.Filter{Query: q.Get("q"), Status: status, Page: page})

	items := make([]keyItem, 0, len(view.Items))
	for _, k := range view.Items {
		items = append(items, toKeyItem(h.registry, k))
	}

	RespondJSON(w, http.StatusOK, listKeysResponse{
		Keys:       items,
		Page:       view.Page,
		PageSize:   view.PageSize,
		TotalPages: view.TotalPages,
		Filtered:   view.Filtered,
		Total:      view.Total,
		Stats:      h.registry.Stats(),
	})
}

// --- Create Key ---

type CreateKeyHandler struct {
	registry *apikeys.Registry
}

func NewCreateKeyHandler(reg *apikeys.Registry) *CreateKeyHandler {
	return &CreateKeyHandler{registry: reg}
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// The full token is returned once, at creation.
type createKeyResponse struct {
	keyItem
	Token string `json:"token"`
}

func (h *CreateKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON request body")
		return
	}

	key, err := h.registry.Create(r.Context(), req.Name)
	if err != nil {
		RespondErr(w, err)
		return
	}

	log.Info().Int64("key_id", key.ID).Msg("api key created")
	RespondJSON(w, http.StatusCreated, createKeyResponse{
		keyItem: toKeyItem(h.registry, *key),
		Token:   key.Token,
	})
}

// --- Delete Key ---

type DeleteKeyHandler struct {
	registry *apikeys.Registry
}

func NewDeleteKeyHandler(reg *apikeys.Registry) *DeleteKeyHandler {
	return &DeleteKeyHandler{registry: reg}
}

func (h *DeleteKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseKeyID(r)
	if !ok {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid API key ID")
		return
	}

	if err := h.registry.Remove(r.Context(), id); err != nil {
		RespondErr(w, err)
		return
	}

	log.Info().Int64("key_id", id).Msg("api key deleted")
	w.WriteHeader(http.StatusNoContent)
}

// --- Toggle Visibility ---

type ToggleVisibilityHandler struct {
	registry *apikeys.Registry
}

func NewToggleVisibilityHandler(reg *apikeys.Registry) *ToggleVisibilityHandler {
	return &ToggleVisibilityHandler{registry: reg}
}

type visibilityResponse struct {
	ID      int64 `json:"id"`
	Visible bool  `json:"visible"`
}

func (h *ToggleVisibilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseKeyID(r)
	if !ok {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid API key ID")
		return
	}

	RespondJSON(w, http.StatusOK, visibilityResponse{ID: id, Visible: h.registry.ToggleVisibility(id)})
}
