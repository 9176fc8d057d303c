package handler

import (
	"context"
	"net/http"

	"github.com/searchapi-console/internal/httputil"
	"github.com/searchapi-console/internal/middleware"
	"github.com/searchapi-console/internal/model"
)

// Searcher runs a search with a caller-supplied API key.
type Searcher interface {
	Search(ctx context.Context, apiKey string, params model.SearchParams) (*model.SearchResult, error)
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{searcher: s}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.GetSearchKey(r.Context())
	if apiKey == "" {
		RespondError(w, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var params model.SearchParams
	if err := httputil.DecodeJSON(r, &params); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON request body")
		return
	}

	res, err := h.searcher.Search(r.Context(), apiKey, params)
	if err != nil {
		RespondErr(w, err)
		return
	}

	// Pass the provider document through untouched when we have it.
	if len(res.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(res.Raw)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
