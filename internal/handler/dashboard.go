package handler

import (
	"net/http"

	"github.com/searchapi-console/internal/dashboard"
	"github.com/searchapi-console/internal/model"
)

type DashboardHandler struct {
	loader *dashboard.Loader
}

func NewDashboardHandler(l *dashboard.Loader) *DashboardHandler {
	return &DashboardHandler{loader: l}
}

// Each half reports its own error; the response is 200 as long as the
// dashboard was not discarded.
type dashboardResponse struct {
	Usage         *dashboard.Usage `json:"usage"`
	UsageError    *ErrorResponse   `json:"usage_error,omitempty"`
	Packages      []model.Package  `json:"packages"`
	PackagesError *ErrorResponse   `json:"packages_error,omitempty"`
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.loader.Load(r.Context())
	if err != nil {
		RespondErr(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, dashboardResponse{
		Usage:         res.Usage,
		UsageError:    errorOrNil(res.UsageErr),
		Packages:      res.Packages,
		PackagesError: errorOrNil(res.PackagesErr),
	})
}
