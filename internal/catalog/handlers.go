package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-quote/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Builders handles GET /api/v1/builders.
func (h *Handler) Builders(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.service.Builders(r.Context()))
}

// Catalog handles GET /api/v1/builders/{builder}/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	view, err := h.service.Catalog(r.Context(), chi.URLParam(r, "builder"))
	if err != nil {
		common.WriteError(w, err, common.ErrorMapping{Target: ErrUnknownBuilder, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "builder not found"})
		return
	}
	etag := `"` + view.Version + `"`
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Values("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// etagMatches applies the weak comparison If-None-Match uses: any listed tag, with or
// without a W/ prefix, or "*".
func etagMatches(headers []string, etag string) bool {
	for _, header := range headers {
		for _, candidate := range strings.Split(header, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
				return true
			}
		}
	}
	return false
}
