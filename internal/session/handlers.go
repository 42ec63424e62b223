package session

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/common"
	"github.com/noah-isme/backend-quote/internal/quote"
)

// Handler wires quote sessions to HTTP.
type Handler struct {
	Svc *Service
}

type startPayload struct {
	Builder string `json:"builder" validate:"required"`
}

type addItemPayload struct {
	ServiceID string `json:"serviceId" validate:"required"`
	TierID    string `json:"tierId" validate:"required"`
}

type tierPayload struct {
	TierID string `json:"tierId" validate:"required"`
}

type quantityPayload struct {
	Quantity *int `json:"quantity" validate:"required,max=10000"`
}

// Routes mounts the quote endpoints on r. idem wraps mutating routes when non-nil.
func (h *Handler) Routes(r chi.Router, idem func(http.Handler) http.Handler) {
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}
	r.With(idem).Post("/", h.Start)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.End)
		r.Get("/summary", h.Summary)
		r.With(idem).Post("/clear", h.Clear)
		r.With(idem).Patch("/customer", h.SetCustomer)
		r.With(idem).Post("/items", h.AddItem)
		r.Route("/items/{serviceId}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Get("/exists", h.HasItem)
			r.Delete("/", h.RemoveItem)
			r.With(idem).Put("/tier", h.UpdateTier)
			r.With(idem).Put("/quantity", h.UpdateQuantity)
			r.With(idem).Post("/addons/{addOnId}/toggle", h.ToggleAddOn)
		})
	})
}

// Start creates a quote session for a builder.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload startPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	info, err := h.Svc.Start(r.Context(), payload.Builder)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+info.ID)
	common.Data(w, http.StatusCreated, info)
}

// Get returns the session and its cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	info, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, info)
}

// Summary returns the itemised quote.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	summary, err := h.Svc.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, summary)
}

// End deletes the session.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, res, err)
}

// AddItem adds a service at a tier.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload addItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload.ServiceID, payload.TierID)
	h.writeResult(w, res, err)
}

// GetItem returns one line item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	item, ok, err := h.Svc.Item(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not in plan", nil)
		return
	}
	common.Data(w, http.StatusOK, item)
}

// HasItem reports whether a service is in the cart.
func (h *Handler) HasItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ok, err := h.Svc.HasItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"inPlan": ok})
}

// RemoveItem drops a service from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"))
	h.writeResult(w, res, err)
}

// UpdateTier switches a line item's tier.
func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload tierPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Svc.UpdateTier(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"), payload.TierID)
	h.writeResult(w, res, err)
}

// UpdateQuantity sets a line item's quantity. Values below 1 are ignored.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload quantityPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Svc.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"), *payload.Quantity)
	h.writeResult(w, res, err)
}

// ToggleAddOn flips an add-on on a line item.
func (h *Handler) ToggleAddOn(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.Svc.ToggleAddOn(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "serviceId"), chi.URLParam(r, "addOnId"))
	h.writeResult(w, res, err)
}

// SetCustomer merges customer details.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var patch quote.CustomerPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Svc.SetCustomer(r.Context(), chi.URLParam(r, "id"), patch)
	h.writeResult(w, res, err)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, res Result, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

var errorMappings = []common.ErrorMapping{
	{Target: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "quote session not found"},
	{Target: catalog.ErrUnknownBuilder, Status: http.StatusNotFound, Code: "UNKNOWN_BUILDER"},
	{Target: ErrLimitReached, Status: http.StatusServiceUnavailable, Code: "SESSION_LIMIT", Message: "too many active quotes, try again later"},
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, errorMappings...)
}
