package promotion

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

// Handler exposes promotion management and preview endpoints.
type Handler struct {
	Svc *Service
}

type activeRequest struct {
	Active *bool `json:"active"`
}

type previewRequest struct {
	Promotion Ref        `json:"promotion"`
	Items     []LineItem `json:"items"`
}

// List returns promotions. ?active=true limits the list to active promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	activeOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "active must be a boolean", nil)
			return
		}
		activeOnly = parsed
	}
	list, err := h.Svc.List(r.Context(), activeOnly)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	if list == nil {
		list = []Promotion{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// Get returns a single promotion.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create registers a new promotion.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update replaces an existing promotion.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	p, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// SetActive switches a promotion on or off.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "active is required", nil)
		return
	}
	p, err := h.Svc.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete removes a promotion.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview evaluates a promotion against engine line items without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 || it.UnitPrice < 0 || it.AddOnTotal < 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "items require positive quantity and non-negative prices", nil)
			return
		}
	}
	res, err := h.Svc.Preview(r.Context(), req.Promotion, req.Items)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// MapError converts promotion errors into API errors.
func MapError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return common.NewAppError("VALIDATION_ERROR", "invalid promotion", http.StatusBadRequest, err).WithDetails(verr.Fields)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "promotion not found", http.StatusNotFound, err)
	case errors.Is(err, ErrCodeTaken):
		return common.NewAppError("CONFLICT", "promotion code already exists", http.StatusConflict, err)
	case errors.Is(err, ErrInactive):
		return common.NewAppError("PROMOTION_INACTIVE", "promotion is inactive", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrMixedShape):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	}
	return err
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return uuid.Nil, false
	}
	return id, true
}
