package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Handler exposes cart quoting endpoints.
type Handler struct {
	Svc *Service
}

// Quote prices the submitted cart.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var in QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidInput) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	obs.WriteError(w, r, promotion.MapError(err))
}
