package analytics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/backend-cafe/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Sales returns daily sales for ?from=&to= (YYYY-MM-DD) or the last ?days= days.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.Svc.Sales(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

// Promotions returns promotion usage for the requested window.
func (h *Handler) Promotions(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	usage, err := h.Svc.Promotions(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": usage})
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	if fromStr == "" && toStr == "" {
		from, to := h.Svc.DefaultWindow(common.AtoiDefault(q.Get("days"), 0))
		return from, to, true
	}
	if fromStr == "" || toStr == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from and to must be provided together", nil)
		return time.Time{}, time.Time{}, false
	}
	loc := h.Svc.location()
	from, err := time.ParseInLocation(dayLayout, fromStr, loc)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
		return time.Time{}, time.Time{}, false
	}
	to, err := time.ParseInLocation(dayLayout, toStr, loc)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, context.Canceled):
		common.JSONError(w, http.StatusServiceUnavailable, "ANALYTICS_ERROR", "request cancelled", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "analytics unavailable", nil)
	}
}
