package invoice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

const maxSyncEntries = 500

// Handler exposes checkout and invoice endpoints.
type Handler struct {
	Svc            *Service
	Location       *time.Location
	DefaultPerPage int
}

// Checkout records a sale.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return
	}
	var in CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if in.CashierID == "" {
		in.CashierID, _ = common.CashierID(r.Context())
	}
	inv, duplicate, err := h.Svc.Checkout(r.Context(), in)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	common.JSON(w, status, map[string]any{"data": inv, "duplicate": duplicate})
}

// Sync replays a batch of offline checkouts.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return
	}
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if len(req.Entries) == 0 || len(req.Entries) > maxSyncEntries {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "entries must contain between 1 and 500 checkouts", nil)
		return
	}
	if cashier, ok := common.CashierID(r.Context()); ok {
		for i := range req.Entries {
			if req.Entries[i].CashierID == "" {
				req.Entries[i].CashierID = cashier
			}
		}
	}
	resp, err := h.Svc.SyncOffline(r.Context(), req)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offline sync interrupted", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// List returns invoices filtered by ?from= and ?to= (YYYY-MM-DD, inclusive).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	var f Filter
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be YYYY-MM-DD", nil)
			return
		}
		f.From = from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "to must be YYYY-MM-DD", nil)
			return
		}
		f.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	perPageDefault := h.DefaultPerPage
	if perPageDefault <= 0 {
		perPageDefault = 20
	}
	page, perPage := common.ParsePagination(r, perPageDefault)
	f.Limit = perPage
	f.Offset = common.Offset(page, perPage)

	list, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	if list == nil {
		list = []Invoice{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get returns a single invoice.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invoice service not configured", nil)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

// MapError converts checkout errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "invoice not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidPayment):
		return common.NewAppError("BAD_REQUEST", "payment method must be cash, qr or card", http.StatusBadRequest, err)
	case errors.Is(err, ErrInsufficientCash):
		return common.NewAppError("INSUFFICIENT_CASH", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrDuplicate):
		return common.NewAppError("CONFLICT", err.Error(), http.StatusConflict, err)
	case errors.Is(err, cart.ErrInvalidInput):
		return common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	}
	return promotion.MapError(err)
}
