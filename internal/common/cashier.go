package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const cashierIDKey ctxKey = "till/cashier-id"

// CashierHeader carries the identifier of the cashier operating the till.
const CashierHeader = "X-Cashier-ID"

// WithCashierID stores the cashier identifier on the provided context.
func WithCashierID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cashierIDKey, id)
}

// CashierID extracts the cashier identifier from the context if present.
func CashierID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cashierIDKey).(string)
	return id, ok && id != ""
}

// Cashier copies the X-Cashier-ID header into the request context.
func Cashier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(CashierHeader)); id != "" {
			r = r.WithContext(WithCashierID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
