package obs

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/common"
)

type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// Log returns the request-scoped logger, or fallback when the request carries none.
func Log(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if ctx == nil {
		return &fallback
	}
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

// WriteError renders err through common.WriteError. Errors that do not map to a client
// error are logged on the request logger first.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus >= http.StatusInternalServerError {
		Log(r.Context(), zerolog.Nop()).Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
	}
	common.WriteError(w, err)
}
