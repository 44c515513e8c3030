package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-cafe/internal/analytics"
	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/health"
	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/promotion"
	"github.com/noah-isme/backend-cafe/internal/ratelimit"
	"github.com/noah-isme/backend-cafe/internal/recipe"
	"github.com/noah-isme/backend-cafe/internal/security"
)

// Router mounts every HTTP endpoint of the café API.
func (d *Dependencies) Router() http.Handler {
	cfg := d.Config
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	previewLimit := ratelimit.Handler{
		Limiter: d.PreviewLimiter,
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("preview rate limiter unavailable") },
	}

	promotionHandler := &promotion.Handler{Svc: d.Promotions}
	cartHandler := &cart.Handler{Svc: d.Carts}
	invoiceHandler := &invoice.Handler{Svc: d.Invoices, Location: cfg.Location}
	analyticsHandler := &analytics.Handler{Svc: d.Analytics}
	recipeHandler := &recipe.Handler{}
	healthHandler := health.Handler{Checker: health.Probes{DB: d.dbPinger(), Redis: d.Redis}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.Tracing("cafe-api"))
	}
	r.Use(common.Cashier)
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/promotions", func(p chi.Router) {
			p.Get("/", promotionHandler.List)
			p.Post("/", promotionHandler.Create)
			p.With(previewLimit.Middleware).Post("/preview", promotionHandler.Preview)
			p.Route("/{id}", func(one chi.Router) {
				one.Get("/", promotionHandler.Get)
				one.Put("/", promotionHandler.Update)
				one.Delete("/", promotionHandler.Delete)
				one.Patch("/active", promotionHandler.SetActive)
			})
		})

		v.With(previewLimit.Middleware).Post("/cart/quote", cartHandler.Quote)
		v.With(idem.Middleware).Post("/checkout", invoiceHandler.Checkout)

		v.Route("/invoices", func(inv chi.Router) {
			inv.Get("/", invoiceHandler.List)
			inv.With(idem.Middleware).Post("/sync", invoiceHandler.Sync)
			inv.Get("/{id}", invoiceHandler.Get)
		})

		v.Route("/analytics", func(an chi.Router) {
			an.Get("/sales", analyticsHandler.Sales)
			an.Get("/promotions", analyticsHandler.Promotions)
		})

		v.Post("/recipes/cost", recipeHandler.Cost)
	})
	return r
}

func (d *Dependencies) dbPinger() health.Pinger {
	if d.DB == nil {
		return nil
	}
	return d.DB
}
