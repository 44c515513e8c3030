package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

const (
	dayLayout        = "2006-01-02"
	defaultRetention = 400 * 24 * time.Hour
)

// Daily hash fields.
const (
	fieldInvoices = "invoices"
	fieldSubtotal = "subtotal"
	fieldDiscount = "discount"
	fieldRevenue  = "revenue"
)

func seenKey(invoiceID string) string { return "an:seen:" + invoiceID }
func salesKey(day string) string      { return "an:sales:" + day }
func promoKey(day string) string      { return "an:promo:" + day }

// Rollup folds invoice.created events into daily Redis counters.
type Rollup struct {
	R         *redis.Client
	Location  *time.Location
	Retention time.Duration
	Logger    zerolog.Logger
}

// Handle implements asynq.Handler.
func (h *Rollup) Handle(ctx context.Context, task *asynq.Task) error {
	err := h.handle(ctx, task)
	switch {
	case errors.Is(err, errAlreadyCounted):
		obs.IncAnalyticsRollup("duplicate")
		return nil
	case err != nil:
		obs.IncAnalyticsRollup("error")
		return err
	}
	obs.IncAnalyticsRollup("counted")
	return nil
}

var errAlreadyCounted = errors.New("invoice already counted")

func (h *Rollup) handle(ctx context.Context, task *asynq.Task) error {
	if h == nil || h.R == nil {
		return errors.New("analytics rollup not configured")
	}
	ev, err := events.Decode(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	var created invoice.CreatedEvent
	if err := ev.DecodePayload(&created); err != nil {
		return fmt.Errorf("decode invoice.created: %v: %w", err, asynq.SkipRetry)
	}
	if created.InvoiceID == uuid.Nil || created.CreatedAt.IsZero() {
		return fmt.Errorf("invoice.created without invoice id or time: %w", asynq.SkipRetry)
	}

	retention := h.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	marker := seenKey(created.InvoiceID.String())
	first, err := h.R.SetNX(ctx, marker, ev.ID.String(), retention).Result()
	if err != nil {
		return fmt.Errorf("mark invoice: %w", err)
	}
	if !first {
		return errAlreadyCounted
	}

	day := created.CreatedAt.In(h.location()).Format(dayLayout)
	_, err = h.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		sk := salesKey(day)
		p.HIncrBy(ctx, sk, fieldInvoices, 1)
		p.HIncrBy(ctx, sk, fieldSubtotal, created.Subtotal)
		p.HIncrBy(ctx, sk, fieldDiscount, created.Discount)
		p.HIncrBy(ctx, sk, fieldRevenue, created.FinalTotal)
		p.Expire(ctx, sk, retention)
		if code := strings.TrimSpace(created.PromotionCode); code != "" {
			pk := promoKey(day)
			p.HIncrBy(ctx, pk, code, 1)
			p.HIncrBy(ctx, pk, code+":discount", created.Discount)
			p.Expire(ctx, pk, retention)
		}
		return nil
	})
	if err != nil {
		if delErr := h.R.Del(context.WithoutCancel(ctx), marker).Err(); delErr != nil {
			h.Logger.Warn().Err(delErr).Str("invoice", created.Number).Msg("release analytics marker failed")
		}
		return fmt.Errorf("increment daily counters: %w", err)
	}
	h.Logger.Debug().Str("invoice", created.Number).Str("day", day).Msg("invoice rolled into analytics")
	return nil
}

func (h *Rollup) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}
