package analytics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cafe/internal/analytics"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/invoice"
)

var saigon = time.FixedZone("ICT", 7*3600)

func setup(t *testing.T) (*analytics.Rollup, *analytics.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	now := time.Date(2025, 7, 10, 15, 0, 0, 0, saigon)
	rollup := &analytics.Rollup{R: client, Location: saigon, Retention: 48 * time.Hour}
	svc := &analytics.Service{R: client, Location: saigon, DefaultRange: 7, Now: func() time.Time { return now }}
	return rollup, svc, mr
}

func createdTask(t *testing.T, ev invoice.CreatedEvent) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	body, err := json.Marshal(events.Envelope{
		ID:          uuid.New(),
		Topic:       events.TopicInvoiceCreated,
		AggregateID: ev.InvoiceID,
		OccurredAt:  ev.CreatedAt,
		Payload:     payload,
	})
	require.NoError(t, err)
	return asynq.NewTask(events.TopicInvoiceCreated, body)
}

func sale(at time.Time, subtotal, discount int64, code string) invoice.CreatedEvent {
	return invoice.CreatedEvent{
		InvoiceID:     uuid.New(),
		Number:        "INV-" + at.Format("150405"),
		PaymentMethod: invoice.PaymentQR,
		Subtotal:      subtotal,
		Discount:      discount,
		FinalTotal:    subtotal - discount,
		PromotionCode: code,
		ItemCount:     1,
		CreatedAt:     at.UTC(),
	}
}

func TestRollupCountsEachInvoiceOnce(t *testing.T) {
	rollup, svc, mr := setup(t)
	ctx := context.Background()

	// 06:30 local time, still the previous day in UTC.
	late := time.Date(2025, 7, 10, 6, 30, 0, 0, saigon).AddDate(0, 0, -1)
	first := sale(late, 60_000, 6_000, "TEN")
	task := createdTask(t, first)
	require.NoError(t, rollup.Handle(ctx, task))
	require.NoError(t, rollup.Handle(ctx, task))
	require.NoError(t, rollup.Handle(ctx, createdTask(t, sale(time.Date(2025, 7, 10, 8, 0, 0, 0, saigon), 40_000, 0, ""))))
	require.NoError(t, rollup.Handle(ctx, createdTask(t, sale(time.Date(2025, 7, 10, 9, 0, 0, 0, saigon), 30_000, 10_000, "B1G1"))))
	require.NoError(t, rollup.Handle(ctx, createdTask(t, sale(time.Date(2025, 7, 10, 9, 5, 0, 0, saigon), 30_000, 10_000, "B1G1"))))

	require.Equal(t, "1", mr.HGet("an:sales:2025-07-09", "invoices"))
	require.Equal(t, "3", mr.HGet("an:sales:2025-07-10", "invoices"))
	require.Greater(t, mr.TTL("an:sales:2025-07-10"), time.Duration(0))

	report, err := svc.Sales(ctx, time.Date(2025, 7, 8, 0, 0, 0, 0, saigon), time.Date(2025, 7, 10, 0, 0, 0, 0, saigon))
	require.NoError(t, err)
	require.Len(t, report.Days, 3)
	require.Equal(t, "2025-07-08", report.Days[0].Date)
	require.Zero(t, report.Days[0].Invoices)
	require.Equal(t, int64(54_000), report.Days[1].Revenue)
	require.Equal(t, int64(4), report.Totals.Invoices)
	require.Equal(t, int64(160_000), report.Totals.Subtotal)
	require.Equal(t, int64(26_000), report.Totals.Discount)
	require.Equal(t, int64(134_000), report.Totals.Revenue)

	usage, err := svc.Promotions(ctx, time.Date(2025, 7, 1, 0, 0, 0, 0, saigon), time.Date(2025, 7, 10, 0, 0, 0, 0, saigon))
	require.NoError(t, err)
	require.Equal(t, []analytics.PromotionUsage{
		{Code: "B1G1", Uses: 2, Discount: 20_000},
		{Code: "TEN", Uses: 1, Discount: 6_000},
	}, usage)
}

func TestRollupSkipsMalformedTasks(t *testing.T) {
	rollup, _, _ := setup(t)
	err := rollup.Handle(context.Background(), asynq.NewTask(events.TopicInvoiceCreated, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	body, _ := json.Marshal(events.Envelope{ID: uuid.New(), Topic: events.TopicInvoiceCreated, Payload: json.RawMessage(`{}`)})
	err = rollup.Handle(context.Background(), asynq.NewTask(events.TopicInvoiceCreated, body))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRollupRetriesAfterRedisFailure(t *testing.T) {
	rollup, _, mr := setup(t)
	ev := sale(time.Date(2025, 7, 10, 8, 0, 0, 0, saigon), 10_000, 0, "")
	mr.SetError("server down")
	require.Error(t, rollup.Handle(context.Background(), createdTask(t, ev)))
	mr.SetError("")
	require.NoError(t, rollup.Handle(context.Background(), createdTask(t, ev)))
	require.Equal(t, "1", mr.HGet("an:sales:2025-07-10", "invoices"))
}

func TestSalesRejectsBadRanges(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()
	day := time.Date(2025, 7, 10, 0, 0, 0, 0, saigon)
	_, err := svc.Sales(ctx, day, day.AddDate(0, 0, -1))
	require.ErrorIs(t, err, analytics.ErrInvalidRange)
	_, err = svc.Sales(ctx, day.AddDate(-2, 0, 0), day)
	require.ErrorIs(t, err, analytics.ErrInvalidRange)
}

func TestHandlers(t *testing.T) {
	rollup, svc, _ := setup(t)
	require.NoError(t, rollup.Handle(context.Background(), createdTask(t, sale(time.Date(2025, 7, 10, 8, 0, 0, 0, saigon), 50_000, 5_000, "FIVE"))))
	h := &analytics.Handler{Svc: svc}

	rec := httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?days=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sales struct {
		Data analytics.SalesReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sales))
	require.Equal(t, "2025-07-08", sales.Data.From)
	require.Equal(t, "2025-07-10", sales.Data.To)
	require.Equal(t, int64(45_000), sales.Data.Totals.Revenue)

	rec = httptest.NewRecorder()
	h.Promotions(rec, httptest.NewRequest(http.MethodGet, "/analytics/promotions?from=2025-07-10&to=2025-07-10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"FIVE"`)

	rec = httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?from=2025-07-10", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?from=2025-07-10&to=2025-07-01", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
