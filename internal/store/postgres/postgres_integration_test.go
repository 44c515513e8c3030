package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/db"
	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/promotion"
	"github.com/noah-isme/backend-cafe/internal/store/postgres"
)

func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.Up(url))
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, url, "cafe-test", nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(ctx, `TRUNCATE invoices, promotions`)
	require.NoError(t, err)
	loc := time.FixedZone("ICT", 7*3600)
	return postgres.New(pool, loc)
}

func TestPromotionLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, store.Location)
	maxDiscount := int64(20_000)
	now := time.Now().UTC().Truncate(time.Microsecond)

	created, err := store.CreatePromotion(ctx, promotion.Promotion{
		ID:          uuid.New(),
		Code:        "SUMMER",
		Name:        "Summer",
		Rule:        promotion.Regular{DiscountType: promotion.DiscountPercent, Value: 10},
		MaxDiscount: &maxDiscount,
		StartDate:   &start,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	require.Equal(t, start, *created.StartDate)
	require.Nil(t, created.EndDate)

	_, err = store.CreatePromotion(ctx, promotion.Promotion{
		ID:        uuid.New(),
		Code:      "SUMMER",
		Name:      "Dup",
		Rule:      promotion.BuyXGetY{BuyQuantity: 1, FreeQuantity: 1},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.ErrorIs(t, err, promotion.ErrCodeTaken)

	byCode, err := store.GetPromotionByCode(ctx, "SUMMER")
	require.NoError(t, err)
	require.Equal(t, created.ID, byCode.ID)

	off, err := store.SetPromotionActive(ctx, created.ID, false)
	require.NoError(t, err)
	require.False(t, off.Active)

	active, err := store.ListPromotions(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, store.DeletePromotion(ctx, created.ID))
	_, err = store.GetPromotion(ctx, created.ID)
	require.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestInvoiceClientRefIsUnique(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	inv := invoice.Invoice{
		ID:            uuid.New(),
		Number:        "INV-1",
		ClientRef:     "till-1-0001",
		PaymentMethod: invoice.PaymentQR,
		Items:         []cart.Item{{ItemKey: "latte", ProductID: "latte", UnitPrice: 30_000, Quantity: 1, Subtotal: 30_000}},
		Subtotal:      30_000,
		FinalTotal:    30_000,
		Status:        invoice.StatusPaid,
		Source:        invoice.SourceOffline,
		CreatedAt:     now,
		SyncedAt:      now,
	}
	saved, err := store.CreateInvoice(ctx, inv)
	require.NoError(t, err)
	require.Equal(t, inv.Items, saved.Items)

	inv.ID = uuid.New()
	inv.Number = "INV-2"
	_, err = store.CreateInvoice(ctx, inv)
	require.ErrorIs(t, err, invoice.ErrDuplicate)

	list, total, err := store.ListInvoices(ctx, invoice.Filter{From: now.Add(-time.Minute), Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
}
