package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

const invoiceColumns = `id, number, client_ref, cashier_id, payment_method, items, subtotal, discount, final_total,
	cash_received, change_due, promotion_id, promotion_code, promotion_name, promotion_type, promotion_value,
	explanation, status, source, created_at, synced_at`

func (s *Store) CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("encode items: %w", err)
	}
	var explanation []byte
	if inv.Explanation != nil {
		if explanation, err = json.Marshal(inv.Explanation); err != nil {
			return invoice.Invoice{}, fmt.Errorf("encode explanation: %w", err)
		}
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO invoices (
			id, number, client_ref, cashier_id, payment_method, items, subtotal, discount, final_total,
			cash_received, change_due, promotion_id, promotion_code, promotion_name, promotion_type, promotion_value,
			explanation, status, source, created_at, synced_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING `+invoiceColumns,
		inv.ID, inv.Number, nullableText(inv.ClientRef), inv.CashierID, string(inv.PaymentMethod), items,
		inv.Subtotal, inv.Discount, inv.FinalTotal, inv.CashReceived, inv.Change, inv.PromotionID,
		inv.PromotionCode, inv.PromotionName, inv.PromotionType, inv.PromotionValue, explanation,
		string(inv.Status), string(inv.Source), inv.CreatedAt, inv.SyncedAt,
	)
	saved, err := scanInvoice(row)
	if err != nil {
		if isUniqueViolation(err) {
			return invoice.Invoice{}, invoice.ErrDuplicate
		}
		return invoice.Invoice{}, err
	}
	return saved, nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	return invoiceRow(s.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (s *Store) GetInvoiceByClientRef(ctx context.Context, clientRef string) (invoice.Invoice, error) {
	return invoiceRow(s.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE client_ref = $1`, clientRef))
}

// ListInvoices returns invoices newest first with the total matching count.
func (s *Store) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, int, error) {
	from, to := nullableTime(f.From), nullableTime(f.To)
	var total int
	if err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM invoices
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
	`, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC, number DESC
		LIMIT $3 OFFSET $4
	`, from, to, limit, max(f.Offset, 0))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]invoice.Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func invoiceRow(row pgx.Row) (invoice.Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrNotFound
		}
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (invoice.Invoice, error) {
	var (
		inv         invoice.Invoice
		clientRef   *string
		method      string
		status      string
		source      string
		items       []byte
		explanation []byte
	)
	if err := row.Scan(
		&inv.ID,
		&inv.Number,
		&clientRef,
		&inv.CashierID,
		&method,
		&items,
		&inv.Subtotal,
		&inv.Discount,
		&inv.FinalTotal,
		&inv.CashReceived,
		&inv.Change,
		&inv.PromotionID,
		&inv.PromotionCode,
		&inv.PromotionName,
		&inv.PromotionType,
		&inv.PromotionValue,
		&explanation,
		&status,
		&source,
		&inv.CreatedAt,
		&inv.SyncedAt,
	); err != nil {
		return invoice.Invoice{}, err
	}
	if clientRef != nil {
		inv.ClientRef = *clientRef
	}
	inv.PaymentMethod = invoice.PaymentMethod(method)
	inv.Status = invoice.Status(status)
	inv.Source = invoice.Source(source)
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return invoice.Invoice{}, fmt.Errorf("decode items: %w", err)
	}
	if len(explanation) > 0 {
		inv.Explanation = &promotion.Explanation{}
		if err := json.Unmarshal(explanation, inv.Explanation); err != nil {
			return invoice.Invoice{}, fmt.Errorf("decode explanation: %w", err)
		}
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.SyncedAt = inv.SyncedAt.UTC()
	return inv, nil
}
