package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

const promotionColumns = `id, code, name, kind, discount_type, value, min_order, buy_quantity, free_quantity,
	is_accumulative, max_discount, start_date, end_date, active, created_at, updated_at`

func (s *Store) ListPromotions(ctx context.Context, activeOnly bool) ([]promotion.Promotion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE ($1::boolean IS FALSE OR active)
		ORDER BY created_at ASC, code ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]promotion.Promotion, 0, 16)
	for rows.Next() {
		p, err := s.scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetPromotion(ctx context.Context, id uuid.UUID) (promotion.Promotion, error) {
	row := s.db.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	return s.promotionRow(row)
}

func (s *Store) GetPromotionByCode(ctx context.Context, code string) (promotion.Promotion, error) {
	row := s.db.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE code = $1`, code)
	return s.promotionRow(row)
}

func (s *Store) CreatePromotion(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	rec := p.Record()
	row := s.db.QueryRow(ctx, `
		INSERT INTO promotions (
			id, code, name, kind, discount_type, value, min_order, buy_quantity, free_quantity,
			is_accumulative, max_discount, start_date, end_date, active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING `+promotionColumns,
		rec.ID, rec.Code, rec.Name, string(rec.Kind), nullableText(string(rec.DiscountType)), rec.Value, rec.MinOrder,
		rec.BuyQuantity, rec.FreeQuantity, rec.IsAccumulative, rec.MaxDiscount,
		toDate(rec.StartDate), toDate(rec.EndDate), rec.Active, rec.CreatedAt, rec.UpdatedAt,
	)
	saved, err := s.promotionRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return promotion.Promotion{}, promotion.ErrCodeTaken
		}
		return promotion.Promotion{}, err
	}
	return saved, nil
}

func (s *Store) UpdatePromotion(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	rec := p.Record()
	row := s.db.QueryRow(ctx, `
		UPDATE promotions
		SET code = $2, name = $3, kind = $4, discount_type = $5, value = $6, min_order = $7,
			buy_quantity = $8, free_quantity = $9, is_accumulative = $10, max_discount = $11,
			start_date = $12, end_date = $13, active = $14, updated_at = $15
		WHERE id = $1
		RETURNING `+promotionColumns,
		rec.ID, rec.Code, rec.Name, string(rec.Kind), nullableText(string(rec.DiscountType)), rec.Value, rec.MinOrder,
		rec.BuyQuantity, rec.FreeQuantity, rec.IsAccumulative, rec.MaxDiscount,
		toDate(rec.StartDate), toDate(rec.EndDate), rec.Active, rec.UpdatedAt,
	)
	saved, err := s.promotionRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return promotion.Promotion{}, promotion.ErrCodeTaken
		}
		return promotion.Promotion{}, err
	}
	return saved, nil
}

func (s *Store) SetPromotionActive(ctx context.Context, id uuid.UUID, active bool) (promotion.Promotion, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE promotions
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+promotionColumns, id, active)
	return s.promotionRow(row)
}

func (s *Store) DeletePromotion(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func (s *Store) promotionRow(row pgx.Row) (promotion.Promotion, error) {
	p, err := s.scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.Promotion{}, promotion.ErrNotFound
		}
		return promotion.Promotion{}, err
	}
	return p, nil
}

func (s *Store) scanPromotion(row pgx.Row) (promotion.Promotion, error) {
	var (
		rec          promotion.Record
		kind         string
		discountType *string
		buy, free    *int32
		start, end   pgtype.Date
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Code,
		&rec.Name,
		&kind,
		&discountType,
		&rec.Value,
		&rec.MinOrder,
		&buy,
		&free,
		&rec.IsAccumulative,
		&rec.MaxDiscount,
		&start,
		&end,
		&rec.Active,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return promotion.Promotion{}, err
	}
	rec.Kind = promotion.Kind(kind)
	if discountType != nil {
		rec.DiscountType = promotion.DiscountType(*discountType)
	}
	if buy != nil {
		v := int(*buy)
		rec.BuyQuantity = &v
	}
	if free != nil {
		v := int(*free)
		rec.FreeQuantity = &v
	}
	rec.StartDate = s.fromDate(start)
	rec.EndDate = s.fromDate(end)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return promotion.FromRecord(rec)
}

func (s *Store) fromDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, loc)
	return &t
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

func nullableText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
