package promotion

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the promotion does not exist.
	ErrNotFound = errors.New("promotion not found")
	// ErrCodeTaken indicates another promotion already uses the code.
	ErrCodeTaken = errors.New("promotion code already exists")
	// ErrInactive indicates the promotion exists but is switched off.
	ErrInactive = errors.New("promotion is inactive")
)

// Store persists promotions.
type Store interface {
	ListPromotions(ctx context.Context, activeOnly bool) ([]Promotion, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (Promotion, error)
	GetPromotionByCode(ctx context.Context, code string) (Promotion, error)
	CreatePromotion(ctx context.Context, p Promotion) (Promotion, error)
	UpdatePromotion(ctx context.Context, p Promotion) (Promotion, error)
	SetPromotionActive(ctx context.Context, id uuid.UUID, active bool) (Promotion, error)
	DeletePromotion(ctx context.Context, id uuid.UUID) error
}
