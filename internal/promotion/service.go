package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Envelope, error)
}

// Ref selects a promotion by id or by code. ID wins when both are set.
type Ref struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Code string     `json:"code,omitempty"`
}

// IsZero reports whether the reference selects nothing.
func (r Ref) IsZero() bool {
	return (r.ID == nil || *r.ID == uuid.Nil) && strings.TrimSpace(r.Code) == ""
}

// Service manages promotions and evaluates them against carts.
type Service struct {
	Store    Store
	Cache    *Cache
	Engine   *Engine
	Events   Emitter
	Logger   zerolog.Logger
	Location *time.Location
	Now      func() time.Time
}

// List returns promotions, optionally only the active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Promotion, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("promotion service not configured")
	}
	if cached, ok, err := s.Cache.GetList(ctx, activeOnly); err != nil {
		s.Logger.Warn().Err(err).Msg("promotion cache read failed")
	} else if ok {
		return cached, nil
	}
	list, err := s.Store.ListPromotions(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetList(ctx, activeOnly, list); err != nil {
		s.Logger.Warn().Err(err).Msg("promotion cache write failed")
	}
	return list, nil
}

// Get loads a promotion by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promotion service not configured")
	}
	return s.Store.GetPromotion(ctx, id)
}

// GetByCode loads a promotion by its normalized code.
func (s *Service) GetByCode(ctx context.Context, code string) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promotion service not configured")
	}
	code = NormalizeCode(code)
	if code == "" {
		return Promotion{}, ErrNotFound
	}
	return s.Store.GetPromotionByCode(ctx, code)
}

// Create validates and stores a new promotion.
func (s *Service) Create(ctx context.Context, in Input) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promotion service not configured")
	}
	p, err := in.Promotion(s.location())
	if err != nil {
		return Promotion{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	created, err := s.Store.CreatePromotion(ctx, p)
	if err != nil {
		return Promotion{}, err
	}
	s.changed(ctx, created, "created")
	return created, nil
}

// Update replaces the promotion identified by id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promotion service not configured")
	}
	p, err := in.Promotion(s.location())
	if err != nil {
		return Promotion{}, err
	}
	existing, err := s.Store.GetPromotion(ctx, id)
	if err != nil {
		return Promotion{}, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if in.Active == nil {
		p.Active = existing.Active
	}
	updated, err := s.Store.UpdatePromotion(ctx, p)
	if err != nil {
		return Promotion{}, err
	}
	s.changed(ctx, updated, "updated")
	return updated, nil
}

// SetActive toggles the active flag.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promotion service not configured")
	}
	p, err := s.Store.SetPromotionActive(ctx, id, active)
	if err != nil {
		return Promotion{}, err
	}
	action := "deactivated"
	if active {
		action = "activated"
	}
	s.changed(ctx, p, action)
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("promotion service not configured")
	}
	existing, err := s.Store.GetPromotion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeletePromotion(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, existing, "deleted")
	return nil
}

// Resolve loads the referenced promotion. A zero ref resolves to nil without error.
func (s *Service) Resolve(ctx context.Context, ref Ref) (*Promotion, error) {
	if ref.IsZero() {
		return nil, nil
	}
	var (
		p   Promotion
		err error
	)
	if ref.ID != nil && *ref.ID != uuid.Nil {
		p, err = s.Get(ctx, *ref.ID)
	} else {
		p, err = s.GetByCode(ctx, ref.Code)
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%s: %w", p.Code, ErrInactive)
	}
	return &p, nil
}

// Preview evaluates the referenced promotion against the cart at the current time.
func (s *Service) Preview(ctx context.Context, ref Ref, items []LineItem) (Result, error) {
	return s.PreviewAt(ctx, ref, items, s.now())
}

// PreviewAt evaluates the referenced promotion as of at. The subtotal is derived from items.
func (s *Service) PreviewAt(ctx context.Context, ref Ref, items []LineItem, at time.Time) (Result, error) {
	p, err := s.Resolve(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	return s.EvaluateAt(p, items, Subtotal(items), at), nil
}

// EvaluateAt runs the engine and records the outcome.
func (s *Service) EvaluateAt(p *Promotion, items []LineItem, subtotal Money, at time.Time) Result {
	res := s.engine().EvaluateAt(p, items, subtotal, at)
	if res.Explanation != nil {
		obs.ObservePromotionEvaluation(string(res.Explanation.Kind), string(res.Explanation.Reason), res.DiscountAmount)
	}
	return res
}

func (s *Service) changed(ctx context.Context, p Promotion, action string) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("promotion cache invalidation failed")
	}
	if s.Events == nil {
		return
	}
	payload := map[string]any{"action": action, "code": p.Code, "kind": p.Kind()}
	if _, err := s.Events.Emit(ctx, events.TopicPromotionChanged, p.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("emit promotion.changed failed")
	}
}

func (s *Service) engine() *Engine {
	if s != nil && s.Engine != nil {
		return s.Engine
	}
	return &Engine{}
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
