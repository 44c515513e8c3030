package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/invoice"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Store keeps promotions and invoices in process memory.
type Store struct {
	mu              sync.RWMutex
	promotionsByID  map[uuid.UUID]promotion.Promotion
	invoicesByID    map[uuid.UUID]invoice.Invoice
	invoicesByRef   map[string]uuid.UUID
	invoiceSequence []uuid.UUID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		promotionsByID: make(map[uuid.UUID]promotion.Promotion),
		invoicesByID:   make(map[uuid.UUID]invoice.Invoice),
		invoicesByRef:  make(map[string]uuid.UUID),
	}
}

// ListPromotions returns promotions ordered by creation time then code.
func (s *Store) ListPromotions(_ context.Context, activeOnly bool) ([]promotion.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]promotion.Promotion, 0, len(s.promotionsByID))
	for _, p := range s.promotionsByID {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetPromotion(_ context.Context, id uuid.UUID) (promotion.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promotionsByID[id]
	if !ok {
		return promotion.Promotion{}, promotion.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPromotionByCode(_ context.Context, code string) (promotion.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.promotionsByID {
		if p.Code == code {
			return p, nil
		}
	}
	return promotion.Promotion{}, promotion.ErrNotFound
}

func (s *Store) CreatePromotion(_ context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeTakenLocked(p.Code, p.ID) {
		return promotion.Promotion{}, promotion.ErrCodeTaken
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.promotionsByID[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePromotion(_ context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promotionsByID[p.ID]; !ok {
		return promotion.Promotion{}, promotion.ErrNotFound
	}
	if s.codeTakenLocked(p.Code, p.ID) {
		return promotion.Promotion{}, promotion.ErrCodeTaken
	}
	s.promotionsByID[p.ID] = p
	return p, nil
}

func (s *Store) SetPromotionActive(_ context.Context, id uuid.UUID, active bool) (promotion.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promotionsByID[id]
	if !ok {
		return promotion.Promotion{}, promotion.ErrNotFound
	}
	p.Active = active
	s.promotionsByID[id] = p
	return p, nil
}

func (s *Store) DeletePromotion(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promotionsByID[id]; !ok {
		return promotion.ErrNotFound
	}
	delete(s.promotionsByID, id)
	return nil
}

func (s *Store) codeTakenLocked(code string, self uuid.UUID) bool {
	for id, p := range s.promotionsByID {
		if id != self && p.Code == code {
			return true
		}
	}
	return false
}

func (s *Store) CreateInvoice(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ClientRef != "" {
		if _, ok := s.invoicesByRef[inv.ClientRef]; ok {
			return invoice.Invoice{}, invoice.ErrDuplicate
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	s.invoicesByID[inv.ID] = inv
	if inv.ClientRef != "" {
		s.invoicesByRef[inv.ClientRef] = inv.ID
	}
	s.invoiceSequence = append(s.invoiceSequence, inv.ID)
	return inv, nil
}

func (s *Store) GetInvoice(_ context.Context, id uuid.UUID) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoicesByID[id]
	if !ok {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	return inv, nil
}

func (s *Store) GetInvoiceByClientRef(_ context.Context, clientRef string) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.invoicesByRef[clientRef]
	if !ok {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	return s.invoicesByID[id], nil
}

// ListInvoices returns invoices newest first.
func (s *Store) ListInvoices(_ context.Context, f invoice.Filter) ([]invoice.Invoice, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]invoice.Invoice, 0, len(s.invoiceSequence))
	for _, id := range s.invoiceSequence {
		inv := s.invoicesByID[id]
		if !f.From.IsZero() && inv.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && inv.CreatedAt.After(f.To) {
			continue
		}
		matched = append(matched, inv)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	f.Offset = max(f.Offset, 0)
	if f.Offset >= total {
		return []invoice.Invoice{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}
