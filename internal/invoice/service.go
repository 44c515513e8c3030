package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/obs"
	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// PromotionEvaluator resolves and evaluates promotions.
type PromotionEvaluator interface {
	Resolve(ctx context.Context, ref promotion.Ref) (*promotion.Promotion, error)
	EvaluateAt(p *promotion.Promotion, items []promotion.LineItem, subtotal promotion.Money, at time.Time) promotion.Result
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Envelope, error)
}

// CheckoutInput describes a sale submitted by the till.
type CheckoutInput struct {
	ClientRef     string        `json:"clientRef"`
	CashierID     string        `json:"cashierId"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Lines         []cart.Line   `json:"lines"`
	Promotion     promotion.Ref `json:"promotion"`
	CashReceived  *Money        `json:"cashReceived"`
}

// CreatedEvent is the payload of invoice.created.
type CreatedEvent struct {
	InvoiceID     uuid.UUID     `json:"invoiceId"`
	Number        string        `json:"number"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Subtotal      Money         `json:"subtotal"`
	Discount      Money         `json:"discount"`
	FinalTotal    Money         `json:"finalTotal"`
	PromotionCode string        `json:"promotionCode,omitempty"`
	ItemCount     int           `json:"itemCount"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Locker serialises work on a key across API replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service records sales.
type Service struct {
	Store      Store
	Promotions PromotionEvaluator
	Events     Emitter
	Locks      Locker
	Logger     zerolog.Logger
	Now        func() time.Time
	NewNumber  func(at time.Time) string
}

// Checkout records a sale made now. The boolean reports whether ClientRef matched an
// invoice recorded earlier, in which case that invoice is returned unchanged.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (Invoice, bool, error) {
	inv, duplicate, err := s.checkout(ctx, in, s.now(), SourceOnline)
	recordOutcome(in.PaymentMethod, duplicate, err)
	return inv, duplicate, err
}

func (s *Service) checkout(ctx context.Context, in CheckoutInput, at time.Time, source Source) (Invoice, bool, error) {
	if s == nil || s.Store == nil || s.Promotions == nil {
		return Invoice{}, false, errors.New("invoice service not configured")
	}
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(in.PaymentMethod))))
	if !method.Valid() {
		return Invoice{}, false, fmt.Errorf("%q: %w", in.PaymentMethod, ErrInvalidPayment)
	}
	clientRef := strings.TrimSpace(in.ClientRef)
	if clientRef != "" {
		existing, err := s.Store.GetInvoiceByClientRef(ctx, clientRef)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Invoice{}, false, err
		}
	}

	c, err := cart.Build(in.Lines)
	if err != nil {
		return Invoice{}, false, err
	}
	p, err := s.Promotions.Resolve(ctx, in.Promotion)
	if err != nil {
		return Invoice{}, false, err
	}
	res := s.Promotions.EvaluateAt(p, c.LineItems(), c.Subtotal, at)

	inv := Invoice{
		ID:            uuid.New(),
		Number:        s.number(at),
		ClientRef:     clientRef,
		CashierID:     strings.TrimSpace(in.CashierID),
		PaymentMethod: method,
		Items:         c.Items,
		Subtotal:      c.Subtotal,
		Discount:      res.DiscountAmount,
		FinalTotal:    res.FinalTotal,
		Explanation:   res.Explanation,
		Status:        StatusPaid,
		Source:        source,
		CreatedAt:     at.UTC(),
		SyncedAt:      s.now().UTC(),
	}
	if method == PaymentCash {
		if in.CashReceived == nil || *in.CashReceived < inv.FinalTotal {
			return Invoice{}, false, ErrInsufficientCash
		}
		cash := *in.CashReceived
		inv.CashReceived = &cash
		inv.Change = cash - inv.FinalTotal
	}
	if applied := res.AppliedPromotion; applied != nil {
		id := applied.ID
		inv.PromotionID = &id
		inv.PromotionCode = applied.Code
		inv.PromotionName = applied.Name
		inv.PromotionType, inv.PromotionValue = promotionTypeValue(applied.Rule)
	}

	saved, err := s.Store.CreateInvoice(ctx, inv)
	if err != nil {
		if errors.Is(err, ErrDuplicate) && clientRef != "" {
			if existing, getErr := s.Store.GetInvoiceByClientRef(ctx, clientRef); getErr == nil {
				return existing, true, nil
			}
		}
		return Invoice{}, false, err
	}
	s.emitCreated(ctx, saved)
	return saved, false, nil
}

// Get loads an invoice by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	if s == nil || s.Store == nil {
		return Invoice{}, errors.New("invoice service not configured")
	}
	return s.Store.GetInvoice(ctx, id)
}

// List returns invoices in the range, newest first, with the total count.
func (s *Service) List(ctx context.Context, f Filter) ([]Invoice, int, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("invoice service not configured")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		f.From, f.To = f.To, f.From
	}
	return s.Store.ListInvoices(ctx, f)
}

func (s *Service) emitCreated(ctx context.Context, inv Invoice) {
	if s.Events == nil {
		return
	}
	payload := CreatedEvent{
		InvoiceID:     inv.ID,
		Number:        inv.Number,
		PaymentMethod: inv.PaymentMethod,
		Subtotal:      inv.Subtotal,
		Discount:      inv.Discount,
		FinalTotal:    inv.FinalTotal,
		PromotionCode: inv.PromotionCode,
		ItemCount:     len(inv.Items),
		CreatedAt:     inv.CreatedAt,
	}
	if _, err := s.Events.Emit(ctx, events.TopicInvoiceCreated, inv.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("invoice", inv.Number).Msg("emit invoice.created failed")
	}
}

func (s *Service) number(at time.Time) string {
	if s.NewNumber != nil {
		return s.NewNumber(at)
	}
	return "INV-" + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func promotionTypeValue(rule promotion.Rule) (string, *int64) {
	switch r := rule.(type) {
	case promotion.Regular:
		v := r.Value
		return string(r.DiscountType), &v
	case promotion.BuyXGetY:
		v := int64(r.FreeQuantity)
		return string(promotion.KindBuyXGetY), &v
	}
	return "", nil
}

func recordOutcome(method PaymentMethod, duplicate bool, err error) {
	result := "created"
	switch {
	case err != nil:
		result = "rejected"
	case duplicate:
		result = "duplicate"
	}
	method = PaymentMethod(strings.ToLower(strings.TrimSpace(string(method))))
	if !method.Valid() {
		method = "unknown"
	}
	obs.IncInvoice(string(method), result)
}
