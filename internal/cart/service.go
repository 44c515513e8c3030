package cart

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Previewer resolves and evaluates promotions.
type Previewer interface {
	Resolve(ctx context.Context, ref promotion.Ref) (*promotion.Promotion, error)
	EvaluateAt(p *promotion.Promotion, items []promotion.LineItem, subtotal promotion.Money, at time.Time) promotion.Result
}

// QuoteInput is a cart to price together with an optional promotion.
type QuoteInput struct {
	Lines     []Line        `json:"lines"`
	Promotion promotion.Ref `json:"promotion"`
}

// Quote is a priced cart.
type Quote struct {
	Items       []Item                 `json:"items"`
	Subtotal    Money                  `json:"subtotal"`
	Discount    Money                  `json:"discount"`
	Total       Money                  `json:"total"`
	Promotion   *promotion.Promotion   `json:"promotion"`
	Explanation *promotion.Explanation `json:"explanation"`
}

// Service prices carts.
type Service struct {
	Promotions Previewer
	Now        func() time.Time
}

// Quote builds the cart and applies the referenced promotion.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if s == nil || s.Promotions == nil {
		return Quote{}, errors.New("cart service not configured")
	}
	c, err := Build(in.Lines)
	if err != nil {
		return Quote{}, err
	}
	p, err := s.Promotions.Resolve(ctx, in.Promotion)
	if err != nil {
		return Quote{}, err
	}
	res := s.Promotions.EvaluateAt(p, c.LineItems(), c.Subtotal, s.now())
	return Quote{
		Items:       c.Items,
		Subtotal:    c.Subtotal,
		Discount:    res.DiscountAmount,
		Total:       res.FinalTotal,
		Promotion:   res.AppliedPromotion,
		Explanation: res.Explanation,
	}, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
