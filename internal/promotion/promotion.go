package promotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Money represents a monetary value in the smallest currency unit.
type Money = int64

// Kind identifies the variant carried by a promotion.
type Kind string

const (
	KindRegular  Kind = "regular"
	KindBuyXGetY Kind = "buy_x_get_y"
)

// DiscountType selects how a regular promotion derives its discount.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

// ErrMixedShape is returned when a record carries fields of both promotion kinds.
var ErrMixedShape = errors.New("promotion record mixes regular and buy-x-get-y fields")

// Rule is the kind-specific part of a promotion. Only Regular and BuyXGetY implement it.
type Rule interface {
	Kind() Kind
	isRule()
}

// Regular is a percentage or fixed-amount discount off the subtotal.
type Regular struct {
	DiscountType DiscountType
	Value        int64
	// MinOrder of zero means no threshold.
	MinOrder Money
}

// Kind implements Rule.
func (Regular) Kind() Kind { return KindRegular }
func (Regular) isRule()    {}

// BuyXGetY grants FreeQuantity units for every BuyQuantity purchased.
type BuyXGetY struct {
	BuyQuantity  int
	FreeQuantity int
	Accumulative bool
}

// Kind implements Rule.
func (BuyXGetY) Kind() Kind { return KindBuyXGetY }
func (BuyXGetY) isRule()    {}

// Promotion is a promotion record as consumed by the engine.
type Promotion struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Rule        Rule
	MaxDiscount *Money
	StartDate   *time.Time
	EndDate     *time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Kind reports the variant of the promotion, or an empty kind when no rule is set.
func (p Promotion) Kind() Kind {
	if p.Rule == nil {
		return ""
	}
	return p.Rule.Kind()
}

// Record is the flat representation used on the wire, in the cache and in storage.
type Record struct {
	ID             uuid.UUID    `json:"id"`
	Code           string       `json:"code"`
	Name           string       `json:"name"`
	Kind           Kind         `json:"kind"`
	DiscountType   DiscountType `json:"discountType,omitempty"`
	Value          *int64       `json:"value,omitempty"`
	MinOrder       *int64       `json:"minOrder,omitempty"`
	BuyQuantity    *int         `json:"buyQuantity,omitempty"`
	FreeQuantity   *int         `json:"freeQuantity,omitempty"`
	IsAccumulative *bool        `json:"isAccumulative,omitempty"`
	MaxDiscount    *int64       `json:"maxDiscount,omitempty"`
	StartDate      *time.Time   `json:"startDate,omitempty"`
	EndDate        *time.Time   `json:"endDate,omitempty"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Record flattens the promotion.
func (p Promotion) Record() Record {
	rec := Record{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Kind:        p.Kind(),
		MaxDiscount: p.MaxDiscount,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	switch r := p.Rule.(type) {
	case Regular:
		value := r.Value
		rec.DiscountType = r.DiscountType
		rec.Value = &value
		if r.MinOrder > 0 {
			minOrder := r.MinOrder
			rec.MinOrder = &minOrder
		}
	case BuyXGetY:
		buy, free, acc := r.BuyQuantity, r.FreeQuantity, r.Accumulative
		rec.BuyQuantity = &buy
		rec.FreeQuantity = &free
		rec.IsAccumulative = &acc
	}
	return rec
}

// FromRecord rebuilds the tagged promotion from its flat form.
func FromRecord(rec Record) (Promotion, error) {
	p := Promotion{
		ID:          rec.ID,
		Code:        rec.Code,
		Name:        rec.Name,
		MaxDiscount: rec.MaxDiscount,
		StartDate:   rec.StartDate,
		EndDate:     rec.EndDate,
		Active:      rec.Active,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	hasRegular := rec.DiscountType != "" || rec.Value != nil || rec.MinOrder != nil
	hasBXGY := rec.BuyQuantity != nil || rec.FreeQuantity != nil || rec.IsAccumulative != nil
	switch Kind(strings.ToLower(string(rec.Kind))) {
	case KindRegular:
		if hasBXGY {
			return Promotion{}, ErrMixedShape
		}
		rule := Regular{DiscountType: DiscountType(strings.ToLower(string(rec.DiscountType)))}
		if rec.Value != nil {
			rule.Value = *rec.Value
		}
		if rec.MinOrder != nil {
			rule.MinOrder = *rec.MinOrder
		}
		p.Rule = rule
	case KindBuyXGetY:
		if hasRegular {
			return Promotion{}, ErrMixedShape
		}
		rule := BuyXGetY{}
		if rec.BuyQuantity != nil {
			rule.BuyQuantity = *rec.BuyQuantity
		}
		if rec.FreeQuantity != nil {
			rule.FreeQuantity = *rec.FreeQuantity
		}
		if rec.IsAccumulative != nil {
			rule.Accumulative = *rec.IsAccumulative
		}
		p.Rule = rule
	default:
		return Promotion{}, fmt.Errorf("unknown promotion kind %q", rec.Kind)
	}
	return p, nil
}

// MarshalJSON encodes the promotion using its flat record.
func (p Promotion) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// UnmarshalJSON decodes a flat record into the tagged form.
func (p *Promotion) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	decoded, err := FromRecord(rec)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// LineItem is one cart entry as seen by the engine.
type LineItem struct {
	ItemKey    string `json:"itemKey"`
	Category   string `json:"category"`
	UnitPrice  Money  `json:"unitPrice"`
	AddOnTotal Money  `json:"addOnTotal"`
	Quantity   int    `json:"quantity"`
}

// EffectiveUnitPrice is the unit price including add-ons.
func (li LineItem) EffectiveUnitPrice() Money {
	return li.UnitPrice + li.AddOnTotal
}

// Subtotal returns the line subtotal.
func (li LineItem) Subtotal() Money {
	if li.Quantity <= 0 {
		return 0
	}
	return li.EffectiveUnitPrice() * Money(li.Quantity)
}

// Subtotal sums the line subtotals of a cart.
func Subtotal(items []LineItem) Money {
	var total Money
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}
