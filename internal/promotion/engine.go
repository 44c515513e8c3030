package promotion

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAddOnCategories lists the categories excluded from quantity-based eligibility.
var DefaultAddOnCategories = []string{"Topping"}

// Result is the outcome of evaluating a promotion against a cart.
type Result struct {
	DiscountAmount   Money        `json:"discountAmount"`
	FinalTotal       Money        `json:"finalTotal"`
	AppliedPromotion *Promotion   `json:"appliedPromotion"`
	Explanation      *Explanation `json:"explanation"`
}

// Engine evaluates promotions. The zero value is ready to use.
type Engine struct {
	Now             func() time.Time
	AddOnCategories []string
}

// Evaluate computes the discount using the engine clock.
func (e *Engine) Evaluate(p *Promotion, cart []LineItem, subtotal Money) Result {
	return e.EvaluateAt(p, cart, subtotal, e.now())
}

// EvaluateAt computes the discount as of the provided instant. It never panics and never
// mutates its inputs; inapplicable or misconfigured promotions yield a zero discount.
func (e *Engine) EvaluateAt(p *Promotion, cart []LineItem, subtotal Money, at time.Time) Result {
	if p == nil {
		return Result{FinalTotal: max(subtotal, 0)}
	}
	kind := p.Kind()
	if subtotal < 0 || p.Rule == nil || (p.MaxDiscount != nil && *p.MaxDiscount <= 0) {
		return rejected(subtotal, &Explanation{Kind: kind, Reason: ReasonMisconfigured})
	}
	if reason, ok := withinWindow(p, at); !ok {
		return rejected(subtotal, &Explanation{Kind: kind, Reason: reason})
	}
	switch rule := p.Rule.(type) {
	case Regular:
		return e.evaluateRegular(p, rule, subtotal)
	case BuyXGetY:
		return e.evaluateBuyXGetY(p, rule, cart, subtotal)
	default:
		return rejected(subtotal, &Explanation{Kind: kind, Reason: ReasonMisconfigured})
	}
}

func (e *Engine) evaluateRegular(p *Promotion, rule Regular, subtotal Money) Result {
	exp := &Explanation{
		Kind:         KindRegular,
		DiscountType: rule.DiscountType,
		Value:        rule.Value,
		MinOrder:     rule.MinOrder,
	}
	switch {
	case rule.Value <= 0, rule.MinOrder < 0:
		exp.Reason = ReasonMisconfigured
		return rejected(subtotal, exp)
	case rule.DiscountType == DiscountPercent && rule.Value > 100:
		exp.Reason = ReasonMisconfigured
		return rejected(subtotal, exp)
	case rule.DiscountType != DiscountPercent && rule.DiscountType != DiscountAmount:
		exp.Reason = ReasonMisconfigured
		return rejected(subtotal, exp)
	}
	if rule.MinOrder > 0 && subtotal < rule.MinOrder {
		exp.Reason = ReasonMinOrderNotMet
		exp.Shortfall = rule.MinOrder - subtotal
		return rejected(subtotal, exp)
	}

	raw := rule.Value
	if rule.DiscountType == DiscountPercent {
		raw = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(rule.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}
	exp.RawDiscount = raw
	return applied(p, subtotal, raw, exp)
}

func (e *Engine) evaluateBuyXGetY(p *Promotion, rule BuyXGetY, cart []LineItem, subtotal Money) Result {
	exp := &Explanation{
		Kind:           KindBuyXGetY,
		BuyQuantity:    rule.BuyQuantity,
		FreeQuantity:   rule.FreeQuantity,
		IsAccumulative: rule.Accumulative,
	}
	itemsPerSet := rule.BuyQuantity + rule.FreeQuantity
	if rule.BuyQuantity < 1 || rule.FreeQuantity < 1 || itemsPerSet <= 0 {
		exp.Reason = ReasonMisconfigured
		return rejected(subtotal, exp)
	}

	pool := e.eligibleRuns(cart)
	totalEligible := 0
	for _, run := range pool {
		totalEligible += run.quantity
	}
	exp.CurrentQuantity = totalEligible
	exp.RequiredQuantity = itemsPerSet

	sets := 0
	if rule.Accumulative {
		sets = totalEligible / itemsPerSet
	} else if totalEligible >= itemsPerSet {
		sets = 1
	}
	if sets == 0 {
		exp.Reason = ReasonInsufficientQuantity
		return rejected(subtotal, exp)
	}

	totalFree := min(sets*rule.FreeQuantity, totalEligible)
	exp.ApplicableSets = sets
	exp.FreeItemsCount = totalFree

	slices.SortStableFunc(pool, func(a, b unitRun) int {
		return cmp.Compare(a.price, b.price)
	})
	var raw Money
	remaining := totalFree
	for _, run := range pool {
		if remaining == 0 {
			break
		}
		take := min(run.quantity, remaining)
		raw += run.price * Money(take)
		remaining -= take
		exp.FreeItems = append(exp.FreeItems, FreeItem{ItemKey: run.itemKey, Quantity: take, UnitPrice: run.price})
	}
	exp.RawDiscount = raw
	return applied(p, subtotal, raw, exp)
}

// unitRun stands for quantity identical units taken from one cart line.
type unitRun struct {
	itemKey  string
	price    Money
	quantity int
}

func (e *Engine) eligibleRuns(cart []LineItem) []unitRun {
	runs := make([]unitRun, 0, len(cart))
	for _, li := range cart {
		if li.Quantity <= 0 || e.isAddOn(li.Category) {
			continue
		}
		runs = append(runs, unitRun{
			itemKey:  li.ItemKey,
			price:    max(li.EffectiveUnitPrice(), 0),
			quantity: li.Quantity,
		})
	}
	return runs
}

func (e *Engine) isAddOn(category string) bool {
	categories := DefaultAddOnCategories
	if e != nil && len(e.AddOnCategories) > 0 {
		categories = e.AddOnCategories
	}
	category = strings.TrimSpace(category)
	for _, c := range categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// applied clamps the raw discount by the cap and the subtotal and builds the final result.
func applied(p *Promotion, subtotal, raw Money, exp *Explanation) Result {
	discount := max(raw, 0)
	if p.MaxDiscount != nil && discount > *p.MaxDiscount {
		discount = *p.MaxDiscount
		exp.IsLimited = true
	}
	if discount > subtotal {
		discount = subtotal
	}
	exp.Reason = ReasonApplied
	promo := clonePromotion(p)
	exp.MaxDiscount = clonePtr(p.MaxDiscount)
	exp.Text = describe(exp, discount)
	return Result{
		DiscountAmount:   discount,
		FinalTotal:       max(subtotal-discount, 0),
		AppliedPromotion: promo,
		Explanation:      exp,
	}
}

// clonePromotion copies p including the values behind its optional fields.
func clonePromotion(p *Promotion) *Promotion {
	promo := *p
	promo.MaxDiscount = clonePtr(p.MaxDiscount)
	promo.StartDate = clonePtr(p.StartDate)
	promo.EndDate = clonePtr(p.EndDate)
	return &promo
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func rejected(subtotal Money, exp *Explanation) Result {
	exp.Text = describe(exp, 0)
	return Result{FinalTotal: max(subtotal, 0), Explanation: exp}
}

// withinWindow checks the inclusive calendar window. Dates are interpreted in their own location.
func withinWindow(p *Promotion, at time.Time) (Reason, bool) {
	if p.StartDate != nil {
		s := *p.StartDate
		start := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
		if at.Before(start) {
			return ReasonNotStarted, false
		}
	}
	if p.EndDate != nil {
		d := *p.EndDate
		end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), d.Location())
		if at.After(end) {
			return ReasonExpired, false
		}
	}
	return "", true
}
