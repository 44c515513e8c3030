package promotion

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)

func testEngine() *Engine {
	return &Engine{Now: func() time.Time { return fixedNow }}
}

func regularPromo(dt DiscountType, value int64) *Promotion {
	return &Promotion{
		ID:     uuid.New(),
		Code:   "TEST",
		Name:   "Test",
		Rule:   Regular{DiscountType: dt, Value: value},
		Active: true,
	}
}

func bxgyPromo(buy, free int, accumulative bool) *Promotion {
	return &Promotion{
		ID:     uuid.New(),
		Code:   "BXGY",
		Name:   "Buy X get Y",
		Rule:   BuyXGetY{BuyQuantity: buy, FreeQuantity: free, Accumulative: accumulative},
		Active: true,
	}
}

func money(v Money) *Money { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestEvaluateNilPromotion(t *testing.T) {
	cart := []LineItem{{ItemKey: "a", UnitPrice: 25_000, Quantity: 2}}
	res := testEngine().Evaluate(nil, cart, 50_000)
	if res.DiscountAmount != 0 || res.FinalTotal != 50_000 {
		t.Fatalf("expected untouched totals, got %+v", res)
	}
	if res.AppliedPromotion != nil || res.Explanation != nil {
		t.Fatalf("expected no promotion and no explanation, got %+v", res)
	}
}

func TestEvaluateDateWindow(t *testing.T) {
	cart := []LineItem{{ItemKey: "a", UnitPrice: 100_000, Quantity: 1}}

	future := regularPromo(DiscountPercent, 10)
	future.StartDate = day(2025, time.March, 16)
	res := testEngine().Evaluate(future, cart, 100_000)
	require.Zero(t, res.DiscountAmount)
	require.Equal(t, Money(100_000), res.FinalTotal)
	require.Nil(t, res.AppliedPromotion)
	require.Equal(t, ReasonNotStarted, res.Explanation.Reason)

	past := regularPromo(DiscountPercent, 10)
	past.EndDate = day(2025, time.March, 14)
	res = testEngine().Evaluate(past, cart, 100_000)
	require.Zero(t, res.DiscountAmount)
	require.Nil(t, res.AppliedPromotion)
	require.Equal(t, ReasonExpired, res.Explanation.Reason)

	bxgy := bxgyPromo(1, 1, true)
	bxgy.EndDate = day(2025, time.March, 1)
	res = testEngine().Evaluate(bxgy, []LineItem{{ItemKey: "a", UnitPrice: 10_000, Quantity: 4}}, 40_000)
	require.Zero(t, res.DiscountAmount)
	require.Equal(t, ReasonExpired, res.Explanation.Reason)
}

func TestEvaluateWindowIsInclusiveOfWholeDays(t *testing.T) {
	cart := []LineItem{{ItemKey: "a", UnitPrice: 100_000, Quantity: 1}}
	p := regularPromo(DiscountAmount, 5_000)
	p.StartDate = day(2025, time.March, 15)
	p.EndDate = day(2025, time.March, 15)

	e := &Engine{}
	early := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, time.March, 15, 23, 59, 59, 0, time.UTC)
	next := time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)

	require.Equal(t, Money(5_000), e.EvaluateAt(p, cart, 100_000, early).DiscountAmount)
	require.Equal(t, Money(5_000), e.EvaluateAt(p, cart, 100_000, late).DiscountAmount)
	require.Zero(t, e.EvaluateAt(p, cart, 100_000, next).DiscountAmount)
}

func TestEvaluatePercentWithoutCap(t *testing.T) {
	res := testEngine().Evaluate(regularPromo(DiscountPercent, 10), nil, 100_000)
	if res.DiscountAmount != 10_000 {
		t.Fatalf("expected 10000 discount, got %d", res.DiscountAmount)
	}
	if res.FinalTotal != 90_000 {
		t.Fatalf("expected 90000 final total, got %d", res.FinalTotal)
	}
	require.NotNil(t, res.AppliedPromotion)
	require.Equal(t, ReasonApplied, res.Explanation.Reason)
	require.False(t, res.Explanation.IsLimited)
}

func TestEvaluatePercentCapBinds(t *testing.T) {
	p := regularPromo(DiscountPercent, 50)
	p.MaxDiscount = money(20_000)
	res := testEngine().Evaluate(p, nil, 100_000)
	require.Equal(t, Money(20_000), res.DiscountAmount)
	require.Equal(t, Money(80_000), res.FinalTotal)
	require.True(t, res.Explanation.IsLimited)
	require.Equal(t, Money(50_000), res.Explanation.RawDiscount)
}

func TestEvaluateCapNotBinding(t *testing.T) {
	p := regularPromo(DiscountPercent, 10)
	p.MaxDiscount = money(20_000)
	res := testEngine().Evaluate(p, nil, 100_000)
	require.Equal(t, Money(10_000), res.DiscountAmount)
	require.False(t, res.Explanation.IsLimited)
}

func TestEvaluatePercentRoundsHalfAwayFromZero(t *testing.T) {
	// 15% of 12_345 = 1851.75
	res := testEngine().Evaluate(regularPromo(DiscountPercent, 15), nil, 12_345)
	require.Equal(t, Money(1_852), res.DiscountAmount)

	// 10% of 12_345 = 1234.5
	res = testEngine().Evaluate(regularPromo(DiscountPercent, 10), nil, 12_345)
	require.Equal(t, Money(1_235), res.DiscountAmount)
}

func TestEvaluateMinOrderGate(t *testing.T) {
	p := regularPromo(DiscountAmount, 5_000)
	p.Rule = Regular{DiscountType: DiscountAmount, Value: 5_000, MinOrder: 50_000}
	res := testEngine().Evaluate(p, nil, 40_000)
	require.Zero(t, res.DiscountAmount)
	require.Equal(t, Money(40_000), res.FinalTotal)
	require.Nil(t, res.AppliedPromotion)
	require.Equal(t, ReasonMinOrderNotMet, res.Explanation.Reason)
	require.Equal(t, Money(10_000), res.Explanation.Shortfall)

	res = testEngine().Evaluate(p, nil, 50_000)
	require.Equal(t, Money(5_000), res.DiscountAmount)
}

func TestEvaluateAmountClampedToSubtotal(t *testing.T) {
	res := testEngine().Evaluate(regularPromo(DiscountAmount, 50_000), nil, 30_000)
	require.Equal(t, Money(30_000), res.DiscountAmount)
	require.Zero(t, res.FinalTotal)
}

func TestEvaluateBuyXGetYAccumulative(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte:M", Category: "Coffee", UnitPrice: 20_000, Quantity: 6}}
	subtotal := Subtotal(cart)
	res := testEngine().Evaluate(bxgyPromo(2, 1, true), cart, subtotal)
	require.Equal(t, Money(40_000), res.DiscountAmount)
	require.Equal(t, subtotal-40_000, res.FinalTotal)
	require.Equal(t, 2, res.Explanation.ApplicableSets)
	require.Equal(t, 2, res.Explanation.FreeItemsCount)
	require.True(t, res.Explanation.IsAccumulative)
}

func TestEvaluateBuyXGetYNonAccumulative(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte:M", Category: "Coffee", UnitPrice: 20_000, Quantity: 6}}
	res := testEngine().Evaluate(bxgyPromo(2, 1, false), cart, Subtotal(cart))
	require.Equal(t, Money(20_000), res.DiscountAmount)
	require.Equal(t, 1, res.Explanation.ApplicableSets)
	require.Equal(t, 1, res.Explanation.FreeItemsCount)
}

func TestEvaluateBuyXGetYCheapestFirst(t *testing.T) {
	cart := []LineItem{
		{ItemKey: "cake", Category: "Bakery", UnitPrice: 30_000, Quantity: 2},
		{ItemKey: "tea", Category: "Tea", UnitPrice: 10_000, Quantity: 1},
	}
	res := testEngine().Evaluate(bxgyPromo(1, 1, true), cart, Subtotal(cart))
	require.Equal(t, Money(10_000), res.DiscountAmount)
	require.Equal(t, 1, res.Explanation.ApplicableSets)
	require.Equal(t, []FreeItem{{ItemKey: "tea", Quantity: 1, UnitPrice: 10_000}}, res.Explanation.FreeItems)
}

func TestEvaluateBuyXGetYTiesFollowCartOrder(t *testing.T) {
	cart := []LineItem{
		{ItemKey: "first", Category: "Coffee", UnitPrice: 15_000, Quantity: 1},
		{ItemKey: "second", Category: "Coffee", UnitPrice: 15_000, Quantity: 1},
		{ItemKey: "third", Category: "Coffee", UnitPrice: 25_000, Quantity: 2},
	}
	res := testEngine().Evaluate(bxgyPromo(3, 1, false), cart, Subtotal(cart))
	require.Equal(t, Money(15_000), res.DiscountAmount)
	require.Equal(t, "first", res.Explanation.FreeItems[0].ItemKey)
}

func TestEvaluateBuyXGetYExcludesAddOns(t *testing.T) {
	cart := []LineItem{
		{ItemKey: "milk-tea:L+pearl", Category: "Tea", UnitPrice: 30_000, AddOnTotal: 5_000, Quantity: 2},
		{ItemKey: "pearl", Category: "topping", UnitPrice: 5_000, Quantity: 4},
	}
	res := testEngine().Evaluate(bxgyPromo(1, 1, true), cart, Subtotal(cart))
	require.Equal(t, 2, res.Explanation.CurrentQuantity)
	require.Equal(t, 1, res.Explanation.FreeItemsCount)
	// Free unit carries its add-ons.
	require.Equal(t, Money(35_000), res.DiscountAmount)
}

func TestEvaluateCustomAddOnCategories(t *testing.T) {
	cart := []LineItem{
		{ItemKey: "syrup", Category: "Extra", UnitPrice: 3_000, Quantity: 5},
		{ItemKey: "espresso", Category: "Coffee", UnitPrice: 25_000, Quantity: 1},
	}
	e := &Engine{Now: func() time.Time { return fixedNow }, AddOnCategories: []string{"extra"}}
	res := e.Evaluate(bxgyPromo(1, 1, true), cart, Subtotal(cart))
	require.Equal(t, ReasonInsufficientQuantity, res.Explanation.Reason)
	require.Equal(t, 1, res.Explanation.CurrentQuantity)
}

func TestEvaluateBuyXGetYInsufficientQuantity(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte", Category: "Coffee", UnitPrice: 20_000, Quantity: 2}}
	res := testEngine().Evaluate(bxgyPromo(2, 1, true), cart, Subtotal(cart))
	require.Zero(t, res.DiscountAmount)
	require.Nil(t, res.AppliedPromotion)
	require.Equal(t, ReasonInsufficientQuantity, res.Explanation.Reason)
	require.Equal(t, 2, res.Explanation.CurrentQuantity)
	require.Equal(t, 3, res.Explanation.RequiredQuantity)
}

func TestEvaluateBuyXGetYCapBinds(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte", Category: "Coffee", UnitPrice: 20_000, Quantity: 6}}
	p := bxgyPromo(2, 1, true)
	p.MaxDiscount = money(25_000)
	res := testEngine().Evaluate(p, cart, Subtotal(cart))
	require.Equal(t, Money(25_000), res.DiscountAmount)
	require.True(t, res.Explanation.IsLimited)
	require.Equal(t, Money(40_000), res.Explanation.RawDiscount)
}

func TestEvaluateBuyXGetYFreeNeverExceedsPool(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte", Category: "Coffee", UnitPrice: 20_000, Quantity: 2}}
	res := testEngine().Evaluate(bxgyPromo(1, 5, false), cart, Subtotal(cart))
	require.Equal(t, ReasonInsufficientQuantity, res.Explanation.Reason)

	cart[0].Quantity = 6
	res = testEngine().Evaluate(bxgyPromo(1, 5, false), cart, Subtotal(cart))
	require.Equal(t, 5, res.Explanation.FreeItemsCount)
	require.Equal(t, Money(100_000), res.DiscountAmount)
}

func TestEvaluateBuyXGetYHugeQuantity(t *testing.T) {
	cart := []LineItem{{ItemKey: "water", Category: "Drinks", UnitPrice: 1, Quantity: 1 << 40}}
	res := testEngine().Evaluate(bxgyPromo(1, 1, true), cart, Subtotal(cart))
	require.Equal(t, Money(1<<39), res.DiscountAmount)
}

func TestEvaluateMisconfigured(t *testing.T) {
	cart := []LineItem{{ItemKey: "latte", Category: "Coffee", UnitPrice: 20_000, Quantity: 3}}
	cases := map[string]*Promotion{
		"zero buy and free": bxgyPromo(0, 0, true),
		"negative free":     bxgyPromo(2, -1, true),
		"zero percent":      regularPromo(DiscountPercent, 0),
		"percent over 100":  regularPromo(DiscountPercent, 150),
		"negative amount":   regularPromo(DiscountAmount, -10),
		"unknown type":      regularPromo(DiscountType("bogus"), 10),
		"nil rule":          {ID: uuid.New(), Code: "X"},
	}
	negativeCap := regularPromo(DiscountPercent, 10)
	negativeCap.MaxDiscount = money(-1)
	cases["negative cap"] = negativeCap

	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() {
				res = testEngine().Evaluate(p, cart, 60_000)
			})
			require.Zero(t, res.DiscountAmount)
			require.Equal(t, Money(60_000), res.FinalTotal)
			require.Nil(t, res.AppliedPromotion)
			require.Equal(t, ReasonMisconfigured, res.Explanation.Reason)
		})
	}

	res := testEngine().Evaluate(regularPromo(DiscountAmount, 1_000), cart, -5)
	require.Zero(t, res.DiscountAmount)
	require.Zero(t, res.FinalTotal)
	require.Equal(t, ReasonMisconfigured, res.Explanation.Reason)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	cart := []LineItem{
		{ItemKey: "a", Category: "Coffee", UnitPrice: 18_000, AddOnTotal: 2_000, Quantity: 3},
		{ItemKey: "b", Category: "Tea", UnitPrice: 12_000, Quantity: 2},
	}
	snapshot := append([]LineItem(nil), cart...)
	p := bxgyPromo(2, 1, true)
	p.MaxDiscount = money(30_000)

	e := testEngine()
	first := e.Evaluate(p, cart, Subtotal(cart))
	second := e.Evaluate(p, cart, Subtotal(cart))
	require.Equal(t, first, second)
	require.Equal(t, snapshot, cart)
}

func TestEvaluateNeverNegative(t *testing.T) {
	promos := []*Promotion{
		regularPromo(DiscountPercent, 1),
		regularPromo(DiscountPercent, 100),
		regularPromo(DiscountAmount, 1),
		regularPromo(DiscountAmount, 1_000_000),
		bxgyPromo(1, 1, true),
		bxgyPromo(1, 3, false),
		bxgyPromo(4, 2, true),
	}
	capped := regularPromo(DiscountPercent, 70)
	capped.MaxDiscount = money(7_777)
	promos = append(promos, capped)

	e := testEngine()
	for qty := 0; qty <= 9; qty++ {
		cart := []LineItem{
			{ItemKey: "x", Category: "Coffee", UnitPrice: 13_333, Quantity: qty},
			{ItemKey: "y", Category: "Topping", UnitPrice: 4_000, Quantity: qty},
		}
		subtotal := Subtotal(cart)
		for _, p := range promos {
			res := e.Evaluate(p, cart, subtotal)
			if res.DiscountAmount < 0 || res.DiscountAmount > subtotal {
				t.Fatalf("discount %d out of range for subtotal %d (%s)", res.DiscountAmount, subtotal, p.Kind())
			}
			if res.FinalTotal < 0 || res.FinalTotal != subtotal-res.DiscountAmount {
				t.Fatalf("unexpected final total %d for subtotal %d", res.FinalTotal, subtotal)
			}
			if p.MaxDiscount != nil && res.DiscountAmount > *p.MaxDiscount {
				t.Fatalf("discount %d exceeds cap %d", res.DiscountAmount, *p.MaxDiscount)
			}
		}
	}
}

func TestEvaluateDoesNotAliasPromotion(t *testing.T) {
	p := regularPromo(DiscountPercent, 10)
	p.MaxDiscount = money(50_000)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
	p.StartDate, p.EndDate = &start, &end

	res := testEngine().Evaluate(p, nil, 100_000)
	require.NotSame(t, p, res.AppliedPromotion)
	require.Equal(t, p.ID, res.AppliedPromotion.ID)
	require.NotSame(t, p.MaxDiscount, res.AppliedPromotion.MaxDiscount)
	require.NotSame(t, p.MaxDiscount, res.Explanation.MaxDiscount)
	require.NotSame(t, p.StartDate, res.AppliedPromotion.StartDate)
	require.NotSame(t, p.EndDate, res.AppliedPromotion.EndDate)

	*res.AppliedPromotion.MaxDiscount = 1
	*res.Explanation.MaxDiscount = 2
	*res.AppliedPromotion.StartDate = end
	*res.AppliedPromotion.EndDate = start
	require.Equal(t, Money(50_000), *p.MaxDiscount)
	require.Equal(t, start, *p.StartDate)
	require.Equal(t, end, *p.EndDate)
}

func TestExplanationText(t *testing.T) {
	p := regularPromo(DiscountPercent, 50)
	p.MaxDiscount = money(20_000)
	res := testEngine().Evaluate(p, nil, 100_000)
	require.Contains(t, res.Explanation.Text, "50%")
	require.Contains(t, res.Explanation.Text, FormatMoney(20_000))
}
