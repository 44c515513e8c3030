package features

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

type discountContext struct {
	today  time.Time
	promo  *promotion.Promotion
	cart   []promotion.LineItem
	result promotion.Result
	second promotion.Result
}

func (c *discountContext) reset() {
	*c = discountContext{}
}

func (c *discountContext) engine() *promotion.Engine {
	now := c.today.Add(12 * time.Hour)
	return &promotion.Engine{Now: func() time.Time { return now }}
}

func (c *discountContext) todayIs(value string) error {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return err
	}
	c.today = t
	return nil
}

func (c *discountContext) aCart(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		price, err := strconv.ParseInt(row.Cells[2].Value, 10, 64)
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(row.Cells[3].Value)
		if err != nil {
			return err
		}
		c.cart = append(c.cart, promotion.LineItem{
			ItemKey:   row.Cells[0].Value,
			Category:  row.Cells[1].Value,
			UnitPrice: price,
			Quantity:  qty,
		})
	}
	return nil
}

func (c *discountContext) use(rule promotion.Rule) {
	c.promo = &promotion.Promotion{ID: uuid.New(), Code: "FEATURE", Name: "Feature", Rule: rule, Active: true}
}

func (c *discountContext) percentPromotion(value int64) error {
	c.use(promotion.Regular{DiscountType: promotion.DiscountPercent, Value: value})
	return nil
}

func (c *discountContext) percentPromotionCapped(value, maxDiscount int64) error {
	c.use(promotion.Regular{DiscountType: promotion.DiscountPercent, Value: value})
	c.promo.MaxDiscount = &maxDiscount
	return nil
}

func (c *discountContext) percentPromotionWindow(value int64, start, end string) error {
	c.use(promotion.Regular{DiscountType: promotion.DiscountPercent, Value: value})
	var err error
	if c.promo.StartDate, err = optionalDate(start); err != nil {
		return err
	}
	c.promo.EndDate, err = optionalDate(end)
	return err
}

func (c *discountContext) amountPromotion(value int64) error {
	c.use(promotion.Regular{DiscountType: promotion.DiscountAmount, Value: value})
	return nil
}

func (c *discountContext) amountPromotionWithMinimum(value, minOrder int64) error {
	c.use(promotion.Regular{DiscountType: promotion.DiscountAmount, Value: value, MinOrder: minOrder})
	return nil
}

func (c *discountContext) buyXGetY(buy, free int, mode string) error {
	c.use(promotion.BuyXGetY{BuyQuantity: buy, FreeQuantity: free, Accumulative: mode == "accumulates"})
	return nil
}

func (c *discountContext) evaluated() error {
	c.result = c.engine().Evaluate(c.promo, c.cart, promotion.Subtotal(c.cart))
	return nil
}

func (c *discountContext) evaluatedWithoutPromotion() error {
	c.promo = nil
	return c.evaluated()
}

func (c *discountContext) evaluatedTwice() error {
	if err := c.evaluated(); err != nil {
		return err
	}
	c.second = c.engine().Evaluate(c.promo, c.cart, promotion.Subtotal(c.cart))
	return nil
}

func (c *discountContext) discountIs(expected int64) error {
	if c.result.DiscountAmount != expected {
		return fmt.Errorf("expected discount %d, got %d", expected, c.result.DiscountAmount)
	}
	return nil
}

func (c *discountContext) finalTotalIs(expected int64) error {
	if c.result.FinalTotal != expected {
		return fmt.Errorf("expected final total %d, got %d", expected, c.result.FinalTotal)
	}
	return nil
}

func (c *discountContext) noPromotionApplied() error {
	if c.result.AppliedPromotion != nil {
		return fmt.Errorf("expected no applied promotion, got %s", c.result.AppliedPromotion.Code)
	}
	return nil
}

func (c *discountContext) reasonIs(reason string) error {
	if c.result.Explanation == nil {
		return fmt.Errorf("expected an explanation with reason %q", reason)
	}
	if string(c.result.Explanation.Reason) != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, c.result.Explanation.Reason)
	}
	return nil
}

func (c *discountContext) discountLimited() error {
	if c.result.Explanation == nil || !c.result.Explanation.IsLimited {
		return fmt.Errorf("expected the cap to bind")
	}
	return nil
}

func (c *discountContext) setsApply(sets int) error {
	if c.result.Explanation == nil || c.result.Explanation.ApplicableSets != sets {
		return fmt.Errorf("expected %d applicable sets, got %+v", sets, c.result.Explanation)
	}
	return nil
}

func (c *discountContext) freeUnits(itemKey string, qty int) error {
	if c.result.Explanation == nil {
		return fmt.Errorf("expected an explanation")
	}
	for _, free := range c.result.Explanation.FreeItems {
		if free.ItemKey != itemKey {
			return fmt.Errorf("unexpected free item %s", free.ItemKey)
		}
		if free.Quantity != qty {
			return fmt.Errorf("expected %d free %s, got %d", qty, itemKey, free.Quantity)
		}
		return nil
	}
	return fmt.Errorf("no free items")
}

func (c *discountContext) resultsIdentical() error {
	if !reflect.DeepEqual(c.result, c.second) {
		return fmt.Errorf("results differ: %+v vs %+v", c.result, c.second)
	}
	return nil
}

func optionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	dc := &discountContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		dc.reset()
		return ctx, nil
	})

	ctx.Step(`^today is "([^"]*)"$`, dc.todayIs)
	ctx.Step(`^a cart:$`, dc.aCart)
	ctx.Step(`^a percent promotion of (\d+)$`, dc.percentPromotion)
	ctx.Step(`^a percent promotion of (\d+) capped at (\d+)$`, dc.percentPromotionCapped)
	ctx.Step(`^a percent promotion of (\d+) valid from "([^"]*)" to "([^"]*)"$`, dc.percentPromotionWindow)
	ctx.Step(`^an amount promotion of (\d+)$`, dc.amountPromotion)
	ctx.Step(`^an amount promotion of (\d+) with minimum order (\d+)$`, dc.amountPromotionWithMinimum)
	ctx.Step(`^a buy (\d+) get (\d+) promotion that (accumulates|does not accumulate)$`, dc.buyXGetY)

	ctx.Step(`^the cart is evaluated$`, dc.evaluated)
	ctx.Step(`^the cart is evaluated without a promotion$`, dc.evaluatedWithoutPromotion)
	ctx.Step(`^the cart is evaluated twice$`, dc.evaluatedTwice)

	ctx.Step(`^the discount is (\d+)$`, dc.discountIs)
	ctx.Step(`^the final total is (\d+)$`, dc.finalTotalIs)
	ctx.Step(`^no promotion is applied$`, dc.noPromotionApplied)
	ctx.Step(`^the reason is "([^"]*)"$`, dc.reasonIs)
	ctx.Step(`^the discount is limited$`, dc.discountLimited)
	ctx.Step(`^(\d+) sets apply$`, dc.setsApply)
	ctx.Step(`^"([^"]*)" has (\d+) free units?$`, dc.freeUnits)
	ctx.Step(`^both results are identical$`, dc.resultsIdentical)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"discount.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
