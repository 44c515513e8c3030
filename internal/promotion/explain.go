package promotion

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reason is a machine-readable code describing the evaluation outcome.
type Reason string

const (
	ReasonApplied              Reason = "applied"
	ReasonNotStarted           Reason = "not_started"
	ReasonExpired              Reason = "expired"
	ReasonMinOrderNotMet       Reason = "min_order_not_met"
	ReasonInsufficientQuantity Reason = "insufficient_quantity"
	ReasonMisconfigured        Reason = "misconfigured"
)

// FreeItem reports how many units of a cart entry were given for free.
type FreeItem struct {
	ItemKey   string `json:"itemKey"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
}

// Explanation is a structured account of a promotion evaluation suitable for display.
type Explanation struct {
	Kind        Kind   `json:"kind"`
	Reason      Reason `json:"reason"`
	Text        string `json:"text"`
	IsLimited   bool   `json:"isLimited"`
	RawDiscount Money  `json:"rawDiscount"`
	MaxDiscount *Money `json:"maxDiscount,omitempty"`

	DiscountType DiscountType `json:"discountType,omitempty"`
	Value        int64        `json:"value,omitempty"`
	MinOrder     Money        `json:"minOrder,omitempty"`
	Shortfall    Money        `json:"shortfall,omitempty"`

	BuyQuantity      int        `json:"buyQuantity,omitempty"`
	FreeQuantity     int        `json:"freeQuantity,omitempty"`
	IsAccumulative   bool       `json:"isAccumulative,omitempty"`
	ApplicableSets   int        `json:"applicableSets,omitempty"`
	FreeItemsCount   int        `json:"freeItemsCount,omitempty"`
	CurrentQuantity  int        `json:"currentQuantity,omitempty"`
	RequiredQuantity int        `json:"requiredQuantity,omitempty"`
	FreeItems        []FreeItem `json:"freeItems,omitempty"`
}

var printer = message.NewPrinter(language.Vietnamese)

// FormatMoney renders an amount with Vietnamese digit grouping, e.g. 12.000đ.
func FormatMoney(m Money) string {
	return printer.Sprintf("%dđ", m)
}

func describe(exp *Explanation, discount Money) string {
	switch exp.Reason {
	case ReasonNotStarted:
		return "Khuyến mãi chưa bắt đầu"
	case ReasonExpired:
		return "Khuyến mãi đã hết hạn"
	case ReasonMisconfigured:
		return "Khuyến mãi không hợp lệ"
	case ReasonMinOrderNotMet:
		return printer.Sprintf("Đơn tối thiểu %s, cần mua thêm %s", FormatMoney(exp.MinOrder), FormatMoney(exp.Shortfall))
	case ReasonInsufficientQuantity:
		return printer.Sprintf("Mua %d tặng %d: cần thêm %d món", exp.BuyQuantity, exp.FreeQuantity, exp.RequiredQuantity-exp.CurrentQuantity)
	}

	var text string
	switch exp.Kind {
	case KindBuyXGetY:
		text = printer.Sprintf("Mua %d tặng %d: tặng %d món", exp.BuyQuantity, exp.FreeQuantity, exp.FreeItemsCount)
		if exp.IsAccumulative && exp.ApplicableSets > 1 {
			text += printer.Sprintf(" (%d lần)", exp.ApplicableSets)
		}
	default:
		if exp.DiscountType == DiscountPercent {
			text = printer.Sprintf("Giảm %d%%", exp.Value)
		} else {
			text = "Giảm " + FormatMoney(exp.Value)
		}
	}
	if exp.IsLimited && exp.MaxDiscount != nil {
		text += ", tối đa " + FormatMoney(*exp.MaxDiscount)
	}
	return text + " (-" + FormatMoney(discount) + ")"
}
