package cart

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Money represents a monetary value stored in minor units.
type Money = promotion.Money

// ErrInvalidInput is returned when a cart line is malformed.
var ErrInvalidInput = errors.New("invalid input")

// AddOn is an extra attached to one unit of a line, such as a topping.
type AddOn struct {
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// Line is a cart entry as submitted by the till.
type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Size      string  `json:"size,omitempty"`
	Category  string  `json:"category"`
	UnitPrice Money   `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	AddOns    []AddOn `json:"addOns,omitempty"`
}

// Item is a normalized cart entry. Identical product, size and add-on combinations share one item.
type Item struct {
	ItemKey    string  `json:"itemKey"`
	ProductID  string  `json:"productId"`
	Name       string  `json:"name"`
	Size       string  `json:"size,omitempty"`
	Category   string  `json:"category"`
	UnitPrice  Money   `json:"unitPrice"`
	AddOnTotal Money   `json:"addOnTotal"`
	Quantity   int     `json:"quantity"`
	AddOns     []AddOn `json:"addOns,omitempty"`
	Subtotal   Money   `json:"subtotal"`
}

// LineItem converts the item into the engine representation.
func (it Item) LineItem() promotion.LineItem {
	return promotion.LineItem{
		ItemKey:    it.ItemKey,
		Category:   it.Category,
		UnitPrice:  it.UnitPrice,
		AddOnTotal: it.AddOnTotal,
		Quantity:   it.Quantity,
	}
}

// Cart is the built cart with its subtotal.
type Cart struct {
	Items    []Item `json:"items"`
	Subtotal Money  `json:"subtotal"`
}

// LineItems returns the engine view of the cart, in cart order.
func (c Cart) LineItems() []promotion.LineItem {
	out := make([]promotion.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.LineItem())
	}
	return out
}

// Build validates the lines, folds add-ons into the unit price and merges identical entries
// while keeping first-seen order.
func Build(lines []Line) (Cart, error) {
	if len(lines) == 0 {
		return Cart{}, fmt.Errorf("cart is empty: %w", ErrInvalidInput)
	}
	items := make([]Item, 0, len(lines))
	index := make(map[string]int, len(lines))
	for i, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return Cart{}, fmt.Errorf("line %d: product id is required: %w", i, ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return Cart{}, fmt.Errorf("line %d: quantity must be positive: %w", i, ErrInvalidInput)
		}
		if line.UnitPrice < 0 {
			return Cart{}, fmt.Errorf("line %d: unit price must not be negative: %w", i, ErrInvalidInput)
		}
		addOns := make([]AddOn, 0, len(line.AddOns))
		var addOnTotal Money
		for _, a := range line.AddOns {
			name := strings.TrimSpace(a.Name)
			if name == "" {
				return Cart{}, fmt.Errorf("line %d: add-on name is required: %w", i, ErrInvalidInput)
			}
			if a.Price < 0 {
				return Cart{}, fmt.Errorf("line %d: add-on price must not be negative: %w", i, ErrInvalidInput)
			}
			addOns = append(addOns, AddOn{Name: name, Price: a.Price})
			addOnTotal += a.Price
		}
		sort.SliceStable(addOns, func(a, b int) bool {
			return strings.ToLower(addOns[a].Name) < strings.ToLower(addOns[b].Name)
		})
		size := strings.TrimSpace(line.Size)
		category := strings.TrimSpace(line.Category)
		key := ItemKey(productID, size, addOns)

		if pos, ok := index[key]; ok {
			if items[pos].UnitPrice != line.UnitPrice || items[pos].AddOnTotal != addOnTotal {
				return Cart{}, fmt.Errorf("line %d: conflicting prices for %s: %w", i, key, ErrInvalidInput)
			}
			if !strings.EqualFold(items[pos].Category, category) {
				return Cart{}, fmt.Errorf("line %d: conflicting categories for %s: %w", i, key, ErrInvalidInput)
			}
			items[pos].Quantity += line.Quantity
			items[pos].Subtotal = (items[pos].UnitPrice + items[pos].AddOnTotal) * Money(items[pos].Quantity)
			continue
		}
		if len(addOns) == 0 {
			addOns = nil
		}
		index[key] = len(items)
		items = append(items, Item{
			ItemKey:    key,
			ProductID:  productID,
			Name:       strings.TrimSpace(line.Name),
			Size:       size,
			Category:   category,
			UnitPrice:  line.UnitPrice,
			AddOnTotal: addOnTotal,
			Quantity:   line.Quantity,
			AddOns:     addOns,
			Subtotal:   (line.UnitPrice + addOnTotal) * Money(line.Quantity),
		})
	}
	var subtotal Money
	for _, it := range items {
		subtotal += it.Subtotal
	}
	return Cart{Items: items, Subtotal: subtotal}, nil
}

// ItemKey derives the identity of a product variant with its add-ons: product[:size][+addon,...].
// Add-ons are expected in sorted order.
func ItemKey(productID, size string, addOns []AddOn) string {
	var b strings.Builder
	b.WriteString(productID)
	if size != "" {
		b.WriteByte(':')
		b.WriteString(strings.ToUpper(size))
	}
	for i, a := range addOns {
		if i == 0 {
			b.WriteByte('+')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(strings.ToLower(a.Name))
	}
	return b.String()
}
