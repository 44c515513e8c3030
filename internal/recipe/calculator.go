package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// Money represents a monetary value stored in minor units.
type Money = promotion.Money

var (
	ErrUnknownIngredient = errors.New("unknown ingredient")
	ErrInvalidRecipe     = errors.New("invalid recipe")
)

var hundred = decimal.NewFromInt(100)

// Ingredient is a purchasable stock item priced per purchase pack.
type Ingredient struct {
	Name             string          `json:"name" validate:"required"`
	PurchasePrice    Money           `json:"purchasePrice" validate:"gte=0"`
	PurchaseQuantity decimal.Decimal `json:"purchaseQuantity"`
	PurchaseUnit     Unit            `json:"purchaseUnit" validate:"required"`
}

// Line is the amount of one ingredient used by a recipe.
type Line struct {
	Ingredient string          `json:"ingredient" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       Unit            `json:"unit" validate:"required"`
}

// Recipe describes a menu item and the ingredients one batch needs.
type Recipe struct {
	Name         string `json:"name" validate:"required"`
	Servings     int    `json:"servings" validate:"gte=0"`
	SellingPrice Money  `json:"sellingPrice" validate:"gte=0"`
	Lines        []Line `json:"lines" validate:"required,min=1,dive"`
}

// LineCost is the cost of one recipe line.
type LineCost struct {
	Ingredient string          `json:"ingredient"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       Unit            `json:"unit"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	Cost       Money           `json:"cost"`
}

// Costing is the result of costing a recipe.
type Costing struct {
	Recipe         string          `json:"recipe"`
	Servings       int             `json:"servings"`
	Lines          []LineCost      `json:"lines"`
	TotalCost      Money           `json:"totalCost"`
	CostPerServing Money           `json:"costPerServing"`
	SellingPrice   Money           `json:"sellingPrice"`
	Margin         Money           `json:"margin"`
	MarginPercent  decimal.Decimal `json:"marginPercent"`
}

// Calculate costs the recipe from the ingredient price list. Line costs are kept exact until
// the totals are rounded half away from zero to whole currency units.
func Calculate(ingredients []Ingredient, r Recipe) (Costing, error) {
	if len(r.Lines) == 0 {
		return Costing{}, fmt.Errorf("recipe has no lines: %w", ErrInvalidRecipe)
	}
	servings := r.Servings
	if servings <= 0 {
		servings = 1
	}
	if r.SellingPrice < 0 {
		return Costing{}, fmt.Errorf("selling price is negative: %w", ErrInvalidRecipe)
	}
	byName := make(map[string]Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byName[strings.ToLower(strings.TrimSpace(ing.Name))] = ing
	}

	out := Costing{
		Recipe:       strings.TrimSpace(r.Name),
		Servings:     servings,
		Lines:        make([]LineCost, 0, len(r.Lines)),
		SellingPrice: r.SellingPrice,
	}
	total := decimal.Zero
	for _, line := range r.Lines {
		ing, ok := byName[strings.ToLower(strings.TrimSpace(line.Ingredient))]
		if !ok {
			return Costing{}, fmt.Errorf("%q: %w", line.Ingredient, ErrUnknownIngredient)
		}
		if !line.Quantity.IsPositive() {
			return Costing{}, fmt.Errorf("%s: quantity must be positive: %w", line.Ingredient, ErrInvalidRecipe)
		}
		unitCost, err := costPerUnit(ing, line.Unit)
		if err != nil {
			return Costing{}, fmt.Errorf("%s: %w", line.Ingredient, err)
		}
		cost := line.Quantity.Mul(unitCost)
		total = total.Add(cost)
		out.Lines = append(out.Lines, LineCost{
			Ingredient: ing.Name,
			Quantity:   line.Quantity,
			Unit:       line.Unit,
			UnitCost:   unitCost.Round(4),
			Cost:       cost.Round(0).IntPart(),
		})
	}

	out.TotalCost = total.Round(0).IntPart()
	perServing := total.Div(decimal.NewFromInt(int64(servings)))
	out.CostPerServing = perServing.Round(0).IntPart()
	selling := decimal.NewFromInt(r.SellingPrice)
	margin := selling.Sub(perServing)
	out.Margin = margin.Round(0).IntPart()
	if selling.IsPositive() {
		out.MarginPercent = margin.Mul(hundred).Div(selling).Round(2)
	}
	return out, nil
}

// costPerUnit returns the price of one unit of the ingredient expressed in unit u.
func costPerUnit(ing Ingredient, u Unit) (decimal.Decimal, error) {
	if !ing.PurchaseQuantity.IsPositive() {
		return decimal.Zero, fmt.Errorf("purchase quantity must be positive: %w", ErrInvalidRecipe)
	}
	if ing.PurchasePrice < 0 {
		return decimal.Zero, fmt.Errorf("purchase price is negative: %w", ErrInvalidRecipe)
	}
	pack, err := Convert(ing.PurchaseQuantity, ing.PurchaseUnit, u)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(ing.PurchasePrice).Div(pack), nil
}
