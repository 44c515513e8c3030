package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a measurement unit for ingredients.
type Unit string

const (
	Milligram  Unit = "mg"
	Gram       Unit = "g"
	Kilogram   Unit = "kg"
	Milliliter Unit = "ml"
	Liter      Unit = "l"
	Piece      Unit = "pcs"
)

var (
	ErrUnknownUnit      = errors.New("unknown unit")
	ErrIncompatibleUnit = errors.New("incompatible units")
)

type dimension int

const (
	mass dimension = iota + 1
	volume
	count
)

type unitInfo struct {
	dim    dimension
	toBase decimal.Decimal
}

var units = map[Unit]unitInfo{
	Milligram:  {mass, decimal.New(1, -3)},
	Gram:       {mass, decimal.NewFromInt(1)},
	Kilogram:   {mass, decimal.NewFromInt(1000)},
	Milliliter: {volume, decimal.NewFromInt(1)},
	Liter:      {volume, decimal.NewFromInt(1000)},
	Piece:      {count, decimal.NewFromInt(1)},
}

var aliases = map[string]Unit{
	"gr":    Gram,
	"gram":  Gram,
	"lit":   Liter,
	"litre": Liter,
	"liter": Liter,
	"pc":    Piece,
	"piece": Piece,
}

// ParseUnit normalizes a unit name.
func ParseUnit(raw string) (Unit, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if u, ok := aliases[name]; ok {
		return u, nil
	}
	if _, ok := units[Unit(name)]; ok {
		return Unit(name), nil
	}
	return "", fmt.Errorf("%q: %w", raw, ErrUnknownUnit)
}

// Convert expresses qty of from in unit to.
func Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	src, err := info(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := info(to)
	if err != nil {
		return decimal.Zero, err
	}
	if src.dim != dst.dim {
		return decimal.Zero, fmt.Errorf("%s to %s: %w", from, to, ErrIncompatibleUnit)
	}
	return qty.Mul(src.toBase).Div(dst.toBase), nil
}

func info(u Unit) (unitInfo, error) {
	parsed, err := ParseUnit(string(u))
	if err != nil {
		return unitInfo{}, err
	}
	return units[parsed], nil
}
