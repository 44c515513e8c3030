package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-cafe/internal/promotion"
)

// MaxRangeDays bounds the number of days a single report may span.
const MaxRangeDays = 366

// ErrInvalidRange is returned for inverted or oversized ranges.
var ErrInvalidRange = errors.New("invalid date range")

// DailySales is the rollup of one calendar day.
type DailySales struct {
	Date     string          `json:"date"`
	Invoices int64           `json:"invoices"`
	Subtotal promotion.Money `json:"subtotal"`
	Discount promotion.Money `json:"discount"`
	Revenue  promotion.Money `json:"revenue"`
}

// SalesReport lists daily rows with their totals.
type SalesReport struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Days   []DailySales `json:"days"`
	Totals DailySales   `json:"totals"`
}

// PromotionUsage aggregates how often a promotion code was applied.
type PromotionUsage struct {
	Code     string          `json:"code"`
	Uses     int64           `json:"uses"`
	Discount promotion.Money `json:"discount"`
}

// Service reads the daily rollups.
type Service struct {
	R            *redis.Client
	Location     *time.Location
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s != nil && s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// DefaultWindow returns the inclusive day range ending today.
func (s *Service) DefaultWindow(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 30
	}
	if days > MaxRangeDays {
		days = MaxRangeDays
	}
	today := startOfDay(s.now().In(s.location()))
	return today.AddDate(0, 0, -(days - 1)), today
}

// Sales returns one row per day between from and to inclusive.
func (s *Service) Sales(ctx context.Context, from, to time.Time) (SalesReport, error) {
	if s == nil || s.R == nil {
		return SalesReport{}, errors.New("analytics service not configured")
	}
	days, err := s.days(from, to)
	if err != nil {
		return SalesReport{}, err
	}
	cmds := make([]*redis.MapStringStringCmd, len(days))
	if _, err := s.R.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, day := range days {
			cmds[i] = p.HGetAll(ctx, salesKey(day))
		}
		return nil
	}); err != nil {
		return SalesReport{}, fmt.Errorf("read daily sales: %w", err)
	}

	report := SalesReport{From: days[0], To: days[len(days)-1], Days: make([]DailySales, 0, len(days))}
	for i, day := range days {
		fields := cmds[i].Val()
		row := DailySales{
			Date:     day,
			Invoices: parseInt(fields[fieldInvoices]),
			Subtotal: parseInt(fields[fieldSubtotal]),
			Discount: parseInt(fields[fieldDiscount]),
			Revenue:  parseInt(fields[fieldRevenue]),
		}
		report.Days = append(report.Days, row)
		report.Totals.Invoices += row.Invoices
		report.Totals.Subtotal += row.Subtotal
		report.Totals.Discount += row.Discount
		report.Totals.Revenue += row.Revenue
	}
	return report, nil
}

// Promotions returns usage per promotion code, most used first.
func (s *Service) Promotions(ctx context.Context, from, to time.Time) ([]PromotionUsage, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("analytics service not configured")
	}
	days, err := s.days(from, to)
	if err != nil {
		return nil, err
	}
	cmds := make([]*redis.MapStringStringCmd, len(days))
	if _, err := s.R.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, day := range days {
			cmds[i] = p.HGetAll(ctx, promoKey(day))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read promotion usage: %w", err)
	}

	byCode := map[string]*PromotionUsage{}
	usage := func(code string) *PromotionUsage {
		u, ok := byCode[code]
		if !ok {
			u = &PromotionUsage{Code: code}
			byCode[code] = u
		}
		return u
	}
	for _, cmd := range cmds {
		for field, raw := range cmd.Val() {
			if code, ok := strings.CutSuffix(field, ":discount"); ok {
				usage(code).Discount += parseInt(raw)
				continue
			}
			usage(field).Uses += parseInt(raw)
		}
	}
	out := make([]PromotionUsage, 0, len(byCode))
	for _, u := range byCode {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (s *Service) days(from, to time.Time) ([]string, error) {
	loc := s.location()
	from = startOfDay(from.In(loc))
	to = startOfDay(to.In(loc))
	if to.Before(from) {
		return nil, fmt.Errorf("to before from: %w", ErrInvalidRange)
	}
	out := make([]string, 0, 32)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(out) == MaxRangeDays {
			return nil, fmt.Errorf("range exceeds %d days: %w", MaxRangeDays, ErrInvalidRange)
		}
		out = append(out, d.Format(dayLayout))
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseInt(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
