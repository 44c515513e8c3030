package promotion

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// ErrValidation is the root of every input validation failure.
var ErrValidation = errors.New("invalid promotion")

// ValidationError lists the offending fields keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Input is the payload accepted when creating or replacing a promotion.
type Input struct {
	Code           string `json:"code" validate:"required,max=32,promocode"`
	Name           string `json:"name" validate:"required,max=120"`
	Kind           string `json:"kind" validate:"required,oneof=regular buy_x_get_y"`
	DiscountType   string `json:"discountType" validate:"omitempty,oneof=percent amount"`
	Value          *int64 `json:"value" validate:"omitempty,gt=0"`
	MinOrder       *int64 `json:"minOrder" validate:"omitempty,gte=0"`
	BuyQuantity    *int   `json:"buyQuantity" validate:"omitempty,gte=1,lte=1000"`
	FreeQuantity   *int   `json:"freeQuantity" validate:"omitempty,gte=1,lte=1000"`
	IsAccumulative *bool  `json:"isAccumulative"`
	MaxDiscount    *int64 `json:"maxDiscount" validate:"omitempty,gt=0"`
	StartDate      string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Active         *bool  `json:"active"`
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("promocode", func(fl validator.FieldLevel) bool {
		for _, r := range strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
			if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
				return false
			}
		}
		return true
	})
	v.RegisterStructValidation(validateInputShape, Input{})
	return v
}

// validateInputShape enforces the fields each kind requires or forbids.
func validateInputShape(sl validator.StructLevel) {
	in := sl.Current().Interface().(Input)
	switch strings.ToLower(strings.TrimSpace(in.Kind)) {
	case string(KindRegular):
		if in.DiscountType == "" {
			sl.ReportError(in.DiscountType, "discountType", "DiscountType", "required", "")
		}
		if in.Value == nil {
			sl.ReportError(in.Value, "value", "Value", "required", "")
		} else if DiscountType(in.DiscountType) == DiscountPercent && *in.Value > 100 {
			sl.ReportError(in.Value, "value", "Value", "lte", "100")
		}
		if in.BuyQuantity != nil {
			sl.ReportError(in.BuyQuantity, "buyQuantity", "BuyQuantity", "excluded", "")
		}
		if in.FreeQuantity != nil {
			sl.ReportError(in.FreeQuantity, "freeQuantity", "FreeQuantity", "excluded", "")
		}
		if in.IsAccumulative != nil {
			sl.ReportError(in.IsAccumulative, "isAccumulative", "IsAccumulative", "excluded", "")
		}
	case string(KindBuyXGetY):
		if in.BuyQuantity == nil {
			sl.ReportError(in.BuyQuantity, "buyQuantity", "BuyQuantity", "required", "")
		}
		if in.FreeQuantity == nil {
			sl.ReportError(in.FreeQuantity, "freeQuantity", "FreeQuantity", "required", "")
		}
		if in.DiscountType != "" {
			sl.ReportError(in.DiscountType, "discountType", "DiscountType", "excluded", "")
		}
		if in.Value != nil {
			sl.ReportError(in.Value, "value", "Value", "excluded", "")
		}
		if in.MinOrder != nil {
			sl.ReportError(in.MinOrder, "minOrder", "MinOrder", "excluded", "")
		}
	}
	if in.StartDate != "" && in.EndDate != "" && in.EndDate < in.StartDate {
		sl.ReportError(in.EndDate, "endDate", "EndDate", "gtefield", "startDate")
	}
}

// Validate runs field and shape validation, returning a *ValidationError on failure.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}

// Promotion validates the input and converts it to a promotion. Dates are interpreted in loc.
func (in Input) Promotion(loc *time.Location) (Promotion, error) {
	if err := in.Validate(); err != nil {
		return Promotion{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	rec := Record{
		Code:           NormalizeCode(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Kind:           Kind(strings.ToLower(strings.TrimSpace(in.Kind))),
		DiscountType:   DiscountType(in.DiscountType),
		Value:          in.Value,
		MinOrder:       in.MinOrder,
		BuyQuantity:    in.BuyQuantity,
		FreeQuantity:   in.FreeQuantity,
		IsAccumulative: in.IsAccumulative,
		MaxDiscount:    in.MaxDiscount,
		Active:         true,
	}
	if in.Active != nil {
		rec.Active = *in.Active
	}
	if rec.Kind == KindBuyXGetY && rec.IsAccumulative == nil {
		acc := false
		rec.IsAccumulative = &acc
	}
	var err error
	if rec.StartDate, err = parseDate(in.StartDate, loc); err != nil {
		return Promotion{}, err
	}
	if rec.EndDate, err = parseDate(in.EndDate, loc); err != nil {
		return Promotion{}, err
	}
	return FromRecord(rec)
}

// NormalizeCode trims and upper-cases a promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func parseDate(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"date": "datetime=" + dateLayout}}
	}
	return &t, nil
}
