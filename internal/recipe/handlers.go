package recipe

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-cafe/internal/common"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CostRequest is the body of POST /recipes/cost.
type CostRequest struct {
	Ingredients []Ingredient `json:"ingredients" validate:"required,min=1,dive"`
	Recipe      Recipe       `json:"recipe"`
}

// Handler exposes the recipe cost calculator.
type Handler struct{}

// Cost prices a recipe against the submitted ingredient list.
func (h *Handler) Cost(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[strings.TrimPrefix(fe.Namespace(), "CostRequest.")] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid recipe", fields)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	costing, err := Calculate(req.Ingredients, req.Recipe)
	if err != nil {
		obs.WriteError(w, r, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": costing})
}

// MapError converts costing errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownUnit), errors.Is(err, ErrIncompatibleUnit):
		return common.NewAppError("UNIT_ERROR", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrUnknownIngredient), errors.Is(err, ErrInvalidRecipe):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	}
	return err
}
