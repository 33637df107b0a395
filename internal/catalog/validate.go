package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NUMERIC(8,2)
var maxPrice = decimal.New(1, 6)

type categoryRules struct {
	Name string `validate:"required,max=100"`
}

type medicineRules struct {
	Name       string `validate:"required,max=100"`
	Stock      int    `validate:"gte=0"`
	CategoryID int64  `validate:"required,gt=0"`
}

func ValidateCategory(c Category) error {
	c.Name = strings.TrimSpace(c.Name)
	return describe(validate.Struct(categoryRules{Name: c.Name}))
}

func ValidateMedicine(m Medicine) error {
	err := validate.Struct(medicineRules{
		Name:       strings.TrimSpace(m.Name),
		Stock:      m.Stock,
		CategoryID: m.CategoryID,
	})
	if err != nil {
		return describe(err)
	}
	switch {
	case m.Price.IsNegative():
		return apperr.Invalid("price must not be negative")
	case !m.Price.Equal(m.Price.Round(2)):
		return apperr.Invalid("price has more than 2 decimal places")
	case m.Price.GreaterThanOrEqual(maxPrice):
		return apperr.Invalid("price must be below 1000000")
	}
	return nil
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid(err.Error())
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if field == "categoryid" {
		field = "category_id"
	}
	switch fe.Tag() {
	case "required":
		return apperr.Invalid(field + " is required")
	case "gte":
		return apperr.Invalid(field + " must not be negative")
	case "max":
		return apperr.Invalid(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return apperr.Invalid(fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
	}
}
