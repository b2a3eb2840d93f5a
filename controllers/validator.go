package controllers

import (
	"fmt"
	"strconv"
	"strings"

	"price-sync-service/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RequestValidator handles input validation for surcharge table updates.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validate: validator.New(),
	}
}

// ValidateTableUpdate checks a partial update against the current table. The
// table shape is operator-provisioned, so every submitted category and
// variant title must already exist, and every surcharge must be non-negative.
func (rv *RequestValidator) ValidateTableUpdate(updates, table models.PriceTable) error {
	for category, entries := range updates {
		current, ok := table[category]
		if !ok {
			return fmt.Errorf("unknown category %q", category)
		}
		for title, value := range entries {
			if _, ok := current[title]; !ok {
				return fmt.Errorf("unknown variant title %q in category %q", title, category)
			}
			if err := rv.validate.Var(value, "gte=0"); err != nil {
				return fmt.Errorf("surcharge for %s/%s must be non-negative", category, title)
			}
		}
	}
	return nil
}

// ParsePriceForm extracts surcharge updates from an HTML form submission.
// Fields are keyed "{category}_{variant title}"; only fields present in the
// form are returned, so a partial form leaves the other entries untouched.
func (rv *RequestValidator) ParsePriceForm(c *gin.Context, table models.PriceTable) (models.PriceTable, error) {
	updates := models.PriceTable{}
	for category, entries := range table {
		for title := range entries {
			field := category + "_" + title
			raw, ok := c.GetPostForm(field)
			if !ok {
				continue
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q for field %s", raw, field)
			}
			if err := rv.validate.Var(value, "gte=0"); err != nil {
				return nil, fmt.Errorf("surcharge for field %s must be non-negative", field)
			}
			if updates[category] == nil {
				updates[category] = map[string]float64{}
			}
			updates[category][title] = value
		}
	}
	return updates, nil
}
