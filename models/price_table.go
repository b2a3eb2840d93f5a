package models

import "strings"

// PriceTable maps a product category to the surcharge charged per variant
// title, e.g. {"collier": {"Small": 2.5}}. It mirrors the JSON document the
// dashboard edits and the sync engine reads.
type PriceTable map[string]map[string]float64

// SurchargeFor returns the surcharge for a variant title within a category.
// Titles are matched after trimming surrounding whitespace; an unknown
// category or title yields 0, never an error.
func (t PriceTable) SurchargeFor(category, variantTitle string) float64 {
	variants, ok := t[category]
	if !ok {
		return 0
	}
	return variants[strings.TrimSpace(variantTitle)]
}

// HasEntry reports whether the table carries an explicit surcharge for the
// given category and variant title.
func (t PriceTable) HasEntry(category, variantTitle string) bool {
	variants, ok := t[category]
	if !ok {
		return false
	}
	_, ok = variants[strings.TrimSpace(variantTitle)]
	return ok
}
