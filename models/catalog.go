package models

import "strconv"

// Metafield is a single namespaced key/value attached to a product.
type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// Variant is a sellable variation of a product, e.g. a chain length.
type Variant struct {
	ID    string `json:"id"` // GraphQL GID, e.g. "gid://shopify/ProductVariant/123"
	Title string `json:"title"`
}

// Product is the slice of the remote catalog the sync engine works on:
// identity, tags, the metafields that carry the base price, and the variants
// whose prices get rewritten.
type Product struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Tags       []string    `json:"tags"`
	Metafields []Metafield `json:"metafields"`
	Variants   []Variant   `json:"variants"`

	// Set when the catalog listing could not return every nested record
	// within the per-product query caps. Such products risk partial updates
	// and the engine reports them before processing.
	VariantsTruncated   bool `json:"variants_truncated,omitempty"`
	MetafieldsTruncated bool `json:"metafields_truncated,omitempty"`
}

// HasTag reports whether the product carries the given tag.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BasePrice scans the product's metafields for namespace/key and parses the
// value as a decimal price. The second return is false when the metafield is
// absent or its value is not numeric.
func (p Product) BasePrice(namespace, key string) (float64, bool) {
	for _, m := range p.Metafields {
		if m.Namespace != namespace || m.Key != key {
			continue
		}
		v, err := strconv.ParseFloat(m.Value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
