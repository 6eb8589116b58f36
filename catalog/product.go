// Package catalog holds the product catalog and the shopping basket.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is one of the fixed product category labels.
type Category string

// Product categories
const (
	CategorySoftSkill  Category = "soft-skill"
	CategoryHardSkill  Category = "hard-skill"
	CategoryButton     Category = "button"
	CategoryAdditional Category = "additional"
	CategoryOther      Category = "other"
)

var categoryAliases = map[string]Category{
	"soft-skill":     CategorySoftSkill,
	"софт-скил":      CategorySoftSkill,
	"hard-skill":     CategoryHardSkill,
	"хард-скил":      CategoryHardSkill,
	"button":         CategoryButton,
	"кнопка":         CategoryButton,
	"additional":     CategoryAdditional,
	"дополнительное": CategoryAdditional,
	"other":          CategoryOther,
	"другое":         CategoryOther,
}

// ParseCategory maps a raw API label onto a Category. The second result is
// false when the label is unknown, in which case CategoryOther is returned.
func ParseCategory(raw string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return CategoryOther, false
	}
	return c, true
}

// RawProduct is a product record as delivered by the product API or a seed
// file. A null price marks a priceless product.
type RawProduct struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Title       string              `json:"title"`
	Category    string              `json:"category"`
	Price       decimal.NullDecimal `json:"price"`
}

// Product is a catalog entry. Selected is true exactly while the product
// sits in the basket.
type Product struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Category    Category            `json:"category"`
	Price       decimal.NullDecimal `json:"price"`
	Selected    bool                `json:"selected"`
}

// Priceless reports whether the product has no price.
func (p Product) Priceless() bool {
	return !p.Price.Valid
}

// PriceOrZero returns the price, or zero for a priceless product.
func (p Product) PriceOrZero() decimal.Decimal {
	if !p.Price.Valid {
		return decimal.Zero
	}
	return p.Price.Decimal
}
