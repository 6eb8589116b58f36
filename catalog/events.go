package catalog

import "github.com/shopspring/decimal"

// Topics published and consumed by the store.
const (
	// TopicCatalogLoad carries a []RawProduct from a catalog source. The
	// application replaces the catalog when it sees one.
	TopicCatalogLoad = "catalog.load"

	TopicCatalogChanged   = "catalog.changed"
	TopicBasketChanged    = "basket.changed"
	TopicProductPreviewed = "catalog.product.previewed"
)

// CatalogChanged is published on TopicCatalogChanged.
type CatalogChanged struct {
	Catalog []Product `json:"catalog"`
}

// BasketLine is one row of the basket view.
type BasketLine struct {
	Index int                 `json:"index"`
	ID    string              `json:"id"`
	Title string              `json:"title"`
	Price decimal.NullDecimal `json:"price"`
}

// BasketChanged is published on TopicBasketChanged.
type BasketChanged struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Items []BasketLine    `json:"items"`
}

// Preview is published on TopicProductPreviewed when a product is opened.
type Preview struct {
	Product Product `json:"product"`
	// CanAdd is false once the product is in the basket.
	CanAdd bool `json:"canAdd"`
}
