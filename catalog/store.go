package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/observable"
)

// Store errors
var (
	ErrProductNotFound = errors.New("product not found in catalog")
)

// Store holds the catalog and the basket. The basket is a list of product
// ids in insertion order; the catalog is the only place product records
// live.
//
// Store is not safe for concurrent use. Callers drive it from event
// handlers or from within EventBus.Exclusive.
type Store struct {
	observable.Model

	imageBase string
	items     []*Product
	index     map[string]*Product
	basket    []string
}

// Option configures a Store.
type Option func(*Store)

// WithImageBase prefixes every relative product image reference.
func WithImageBase(base string) Option {
	return func(s *Store) {
		s.imageBase = base
	}
}

// NewStore creates an empty store publishing on bus.
func NewStore(bus eventbus.EventBus, logger storefront.Logger, opts ...Option) (*Store, error) {
	model, err := observable.NewModel(bus, logger)
	if err != nil {
		return nil, err
	}
	s := &Store{
		Model: model,
		index: make(map[string]*Product),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetCatalog replaces the catalog wholesale and publishes TopicCatalogChanged.
// Basket entries whose product disappeared are dropped, in which case
// TopicBasketChanged follows. Selection flags are re-derived from the basket.
func (s *Store) SetCatalog(ctx context.Context, raw []RawProduct) error {
	items := make([]*Product, 0, len(raw))
	index := make(map[string]*Product, len(raw))
	for _, r := range raw {
		if _, dup := index[r.ID]; dup {
			s.Logger().Warn("Duplicate product id ignored", "id", r.ID)
			continue
		}
		p := s.wrap(r)
		items = append(items, p)
		index[p.ID] = p
	}
	s.items = items
	s.index = index

	before := len(s.basket)
	s.basket = slices.DeleteFunc(s.basket, func(id string) bool {
		_, ok := index[id]
		return !ok
	})
	for _, id := range s.basket {
		index[id].Selected = true
	}
	s.Logger().Debug("Catalog replaced", "products", len(items), "basketPruned", before-len(s.basket))

	if err := s.EmitChanges(ctx, TopicCatalogChanged, CatalogChanged{Catalog: s.Items()}); err != nil {
		return err
	}
	if len(s.basket) != before {
		return s.emitBasket(ctx)
	}
	return nil
}

func (s *Store) wrap(r RawProduct) *Product {
	category, known := ParseCategory(r.Category)
	if !known {
		s.Logger().Warn("Unknown product category", "id", r.ID, "category", r.Category)
	}
	image := r.Image
	if s.imageBase != "" && image != "" && !strings.Contains(image, "://") {
		image = strings.TrimSuffix(s.imageBase, "/") + "/" + strings.TrimPrefix(image, "/")
	}
	return &Product{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Image:       image,
		Category:    category,
		Price:       r.Price,
	}
}

// AddToBasket marks the product selected and appends it to the basket.
// Adding a product that is already in the basket does nothing.
func (s *Store) AddToBasket(ctx context.Context, id string) error {
	p, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if slices.Contains(s.basket, id) {
		s.Logger().Debug("Product already in basket", "id", id)
		return nil
	}
	p.Selected = true
	s.basket = append(s.basket, id)
	return s.emitBasket(ctx)
}

// DeleteFromBasket removes the product from the basket and clears its
// selection flag. Unknown ids are ignored.
func (s *Store) DeleteFromBasket(ctx context.Context, id string) error {
	i := slices.Index(s.basket, id)
	if i < 0 {
		return nil
	}
	s.basket = slices.Delete(s.basket, i, i+1)
	if p, ok := s.index[id]; ok {
		p.Selected = false
	}
	return s.emitBasket(ctx)
}

// ClearBasket empties the basket. Selection flags are left alone; see
// ResetSelected.
func (s *Store) ClearBasket(ctx context.Context) error {
	s.basket = s.basket[:0]
	return s.emitBasket(ctx)
}

// ResetSelected clears the selection flag on every product.
func (s *Store) ResetSelected(ctx context.Context) error {
	for _, p := range s.items {
		p.Selected = false
	}
	return s.EmitChanges(ctx, TopicCatalogChanged, CatalogChanged{Catalog: s.Items()})
}

// OpenBasket republishes the current basket so a basket view can render.
func (s *Store) OpenBasket(ctx context.Context) error {
	return s.emitBasket(ctx)
}

// PreviewProduct publishes TopicProductPreviewed for the product.
func (s *Store) PreviewProduct(ctx context.Context, id string) error {
	p, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return s.Notify(ctx, TopicProductPreviewed, Preview{Product: *p, CanAdd: !p.Selected})
}

// BasketCount returns the number of products in the basket.
func (s *Store) BasketCount() int {
	return len(s.basket)
}

// BasketTotal sums the basket prices. Priceless products count as zero.
func (s *Store) BasketTotal() decimal.Decimal {
	total := decimal.Zero
	for _, id := range s.basket {
		total = total.Add(s.index[id].PriceOrZero())
	}
	return total
}

// BasketIDs returns the basket product ids in insertion order.
func (s *Store) BasketIDs() []string {
	return slices.Clone(s.basket)
}

// Basket returns copies of the basket products in insertion order.
func (s *Store) Basket() []Product {
	out := make([]Product, 0, len(s.basket))
	for _, id := range s.basket {
		out = append(out, *s.index[id])
	}
	return out
}

// Items returns copies of all catalog products in catalog order.
func (s *Store) Items() []Product {
	out := make([]Product, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, *p)
	}
	return out
}

// Product returns a copy of the product with the given id.
func (s *Store) Product(id string) (Product, bool) {
	p, ok := s.index[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// BasketSnapshot returns the payload published on TopicBasketChanged.
func (s *Store) BasketSnapshot() BasketChanged {
	lines := make([]BasketLine, 0, len(s.basket))
	for i, id := range s.basket {
		p := s.index[id]
		lines = append(lines, BasketLine{Index: i + 1, ID: p.ID, Title: p.Title, Price: p.Price})
	}
	return BasketChanged{
		Count: len(s.basket),
		Total: s.BasketTotal(),
		Items: lines,
	}
}

func (s *Store) emitBasket(ctx context.Context) error {
	return s.EmitChanges(ctx, TopicBasketChanged, s.BasketSnapshot())
}
