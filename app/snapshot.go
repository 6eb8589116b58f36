package app

import (
	"context"

	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/order"
)

// Snapshot is a consistent copy of the whole storefront state.
type Snapshot struct {
	Catalog        []catalog.Product     `json:"catalog"`
	Basket         catalog.BasketChanged `json:"basket"`
	Draft          order.Draft           `json:"draft"`
	Stage          order.Stage           `json:"stage"`
	ShippingErrors order.FormErrors      `json:"shippingErrors"`
	ContactsErrors order.FormErrors      `json:"contactsErrors"`
	Submitting     bool                  `json:"submitting"`
}

// Snapshot reads the state while no event is being dispatched.
func (a *App) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := a.bus.Exclusive(ctx, func(context.Context) error {
		snap = Snapshot{
			Catalog:        a.store.Items(),
			Basket:         a.store.BasketSnapshot(),
			Draft:          a.orders.Draft(),
			Stage:          a.orders.Stage(),
			ShippingErrors: a.orders.Errors(order.StageShipping),
			ContactsErrors: a.orders.Errors(order.StageContacts),
			Submitting:     a.orders.Submitting(),
		}
		return nil
	})
	return snap, err
}
