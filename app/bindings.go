package app

import (
	"context"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/order"
)

// bind subscribes the state containers to the topics they react to.
func (a *App) bind() error {
	bindings := []struct {
		topic   string
		handler eventbus.EventHandler
	}{
		{catalog.TopicCatalogLoad, typed(a.store.SetCatalog)},
		{storefront.TopicProductSelect, byProduct(a.store.PreviewProduct)},
		{storefront.TopicBasketAdd, byProduct(a.store.AddToBasket)},
		{storefront.TopicBasketRemove, byProduct(a.store.DeleteFromBasket)},
		{storefront.TopicBasketOpen, ignorePayload(a.store.OpenBasket)},
		{storefront.TopicBasketCheckout, ignorePayload(a.orders.StartCheckout)},
		{storefront.TopicFieldEdited, typed(a.fieldEdited)},
		{storefront.TopicOrderUpdate, typed(a.orderUpdate)},
		{storefront.TopicSubmitShipping, ignorePayload(a.orders.SubmitShipping)},
		{storefront.TopicSubmitContacts, ignorePayload(a.orders.StartSubmit)},
		{storefront.TopicModalClosed, ignorePayload(a.modalClosed)},
		{order.TopicSubmitted, ignorePayload(a.orderSubmitted)},
	}

	for _, b := range bindings {
		sub, err := a.bus.Subscribe(b.topic, b.handler)
		if err != nil {
			return err
		}
		a.subscriptions = append(a.subscriptions, sub)
	}
	return nil
}

func typed[T any](fn func(context.Context, T) error) eventbus.EventHandler {
	return func(ctx context.Context, event eventbus.Event) error {
		payload, err := eventbus.PayloadAs[T](event)
		if err != nil {
			return err
		}
		return fn(ctx, payload)
	}
}

func byProduct(fn func(context.Context, string) error) eventbus.EventHandler {
	return typed(func(ctx context.Context, intent storefront.ProductIntent) error {
		return fn(ctx, intent.ProductID)
	})
}

func ignorePayload(fn func(context.Context) error) eventbus.EventHandler {
	return func(ctx context.Context, _ eventbus.Event) error {
		return fn(ctx)
	}
}

func (a *App) fieldEdited(ctx context.Context, edit storefront.FieldEdited) error {
	return a.orders.SetField(ctx, edit.Field, edit.Value)
}

func (a *App) orderUpdate(ctx context.Context, update storefront.OrderUpdate) error {
	return a.orders.Update(ctx, update.Fields)
}

func (a *App) modalClosed(context.Context) error {
	a.orders.ResetDraft()
	return nil
}

// orderSubmitted empties the basket once the order API accepted an order.
func (a *App) orderSubmitted(ctx context.Context) error {
	if err := a.store.ClearBasket(ctx); err != nil {
		return err
	}
	return a.store.ResetSelected(ctx)
}
