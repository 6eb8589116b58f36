package storefront

// View intents are the topics view surfaces publish when the user acts.
// The application subscribes to them and drives the state containers.
const (
	TopicFieldEdited    = "intent.field.edited"
	TopicOrderUpdate    = "intent.order.update"
	TopicProductSelect  = "intent.product.select"
	TopicBasketAdd      = "intent.basket.add"
	TopicBasketRemove   = "intent.basket.remove"
	TopicBasketOpen     = "intent.basket.open"
	TopicBasketCheckout = "intent.basket.checkout"
	TopicSubmitShipping = "intent.order.submit-shipping"
	TopicSubmitContacts = "intent.order.submit-contacts"
	TopicModalClosed    = "intent.modal.closed"
)

// FieldEdited is published on TopicFieldEdited for every keystroke or
// choice in a checkout form.
type FieldEdited struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// OrderUpdate carries several draft fields at once, keyed by their JSON
// names, e.g. {"address": "Main st. 1", "payment": "cash"}.
type OrderUpdate struct {
	Fields map[string]any `json:"fields"`
}

// ProductIntent is the payload of every intent that targets one product.
type ProductIntent struct {
	ProductID string `json:"productId"`
}
