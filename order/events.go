package order

// Topics published by the machine.
const (
	TopicShippingErrors = "order.shipping.errors"
	TopicContactsErrors = "order.contacts.errors"
	TopicShippingReady  = "order.shipping.ready"
	TopicContactsReady  = "order.contacts.ready"
	TopicStageChanged   = "order.stage.changed"
	TopicSubmitted      = "order.submitted"
	TopicFailed         = "order.failed"
)

// ErrorsChanged is published after every validation of a stage. Errors is
// recomputed wholesale each time.
type ErrorsChanged struct {
	Stage  Stage      `json:"stage"`
	Errors FormErrors `json:"errors"`
	Valid  bool       `json:"valid"`
}

// StageReady is published when a stage turns valid.
type StageReady struct {
	Stage Stage `json:"stage"`
	Draft Draft `json:"draft"`
}

// StageChanged is published when checkout moves to another stage.
type StageChanged struct {
	Stage Stage `json:"stage"`
	Draft Draft `json:"draft"`
}

// Submitted is published when the order API accepted an order.
type Submitted struct {
	Order  Order  `json:"order"`
	Result Result `json:"result"`
}

// Failed is published when the order API rejected an order or could not be
// reached. The draft is kept so the customer can retry.
type Failed struct {
	Order Order  `json:"order"`
	Error string `json:"error"`
}
