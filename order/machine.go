package order

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/observable"
)

// Validation messages
const (
	MsgAddressRequired = "address is required"
	MsgPaymentRequired = "payment method is required"
	MsgEmailRequired   = "email is required"
	MsgPhoneRequired   = "phone is required"
)

// Machine is the checkout state machine. Checkout moves from the shipping
// stage to the contacts stage once address and payment method are present,
// and on to submitted once email and phone are present and the order API
// accepted the order. A successful submission or a dismissal returns the
// machine to an empty draft in the shipping stage.
//
// Like the catalog store, Machine relies on the event bus for serialization.
type Machine struct {
	observable.Model

	submitter Submitter
	lineItems LineItemSource

	draft  Draft
	stage  Stage
	errors map[Stage]FormErrors

	// ready holds the last readiness announced per stage, so that ready
	// events fire on the transition only.
	ready      map[Stage]bool
	submitting bool

	// inflight tracks submissions sent by StartSubmit.
	inflight sync.WaitGroup
}

// NewMachine creates a machine with a default draft.
func NewMachine(bus eventbus.EventBus, logger storefront.Logger, submitter Submitter, lineItems LineItemSource) (*Machine, error) {
	model, err := observable.NewModel(bus, logger)
	if err != nil {
		return nil, err
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if lineItems == nil {
		return nil, ErrNilLineItems
	}
	m := &Machine{
		Model:     model,
		submitter: submitter,
		lineItems: lineItems,
	}
	m.ResetDraft()
	return m, nil
}

// Draft returns a copy of the current draft.
func (m *Machine) Draft() Draft {
	return m.draft.clone()
}

// Stage returns the current checkout stage.
func (m *Machine) Stage() Stage {
	return m.stage
}

// Errors returns the form errors of the last validation of stage.
func (m *Machine) Errors(stage Stage) FormErrors {
	return maps.Clone(m.errors[stage])
}

// Submitting reports whether an order is being sent.
func (m *Machine) Submitting() bool {
	return m.submitting
}

// SetField assigns one draft field and re-validates the stage it belongs to.
// An invalid payment method is rejected without touching the draft.
func (m *Machine) SetField(ctx context.Context, name, value string) error {
	field := Field(name)
	switch field {
	case FieldPayment:
		method, err := ParsePaymentMethod(value)
		if err != nil {
			return err
		}
		m.draft.Payment = method
	case FieldAddress:
		m.draft.Address = value
	case FieldEmail:
		m.draft.Email = value
	case FieldPhone:
		m.draft.Phone = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	m.Logger().Debug("Order field set", "field", name)
	return m.revalidate(ctx, field.stage())
}

// editable mirrors the editable part of Draft for bulk updates.
type editable struct {
	Payment string `json:"payment"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// Update assigns several fields at once, keyed by field name. Values are
// coerced to strings. Nothing is written if any key or value is rejected.
// Each affected stage is re-validated once.
func (m *Machine) Update(ctx context.Context, fields map[string]any) error {
	next := editable{
		Payment: string(m.draft.Payment),
		Address: m.draft.Address,
		Email:   m.draft.Email,
		Phone:   m.draft.Phone,
	}
	assigned, err := observable.Assign(&next, fields)
	if err != nil {
		if errors.Is(err, observable.ErrUnknownField) {
			return fmt.Errorf("%w: %w", ErrUnknownField, err)
		}
		return err
	}
	method, err := ParsePaymentMethod(next.Payment)
	if err != nil {
		return err
	}

	m.draft.Payment = method
	m.draft.Address = next.Address
	m.draft.Email = next.Email
	m.draft.Phone = next.Phone

	var stages []Stage
	for _, name := range assigned {
		if s := Field(name).stage(); !slices.Contains(stages, s) {
			stages = append(stages, s)
		}
	}
	slices.Sort(stages)

	var errs []error
	for _, s := range stages {
		errs = append(errs, m.revalidate(ctx, s))
	}
	return errors.Join(errs...)
}

func (m *Machine) revalidate(ctx context.Context, stage Stage) error {
	var (
		valid bool
		err   error
		topic = TopicShippingReady
	)
	if stage == StageContacts {
		valid, err = m.ValidateContacts(ctx)
		topic = TopicContactsReady
	} else {
		valid, err = m.ValidateShipping(ctx)
	}
	if err != nil {
		return err
	}

	wasReady := m.ready[stage]
	m.ready[stage] = valid
	if valid && !wasReady {
		return m.Notify(ctx, topic, StageReady{Stage: stage, Draft: m.Draft()})
	}
	return nil
}

// ValidateShipping checks that address and payment method are present,
// publishes the resulting errors and reports whether there were none.
func (m *Machine) ValidateShipping(ctx context.Context) (bool, error) {
	errs := FormErrors{}
	if m.draft.Address == "" {
		errs[string(FieldAddress)] = MsgAddressRequired
	}
	if m.draft.Payment == "" {
		errs[string(FieldPayment)] = MsgPaymentRequired
	}
	return m.publishErrors(ctx, StageShipping, TopicShippingErrors, errs)
}

// ValidateContacts checks that email and phone are present, publishes the
// resulting errors and reports whether there were none.
func (m *Machine) ValidateContacts(ctx context.Context) (bool, error) {
	errs := FormErrors{}
	if m.draft.Email == "" {
		errs[string(FieldEmail)] = MsgEmailRequired
	}
	if m.draft.Phone == "" {
		errs[string(FieldPhone)] = MsgPhoneRequired
	}
	return m.publishErrors(ctx, StageContacts, TopicContactsErrors, errs)
}

func (m *Machine) publishErrors(ctx context.Context, stage Stage, topic string, errs FormErrors) (bool, error) {
	m.errors[stage] = errs
	valid := len(errs) == 0
	err := m.Notify(ctx, topic, ErrorsChanged{Stage: stage, Errors: maps.Clone(errs), Valid: valid})
	return valid, err
}

// FreezeLineItems captures the basket ids and total into the draft.
func (m *Machine) FreezeLineItems() {
	m.draft.Items = m.lineItems.BasketIDs()
	if m.draft.Items == nil {
		m.draft.Items = []string{}
	}
	m.draft.Total = decimal.NewNullDecimal(m.lineItems.BasketTotal())
}

// ResetDraft restores the default draft and the shipping stage. It does
// not publish anything.
func (m *Machine) ResetDraft() {
	m.draft = NewDraft()
	m.stage = StageShipping
	m.errors = make(map[Stage]FormErrors)
	m.ready = make(map[Stage]bool)
	m.Logger().Debug("Order draft reset")
}

// StartCheckout opens the shipping stage for the current basket and
// publishes its initial errors, so a form can render them before the first
// edit.
func (m *Machine) StartCheckout(ctx context.Context) error {
	if len(m.lineItems.BasketIDs()) == 0 {
		return ErrEmptyBasket
	}
	if m.submitting {
		return ErrSubmissionInFlight
	}
	m.stage = StageShipping
	if _, err := m.ValidateShipping(ctx); err != nil {
		return err
	}
	return m.Notify(ctx, TopicStageChanged, StageChanged{Stage: m.stage, Draft: m.Draft()})
}

// SubmitShipping leaves the shipping stage. It validates the stage,
// freezes the basket into the draft and moves on to the contacts stage.
func (m *Machine) SubmitShipping(ctx context.Context) error {
	if m.stage != StageShipping {
		return fmt.Errorf("%w: %s", ErrWrongStage, m.stage)
	}
	valid, err := m.ValidateShipping(ctx)
	if err != nil {
		return err
	}
	if !valid {
		return ErrStageInvalid
	}
	if len(m.lineItems.BasketIDs()) == 0 {
		return ErrEmptyBasket
	}

	m.FreezeLineItems()
	m.stage = StageContacts
	m.Logger().Debug("Shipping stage submitted", "items", len(m.draft.Items), "total", m.draft.Total.Decimal.String())
	return m.Notify(ctx, TopicStageChanged, StageChanged{Stage: m.stage, Draft: m.Draft()})
}

// BeginSubmit validates the contacts stage and marks a submission as in
// flight. It returns the order to send. Callers hold the dispatch lock, as
// any handler or Exclusive callback does.
func (m *Machine) BeginSubmit(ctx context.Context) (Order, error) {
	if m.submitting {
		return Order{}, ErrSubmissionInFlight
	}
	if m.stage != StageContacts {
		return Order{}, fmt.Errorf("%w: %s", ErrWrongStage, m.stage)
	}
	valid, err := m.ValidateContacts(ctx)
	if err != nil {
		return Order{}, err
	}
	if !valid {
		return Order{}, ErrStageInvalid
	}
	m.submitting = true
	return m.draft.Order(), nil
}

// FinishSubmit applies the outcome of sending order. On success
// TopicSubmitted is published and the draft is reset. On failure TopicFailed
// is published and the draft is kept for a retry. Callers hold the dispatch
// lock.
func (m *Machine) FinishSubmit(ctx context.Context, order Order, result Result, callErr error) (Result, error) {
	m.submitting = false

	if callErr != nil {
		m.Logger().Error("Order submission failed", "error", callErr)
		pubErr := m.Notify(ctx, TopicFailed, Failed{Order: order, Error: callErr.Error()})
		return Result{}, errors.Join(fmt.Errorf("%w: %w", ErrSubmissionFailed, callErr), pubErr)
	}

	m.stage = StageSubmitted
	m.Logger().Info("Order submitted", "id", result.ID, "total", result.Total.String())
	pubErr := m.Notify(ctx, TopicSubmitted, Submitted{Order: order, Result: result})
	m.ResetDraft()
	return result, pubErr
}

// SubmitContacts validates the contacts stage, sends the order and applies
// the outcome. The dispatch lock is held while the draft is read and while
// the outcome is applied, never while the order API is called, so ctx must
// not belong to a running publication. Handlers use StartSubmit.
func (m *Machine) SubmitContacts(ctx context.Context) (Result, error) {
	var order Order
	err := m.Bus().Exclusive(ctx, func(ctx context.Context) error {
		var err error
		order, err = m.BeginSubmit(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return m.send(ctx, order)
}

// StartSubmit is SubmitContacts for event handlers. Validation runs in the
// current dispatch and its errors are returned at once. The order is then
// sent from another goroutine, and the outcome arrives as TopicSubmitted or
// TopicFailed. Wait blocks until those goroutines are done.
func (m *Machine) StartSubmit(ctx context.Context) error {
	order, err := m.BeginSubmit(ctx)
	if err != nil {
		return err
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		if _, err := m.send(eventbus.Detach(ctx), order); err != nil {
			m.Logger().Debug("Background submission ended with an error", "error", err)
		}
	}()
	return nil
}

func (m *Machine) send(ctx context.Context, order Order) (Result, error) {
	result, callErr := m.submitter.CreateOrder(ctx, order)

	var out Result
	err := m.Bus().Exclusive(context.WithoutCancel(ctx), func(ctx context.Context) error {
		var err error
		out, err = m.FinishSubmit(ctx, order, result, callErr)
		return err
	})
	return out, err
}

// Wait blocks until every submission started by StartSubmit has published
// its outcome, or until ctx is done.
func (m *Machine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
