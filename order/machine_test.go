package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/observable"
)

type fakeSubmitter struct {
	result Result
	err    error
	orders []Order
	during func(ctx context.Context)
}

func (f *fakeSubmitter) CreateOrder(ctx context.Context, order Order) (Result, error) {
	f.orders = append(f.orders, order)
	if f.during != nil {
		f.during(ctx)
	}
	return f.result, f.err
}

type fakeBasket struct {
	ids   []string
	total decimal.Decimal
}

func (f *fakeBasket) BasketIDs() []string          { return append([]string(nil), f.ids...) }
func (f *fakeBasket) BasketTotal() decimal.Decimal { return f.total }

type recorder struct {
	events []eventbus.Event
}

func (r *recorder) handler(ctx context.Context, e eventbus.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(topic string) int {
	n := 0
	for _, e := range r.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}

func (r *recorder) last(topic string) (eventbus.Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Topic == topic {
			return r.events[i], true
		}
	}
	return eventbus.Event{}, false
}

type fixture struct {
	machine   *Machine
	submitter *fakeSubmitter
	basket    *fakeBasket
	rec       *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := eventbus.NewMemoryEventBus()
	rec := &recorder{}
	_, err := bus.Subscribe("order.*", rec.handler)
	require.NoError(t, err)

	f := &fixture{
		submitter: &fakeSubmitter{result: Result{ID: "ord-1", Total: decimal.NewFromInt(850)}},
		basket:    &fakeBasket{ids: []string{"a", "c"}, total: decimal.NewFromInt(850)},
		rec:       rec,
	}
	f.machine, err = NewMachine(bus, nil, f.submitter, f.basket)
	require.NoError(t, err)
	return f
}

func (f *fixture) set(t *testing.T, field, value string) {
	t.Helper()
	require.NoError(t, f.machine.SetField(context.Background(), field, value))
}

func TestNewMachine(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	_, err := NewMachine(bus, nil, nil, &fakeBasket{})
	assert.ErrorIs(t, err, ErrNilSubmitter)
	_, err = NewMachine(bus, nil, &fakeSubmitter{}, nil)
	assert.ErrorIs(t, err, ErrNilLineItems)

	m, err := NewMachine(bus, nil, &fakeSubmitter{}, &fakeBasket{})
	require.NoError(t, err)
	assert.Equal(t, NewDraft(), m.Draft())
	assert.Equal(t, StageShipping, m.Stage())
	assert.False(t, m.Draft().Total.Valid)
}

func TestSetFieldPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.SetField(ctx, "payment", "cash"))
	assert.Equal(t, PaymentCash, f.machine.Draft().Payment)

	for _, bogus := range []string{"", "Cash", "CARD", "bogus", "crypto", "card "} {
		err := f.machine.SetField(ctx, "payment", bogus)
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod, bogus)
		assert.Equal(t, PaymentCash, f.machine.Draft().Payment)
	}
	assert.Equal(t, 1, f.rec.count(TopicShippingErrors))
	assert.Equal(t, FormErrors{"address": MsgAddressRequired}, f.machine.Errors(StageShipping))
}

func TestSetFieldUnknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.machine.SetField(context.Background(), "total", "1"), ErrUnknownField)
	assert.Empty(t, f.rec.events)
}

func TestStageValidatorsAreIndependent(t *testing.T) {
	f := newFixture(t)

	f.set(t, "address", "Main st. 1")
	assert.Equal(t, 1, f.rec.count(TopicShippingErrors))
	assert.Zero(t, f.rec.count(TopicContactsErrors))

	f.set(t, "phone", "+1 555 0100")
	assert.Equal(t, 1, f.rec.count(TopicShippingErrors))
	assert.Equal(t, 1, f.rec.count(TopicContactsErrors))

	e, ok := f.rec.last(TopicContactsErrors)
	require.True(t, ok)
	changed := e.Payload.(ErrorsChanged)
	assert.Equal(t, StageContacts, changed.Stage)
	assert.False(t, changed.Valid)
	assert.Equal(t, FormErrors{"email": MsgEmailRequired}, changed.Errors)
}

func TestShippingReadyCommutes(t *testing.T) {
	orders := [][2][2]string{
		{{"address", "X"}, {"payment", "cash"}},
		{{"payment", "cash"}, {"address", "X"}},
	}
	var drafts []Draft
	for _, edits := range orders {
		f := newFixture(t)

		f.set(t, edits[0][0], edits[0][1])
		f.set(t, edits[1][0], edits[1][1])
		assert.Equal(t, 1, f.rec.count(TopicShippingReady))
		assert.Empty(t, f.machine.Errors(StageShipping))

		e, _ := f.rec.last(TopicShippingReady)
		ready := e.Payload.(StageReady)
		assert.Equal(t, StageShipping, ready.Stage)
		assert.Equal(t, "X", ready.Draft.Address)
		drafts = append(drafts, f.machine.Draft())
	}
	assert.Equal(t, drafts[0], drafts[1])
	assert.Equal(t, PaymentCash, drafts[0].Payment)
}

func TestShippingReadyFiresOnce(t *testing.T) {
	f := newFixture(t)

	f.set(t, "address", "X")
	f.set(t, "payment", "card")
	assert.Equal(t, 1, f.rec.count(TopicShippingReady))

	f.set(t, "phone", "123")
	assert.Equal(t, 1, f.rec.count(TopicShippingReady))
	assert.Equal(t, 1, f.rec.count(TopicContactsErrors))

	f.set(t, "address", "")
	f.set(t, "address", "Y")
	assert.Equal(t, 2, f.rec.count(TopicShippingReady))
}

func TestContactsReady(t *testing.T) {
	f := newFixture(t)
	f.set(t, "email", "a@b.c")
	assert.Zero(t, f.rec.count(TopicContactsReady))
	f.set(t, "phone", "123")
	assert.Equal(t, 1, f.rec.count(TopicContactsReady))
	assert.Empty(t, f.machine.Errors(StageContacts))
}

func TestResetDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.set(t, "address", "X")
	f.set(t, "email", "a@b.c")
	f.rec.events = nil

	f.machine.ResetDraft()
	assert.Empty(t, f.rec.events)
	assert.Equal(t, NewDraft(), f.machine.Draft())

	valid, err := f.machine.ValidateShipping(ctx)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Zero(t, f.rec.count(TopicShippingReady))

	valid, err = f.machine.ValidateContacts(ctx)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, FormErrors{"email": MsgEmailRequired, "phone": MsgPhoneRequired}, f.machine.Errors(StageContacts))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns and revalidates each stage once", func(t *testing.T) {
		f := newFixture(t)
		err := f.machine.Update(ctx, map[string]any{
			"address": "Main st. 1",
			"payment": "cash",
			"phone":   5550100,
		})
		require.NoError(t, err)

		d := f.machine.Draft()
		assert.Equal(t, "Main st. 1", d.Address)
		assert.Equal(t, PaymentCash, d.Payment)
		assert.Equal(t, "5550100", d.Phone)
		assert.Equal(t, 1, f.rec.count(TopicShippingErrors))
		assert.Equal(t, 1, f.rec.count(TopicContactsErrors))
		assert.Equal(t, 1, f.rec.count(TopicShippingReady))
	})

	t.Run("rejects without writing", func(t *testing.T) {
		f := newFixture(t)
		err := f.machine.Update(ctx, map[string]any{"address": "X", "payment": "bogus"})
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
		assert.Empty(t, f.machine.Draft().Address)

		err = f.machine.Update(ctx, map[string]any{"address": "X", "items": "a"})
		assert.ErrorIs(t, err, ErrUnknownField)
		assert.Empty(t, f.machine.Draft().Address)

		err = f.machine.Update(ctx, map[string]any{"address": map[string]any{"street": "X"}})
		assert.ErrorIs(t, err, observable.ErrFieldConversion)
		assert.Empty(t, f.machine.Draft().Address)
		assert.Empty(t, f.rec.events)
	})
}

func TestStartCheckoutPublishesShippingErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.machine.StartCheckout(context.Background()))

	require.Equal(t, 1, f.rec.count(TopicShippingErrors))
	e, _ := f.rec.last(TopicShippingErrors)
	changed := e.Payload.(ErrorsChanged)
	assert.Equal(t, StageShipping, changed.Stage)
	assert.False(t, changed.Valid)
	assert.Equal(t, FormErrors{"address": MsgAddressRequired}, changed.Errors)
	assert.Equal(t, changed.Errors, f.machine.Errors(StageShipping))

	// Errors come before the stage change, so a form opened by the stage
	// event already has them.
	require.Len(t, f.rec.events, 2)
	assert.Equal(t, TopicShippingErrors, f.rec.events[0].Topic)
	assert.Equal(t, TopicStageChanged, f.rec.events[1].Topic)
	assert.Zero(t, f.rec.count(TopicShippingReady))
}

func TestSubmitShipping(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes basket and moves on", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.machine.StartCheckout(ctx))
		f.set(t, "address", "X")
		require.NoError(t, f.machine.SubmitShipping(ctx))

		assert.Equal(t, StageContacts, f.machine.Stage())
		d := f.machine.Draft()
		assert.Equal(t, []string{"a", "c"}, d.Items)
		require.True(t, d.Total.Valid)
		assert.True(t, d.Total.Decimal.Equal(decimal.NewFromInt(850)))

		f.basket.ids = append(f.basket.ids, "late")
		assert.Equal(t, []string{"a", "c"}, f.machine.Draft().Items)

		assert.Equal(t, 2, f.rec.count(TopicStageChanged))
		e, _ := f.rec.last(TopicStageChanged)
		assert.Equal(t, StageContacts, e.Payload.(StageChanged).Stage)

		assert.ErrorIs(t, f.machine.SubmitShipping(ctx), ErrWrongStage)
	})

	t.Run("invalid stage stays put", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.machine.SubmitShipping(ctx), ErrStageInvalid)
		assert.Equal(t, StageShipping, f.machine.Stage())
		assert.Empty(t, f.machine.Draft().Items)
	})

	t.Run("empty basket", func(t *testing.T) {
		f := newFixture(t)
		f.basket.ids = nil
		assert.ErrorIs(t, f.machine.StartCheckout(ctx), ErrEmptyBasket)
		f.set(t, "address", "X")
		assert.ErrorIs(t, f.machine.SubmitShipping(ctx), ErrEmptyBasket)
		assert.Equal(t, StageShipping, f.machine.Stage())
	})
}

func (f *fixture) toContacts(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.set(t, "address", "X")
	require.NoError(t, f.machine.SubmitShipping(ctx))
	f.set(t, "email", "a@b.c")
	f.set(t, "phone", "123")
}

func TestSubmitContacts(t *testing.T) {
	ctx := context.Background()

	t.Run("success publishes and resets", func(t *testing.T) {
		f := newFixture(t)
		f.toContacts(t)

		var stageDuringEvent Stage
		_, err := f.machine.Bus().Subscribe(TopicSubmitted, func(ctx context.Context, e eventbus.Event) error {
			stageDuringEvent = f.machine.Stage()
			return nil
		})
		require.NoError(t, err)

		result, err := f.machine.SubmitContacts(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ord-1", result.ID)

		require.Len(t, f.submitter.orders, 1)
		sent := f.submitter.orders[0]
		assert.Equal(t, Order{
			Payment: PaymentCard,
			Address: "X",
			Email:   "a@b.c",
			Phone:   "123",
			Items:   []string{"a", "c"},
			Total:   decimal.NewFromInt(850),
		}, sent)

		e, ok := f.rec.last(TopicSubmitted)
		require.True(t, ok)
		assert.Equal(t, "ord-1", e.Payload.(Submitted).Result.ID)
		assert.Equal(t, StageSubmitted, stageDuringEvent)

		assert.Equal(t, NewDraft(), f.machine.Draft())
		assert.Equal(t, StageShipping, f.machine.Stage())
	})

	t.Run("failure keeps the draft", func(t *testing.T) {
		f := newFixture(t)
		f.toContacts(t)
		f.submitter.err = errors.New("503 upstream")
		before := f.machine.Draft()

		_, err := f.machine.SubmitContacts(ctx)
		assert.ErrorIs(t, err, ErrSubmissionFailed)
		assert.Equal(t, before, f.machine.Draft())
		assert.Equal(t, StageContacts, f.machine.Stage())
		assert.Zero(t, f.rec.count(TopicSubmitted))

		e, ok := f.rec.last(TopicFailed)
		require.True(t, ok)
		assert.Equal(t, "503 upstream", e.Payload.(Failed).Error)

		f.submitter.err = nil
		_, err = f.machine.SubmitContacts(ctx)
		require.NoError(t, err)
		assert.Len(t, f.submitter.orders, 2)
	})

	t.Run("invalid contacts are not sent", func(t *testing.T) {
		f := newFixture(t)
		f.set(t, "address", "X")
		require.NoError(t, f.machine.SubmitShipping(ctx))
		f.set(t, "email", "a@b.c")

		_, err := f.machine.SubmitContacts(ctx)
		assert.ErrorIs(t, err, ErrStageInvalid)
		assert.Empty(t, f.submitter.orders)
	})

	t.Run("wrong stage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.SubmitContacts(ctx)
		assert.ErrorIs(t, err, ErrWrongStage)
	})

	t.Run("no duplicate submission", func(t *testing.T) {
		f := newFixture(t)
		f.toContacts(t)

		var nested error
		f.submitter.during = func(ctx context.Context) {
			assert.True(t, f.machine.Submitting())
			_, nested = f.machine.SubmitContacts(ctx)
		}
		_, err := f.machine.SubmitContacts(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, nested, ErrSubmissionInFlight)
		assert.Len(t, f.submitter.orders, 1)
		assert.False(t, f.machine.Submitting())
	})

	t.Run("bus is free while the order is sent", func(t *testing.T) {
		f := newFixture(t)
		f.toContacts(t)

		var (
			submitting bool
			lockErr    error
		)
		f.submitter.during = func(ctx context.Context) {
			assert.False(t, eventbus.IsDispatching(ctx))
			waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			lockErr = f.machine.Bus().Exclusive(waitCtx, func(context.Context) error {
				submitting = f.machine.Submitting()
				return nil
			})
		}
		_, err := f.machine.SubmitContacts(ctx)
		require.NoError(t, err)
		require.NoError(t, lockErr)
		assert.True(t, submitting)
		assert.False(t, f.machine.Submitting())
	})
}

func TestStartSubmit(t *testing.T) {
	const topicSubmit = "test.submit"

	newStarted := func(t *testing.T) (*fixture, chan error) {
		t.Helper()
		f := newFixture(t)
		f.toContacts(t)
		started := make(chan error, 1)
		_, err := f.machine.Bus().Subscribe(topicSubmit, func(ctx context.Context, e eventbus.Event) error {
			err := f.machine.StartSubmit(ctx)
			started <- err
			return err
		})
		require.NoError(t, err)
		return f, started
	}
	wait := func(t *testing.T, f *fixture) {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, f.machine.Wait(ctx))
	}

	t.Run("outcome is published after the intent returns", func(t *testing.T) {
		f, _ := newStarted(t)
		release := make(chan struct{})
		f.submitter.during = func(context.Context) { <-release }

		require.NoError(t, f.machine.Bus().Publish(context.Background(), topicSubmit, nil))

		var submitting bool
		require.NoError(t, f.machine.Bus().Exclusive(context.Background(), func(context.Context) error {
			submitting = f.machine.Submitting()
			return nil
		}))
		assert.True(t, submitting)

		close(release)
		wait(t, f)

		require.NoError(t, f.machine.Bus().Exclusive(context.Background(), func(context.Context) error {
			assert.Equal(t, 1, f.rec.count(TopicSubmitted))
			assert.Equal(t, StageShipping, f.machine.Stage())
			assert.False(t, f.machine.Submitting())
			return nil
		}))
	})

	t.Run("failure publishes order.failed", func(t *testing.T) {
		f, _ := newStarted(t)
		f.submitter.err = errors.New("503 upstream")

		require.NoError(t, f.machine.Bus().Publish(context.Background(), topicSubmit, nil))
		wait(t, f)

		require.NoError(t, f.machine.Bus().Exclusive(context.Background(), func(context.Context) error {
			e, ok := f.rec.last(TopicFailed)
			require.True(t, ok)
			assert.Equal(t, "503 upstream", e.Payload.(Failed).Error)
			assert.Equal(t, StageContacts, f.machine.Stage())
			return nil
		}))
	})

	t.Run("second intent while in flight is rejected", func(t *testing.T) {
		f, started := newStarted(t)
		release := make(chan struct{})
		f.submitter.during = func(context.Context) { <-release }

		ctx := context.Background()
		require.NoError(t, f.machine.Bus().Publish(ctx, topicSubmit, nil))
		require.NoError(t, <-started)
		err := f.machine.Bus().Publish(ctx, topicSubmit, nil)
		assert.ErrorIs(t, err, ErrSubmissionInFlight)
		assert.ErrorIs(t, <-started, ErrSubmissionInFlight)

		close(release)
		wait(t, f)
		assert.Len(t, f.submitter.orders, 1)
	})

	t.Run("validation errors return at once", func(t *testing.T) {
		f, _ := newStarted(t)
		f.set(t, "phone", "")

		err := f.machine.Bus().Publish(context.Background(), topicSubmit, nil)
		assert.ErrorIs(t, err, ErrStageInvalid)
		wait(t, f)
		assert.Empty(t, f.submitter.orders)
	})
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    PaymentMethod
		wantErr bool
	}{
		{"card", PaymentCard, false},
		{"cash", PaymentCash, false},
		{"Card", "", true},
		{"CASH", "", true},
		{"", "", true},
		{" cash", "", true},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePaymentMethod(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPaymentMethod, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "shipping", StageShipping.String())
	assert.Equal(t, "contacts", StageContacts.String())
	assert.Equal(t, "submitted", StageSubmitted.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
