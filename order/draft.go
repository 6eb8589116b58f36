// Package order implements the checkout state machine: the order draft,
// its two validation stages and the submission to the order API.
package order

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

// Payment methods
const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// ParsePaymentMethod accepts exactly "card" or "cash". Anything else,
// including the empty string and other letter cases, is rejected.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch method := PaymentMethod(value); method {
	case PaymentCard, PaymentCash:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, value)
	}
}

// Field names a draft field that views may edit.
type Field string

// Editable draft fields
const (
	FieldPayment Field = "payment"
	FieldAddress Field = "address"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
)

// Stage is a checkout phase.
type Stage int

// Checkout stages
const (
	StageShipping Stage = iota
	StageContacts
	StageSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageShipping:
		return "shipping"
	case StageContacts:
		return "contacts"
	case StageSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText renders the stage name in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (f Field) stage() Stage {
	if f == FieldEmail || f == FieldPhone {
		return StageContacts
	}
	return StageShipping
}

// Draft is the order being put together.
type Draft struct {
	Payment PaymentMethod `json:"payment"`
	Address string        `json:"address"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
	// Items and Total are captured from the basket when the shipping stage
	// is submitted. Total stays null until then.
	Items []string            `json:"items"`
	Total decimal.NullDecimal `json:"total"`
}

// NewDraft returns a draft in its default shape.
func NewDraft() Draft {
	return Draft{Payment: PaymentCard, Items: []string{}}
}

func (d Draft) clone() Draft {
	d.Items = slices.Clone(d.Items)
	if d.Items == nil {
		d.Items = []string{}
	}
	return d
}

// Order builds the finalized record sent to the order API.
func (d Draft) Order() Order {
	return Order{
		Payment: d.Payment,
		Address: d.Address,
		Email:   d.Email,
		Phone:   d.Phone,
		Items:   slices.Clone(d.Items),
		Total:   d.Total.Decimal,
	}
}

// FormErrors maps a field name to a human readable problem. Fields that
// are absent are valid.
type FormErrors map[string]string

// Order is a finalized order.
type Order struct {
	Payment PaymentMethod   `json:"payment"`
	Address string          `json:"address"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Items   []string        `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

// Result is the order API acknowledgment.
type Result struct {
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}

// Submitter sends finalized orders to the order API.
type Submitter interface {
	CreateOrder(ctx context.Context, order Order) (Result, error)
}

// LineItemSource supplies the basket contents frozen into the draft.
type LineItemSource interface {
	BasketIDs() []string
	BasketTotal() decimal.Decimal
}
