package order

import "errors"

// Order errors
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrUnknownField         = errors.New("unknown order field")
	ErrWrongStage           = errors.New("operation not allowed in the current checkout stage")
	ErrStageInvalid         = errors.New("checkout stage has validation errors")
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrSubmissionInFlight   = errors.New("order submission already in progress")
	ErrSubmissionFailed     = errors.New("order submission failed")
	ErrNilSubmitter         = errors.New("order machine requires a submitter")
	ErrNilLineItems         = errors.New("order machine requires a line item source")
)
