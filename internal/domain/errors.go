package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidPackage  = errors.New("invalid package id")
)

// Payment failure kinds. Match with errors.Is against a *PaymentError.
var (
	ErrPaymentCreation     = errors.New("payment creation failed")
	ErrPaymentWindow       = errors.New("payment window unavailable")
	ErrPaymentTerminal     = errors.New("payment reached a terminal status")
	ErrPaymentTimeout      = errors.New("payment verification timed out")
	ErrPaymentFinalization = errors.New("payment finalization failed")
	ErrPurchaseCancelled   = errors.New("purchase cancelled")
)

const genericFailureMessage = "Something went wrong. Please try again."

// PaymentError is a typed failure of the purchase flow. Message is suitable
// for direct display to the user.
type PaymentError struct {
	Kind    error
	Status  InvoiceStatus
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PaymentError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewPaymentError builds a PaymentError, falling back to fallback when message is empty.
func NewPaymentError(kind error, message, fallback string, cause error) *PaymentError {
	if message == "" {
		message = fallback
	}
	return &PaymentError{Kind: kind, Message: message, Err: cause}
}

// DisplayMessage returns the user-facing text for err.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PaymentError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return genericFailureMessage
}
