package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPaymentError(ErrPaymentCreation, "", "Failed to create payment", cause)

	assert.True(t, errors.Is(err, ErrPaymentCreation))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPaymentTimeout))
	assert.Equal(t, "Failed to create payment: connection reset", err.Error())
	assert.Equal(t, "Failed to create payment", DisplayMessage(err))
}

func TestPaymentErrorWithoutCause(t *testing.T) {
	err := &PaymentError{Kind: ErrPaymentTerminal, Status: InvoiceStatusExpired, Message: "Payment expired"}

	assert.True(t, errors.Is(err, ErrPaymentTerminal))
	assert.Equal(t, "Payment expired", err.Error())
	assert.Len(t, err.Unwrap(), 1)
}

func TestDisplayMessage(t *testing.T) {
	assert.Equal(t, "", DisplayMessage(nil))
	assert.Equal(t, genericFailureMessage, DisplayMessage(context.Canceled))

	wrapped := errors.Join(errors.New("outer"), &PaymentError{Kind: ErrPaymentTimeout, Message: "check later"})
	assert.Equal(t, "check later", DisplayMessage(wrapped))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, InvoiceStatusPending.IsTerminal())
	assert.True(t, InvoiceStatusPaid.IsTerminal())
	assert.True(t, InvoiceStatusExpired.IsTerminal())
	assert.True(t, InvoiceStatusCancelled.IsTerminal())
	assert.False(t, InvoiceStatus("UNKNOWN").IsTerminal())

	assert.True(t, FlowStateCancelled.IsTerminal())
	assert.False(t, FlowStatePolling.IsTerminal())
}
