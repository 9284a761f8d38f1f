package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Package is a purchasable bundle of crypts.
type Package struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Crypts   decimal.Decimal `json:"crypts"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// PurchaseResult is returned by the backend once a paid invoice has been credited.
type PurchaseResult struct {
	Crypts     decimal.Decimal `json:"crypts"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type FlowState string

const (
	FlowStateCreating       FlowState = "CREATING"
	FlowStateAwaitingWindow FlowState = "AWAITING_WINDOW"
	FlowStatePolling        FlowState = "POLLING"
	FlowStateFinalizing     FlowState = "FINALIZING"
	FlowStateSucceeded      FlowState = "SUCCEEDED"
	FlowStateFailed         FlowState = "FAILED"
	FlowStateCancelled      FlowState = "CANCELLED"
)

func (s FlowState) IsTerminal() bool {
	return s == FlowStateSucceeded || s == FlowStateFailed || s == FlowStateCancelled
}

// PurchaseAttempt is one invocation of the purchase flow as seen by the journal.
type PurchaseAttempt struct {
	ID        uuid.UUID
	PackageID string
	InvoiceID string
	State     FlowState
	Message   string
	Result    *PurchaseResult
	StartedAt time.Time
	UpdatedAt time.Time
}
