package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transition records a single state change of a purchase attempt.
type Transition struct {
	AttemptID uuid.UUID
	From      FlowState
	To        FlowState
	InvoiceID string
	Message   string
	CreatedAt time.Time
}
