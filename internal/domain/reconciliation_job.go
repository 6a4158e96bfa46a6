package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusSkipped, JobStatusTimedOut, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether an operator may put the job back in the queue.
func (s JobStatus) IsRetryable() bool {
	return s == JobStatusTimedOut || s == JobStatusFailed
}

// ReconcileState is the furthest step a reconciliation run reached. A failed
// run keeps the state it stopped at; the job status says it failed.
type ReconcileState string

const (
	StateAwaitingSettlement ReconcileState = "awaiting_settlement"
	StateSettlementReady    ReconcileState = "settlement_ready"
	StatePaymentCreated     ReconcileState = "payment_created"
	StateAmountCorrected    ReconcileState = "amount_corrected"
	StateMetadataUpdated    ReconcileState = "metadata_updated"
	StateReleased           ReconcileState = "released"
)

type ReconciliationJob struct {
	ID          uuid.UUID
	SessionID   string
	Status      JobStatus
	State       ReconcileState
	PaymentRef  *string
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
