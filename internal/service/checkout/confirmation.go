package checkout

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

type sessionReader interface {
	GetSession(ctx context.Context, sessionID string, expandSettlement bool) (*domain.CheckoutSession, error)
}

type jobQueue interface {
	Enqueue(ctx context.Context, sessionID string) (bool, error)
}

// Trigger describes what a paid session observation did to the job queue.
type Trigger string

const (
	TriggerQueued            Trigger = "queued"
	TriggerAlreadyQueued     Trigger = "already_queued"
	TriggerAlreadyReconciled Trigger = "already_reconciled"
	TriggerNotQueued         Trigger = "not_queued"
)

type Confirmation struct {
	SessionID      string
	InvoiceNumber  string
	PaymentStatus  domain.SessionPaymentStatus
	Reconciliation Trigger
}

type ConfirmationService struct {
	sessions sessionReader
	jobs     jobQueue
}

func NewConfirmationService(sessions sessionReader, jobs jobQueue) *ConfirmationService {
	return &ConfirmationService{sessions: sessions, jobs: jobs}
}

// Confirm answers the customer's return from the hosted page. Reconciliation is
// queued, never awaited. A queue failure is logged and does not fail the confirmation.
func (s *ConfirmationService) Confirm(ctx context.Context, sessionID string) (*Confirmation, error) {
	session, err := s.paidSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	trigger, err := s.submit(ctx, session)
	if err != nil {
		logging.FromContext(ctx).Error("failed to queue reconciliation",
			"session_id", sessionID,
			"error", err,
		)
		trigger = TriggerNotQueued
	}

	return &Confirmation{
		SessionID:      session.ID,
		InvoiceNumber:  session.InvoiceNumber(),
		PaymentStatus:  session.PaymentStatus,
		Reconciliation: trigger,
	}, nil
}

// Trigger is the processor-notification path. Unlike Confirm it reports queue
// failures so the notification is redelivered.
func (s *ConfirmationService) Trigger(ctx context.Context, sessionID string) (Trigger, error) {
	session, err := s.paidSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("Trigger: %w", err)
	}

	trigger, err := s.submit(ctx, session)
	if err != nil {
		return "", fmt.Errorf("Trigger: %w", err)
	}
	return trigger, nil
}

func (s *ConfirmationService) paidSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("paidSession: session id required: %w", domain.ErrInvalidRequest)
	}

	session, err := s.sessions.GetSession(ctx, sessionID, false)
	if err != nil {
		return nil, fmt.Errorf("paidSession: %w", err)
	}
	if !session.IsPaid() {
		return nil, fmt.Errorf("paidSession: %s is %q: %w", sessionID, session.PaymentStatus, domain.ErrPaymentNotCompleted)
	}
	return session, nil
}

func (s *ConfirmationService) submit(ctx context.Context, session *domain.CheckoutSession) (Trigger, error) {
	if session.Reconciled() {
		return TriggerAlreadyReconciled, nil
	}

	created, err := s.jobs.Enqueue(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if !created {
		return TriggerAlreadyQueued, nil
	}

	logging.FromContext(ctx).Info("reconciliation queued",
		"session_id", session.ID,
		"invoice_number", session.InvoiceNumber(),
	)
	return TriggerQueued, nil
}
