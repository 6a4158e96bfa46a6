// Package reconcile records a paid checkout session as a released ERP payment.
package reconcile

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/erp"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

type sessionGateway interface {
	GetSession(ctx context.Context, sessionID string, expandSettlement bool) (*domain.CheckoutSession, error)
	UpdateSessionMetadata(ctx context.Context, sessionID string, metadata map[string]string) error
}

type erpSessions interface {
	WithSession(ctx context.Context, fn func(erp.Session) error) error
}

// Outcome is the result of one run. State is the furthest step reached;
// PaymentRef is set once the ERP payment exists.
type Outcome struct {
	Status     domain.JobStatus
	State      domain.ReconcileState
	PaymentRef string
}

// DefaultWriteTimeout bounds the ERP write phase, which ignores caller cancellation.
const DefaultWriteTimeout = 2 * time.Minute

type Workflow struct {
	sessions     sessionGateway
	erp          erpSessions
	settings     PaymentSettings
	policy       RetryPolicy
	sleep        Sleeper
	writeTimeout time.Duration
}

type Option func(*Workflow)

func WithSleeper(s Sleeper) Option {
	return func(w *Workflow) { w.sleep = s }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.writeTimeout = d }
}

// RunOptions is what the caller already knows about one session's run.
type RunOptions struct {
	BookedPaymentRef string
	OnPaymentCreated func(ctx context.Context, ref string) error
}

type RunOption func(*RunOptions)

// WithBookedPayment marks ref as an ERP payment an earlier attempt created.
// The run will not create another payment for the session.
func WithBookedPayment(ref string) RunOption {
	return func(o *RunOptions) { o.BookedPaymentRef = ref }
}

// OnPaymentCreated registers fn to run as soon as the ERP accepts the payment,
// before any further write. A failing fn is logged and does not stop the run.
func OnPaymentCreated(fn func(ctx context.Context, ref string) error) RunOption {
	return func(o *RunOptions) { o.OnPaymentCreated = fn }
}

func NewWorkflow(sessions sessionGateway, erpClient erpSessions, settings PaymentSettings, policy RetryPolicy, opts ...Option) *Workflow {
	if policy.MaxAttempts < 1 {
		policy = DefaultSettlementPolicy()
	}
	w := &Workflow{
		sessions:     sessions,
		erp:          erpClient,
		settings:     settings,
		policy:       policy,
		sleep:        contextSleep,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.writeTimeout <= 0 {
		w.writeTimeout = DefaultWriteTimeout
	}
	return w
}

// Reconcile runs the workflow for one session. It never creates a second ERP
// payment for a session whose metadata already carries PaymentReferenceNbr.
// A non-nil error always comes with an Outcome describing where the run stopped.
// Once the ERP session is opened the writes run to completion even if ctx is
// cancelled, bounded by the write timeout.
func (w *Workflow) Reconcile(ctx context.Context, sessionID string, opts ...RunOption) (*Outcome, error) {
	ctx, log := logging.With(ctx, "session_id", sessionID)

	var r RunOptions
	for _, opt := range opts {
		opt(&r)
	}

	session, out, err := w.awaitSettlement(ctx, sessionID)
	if err != nil || out != nil {
		return out, err
	}

	if r.BookedPaymentRef != "" {
		log.Error("erp payment exists but session is not flagged", "payment_ref", r.BookedPaymentRef)
		return &Outcome{
			Status:     domain.JobStatusFailed,
			State:      domain.StatePaymentCreated,
			PaymentRef: r.BookedPaymentRef,
		}, fmt.Errorf("Reconcile: %s: %w", r.BookedPaymentRef, domain.ErrPaymentAlreadyBooked)
	}

	out = &Outcome{Status: domain.JobStatusFailed, State: domain.StateSettlementReady}
	payment, err := buildPayment(session, w.settings)
	if err != nil {
		return out, fmt.Errorf("Reconcile: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
	defer cancel()

	err = w.erp.WithSession(writeCtx, func(es erp.Session) error {
		return w.record(writeCtx, es, session, payment, out, r.OnPaymentCreated)
	})
	if err != nil {
		log.Error("reconciliation failed",
			"state", out.State,
			"payment_ref", out.PaymentRef,
			"error", err,
		)
		return out, fmt.Errorf("Reconcile: %w", err)
	}

	out.Status = domain.JobStatusCompleted
	log.Info("reconciliation completed",
		"payment_ref", out.PaymentRef,
		"invoice_number", session.InvoiceNumber(),
		"amount", payment.PaymentAmount.String(),
	)
	return out, nil
}

// awaitSettlement polls until the transaction is finalized. It returns a
// non-nil Outcome when the run must stop without touching the ERP.
func (w *Workflow) awaitSettlement(ctx context.Context, sessionID string) (*domain.CheckoutSession, *Outcome, error) {
	log := logging.FromContext(ctx)
	stop := func(status domain.JobStatus, err error) (*domain.CheckoutSession, *Outcome, error) {
		return nil, &Outcome{Status: status, State: domain.StateAwaitingSettlement}, err
	}

	for attempt := 0; attempt < w.policy.MaxAttempts; attempt++ {
		if err := w.sleep(ctx, w.policy.wait(attempt)); err != nil {
			return stop(domain.JobStatusFailed, fmt.Errorf("awaitSettlement: %w", err))
		}

		session, err := w.sessions.GetSession(ctx, sessionID, true)
		if err != nil {
			return stop(domain.JobStatusFailed, fmt.Errorf("awaitSettlement: %w", err))
		}

		if session.Reconciled() {
			ref := session.Metadata[domain.MetadataPaymentReferenceNbr]
			log.Info("session already reconciled", "payment_ref", ref)
			return nil, &Outcome{
				Status:     domain.JobStatusSkipped,
				State:      domain.StateAwaitingSettlement,
				PaymentRef: ref,
			}, nil
		}
		if !session.IsPaid() {
			return stop(domain.JobStatusFailed, fmt.Errorf("awaitSettlement: %w", domain.ErrPaymentNotCompleted))
		}
		if session.Settled() {
			return session, nil, nil
		}

		log.Debug("settlement not yet available", "attempt", attempt+1)
	}

	log.Warn("settlement data not available, giving up", "attempts", w.policy.MaxAttempts)
	return stop(domain.JobStatusTimedOut, fmt.Errorf("awaitSettlement: %w", domain.ErrSettlementTimeout))
}

// record performs the ERP writes. out is advanced after each step that succeeded.
func (w *Workflow) record(
	ctx context.Context,
	es erp.Session,
	session *domain.CheckoutSession,
	payment *domain.ERPPayment,
	out *Outcome,
	onCreated func(ctx context.Context, ref string) error,
) error {
	log := logging.FromContext(ctx)

	created, err := es.CreatePayment(ctx, payment)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	out.State = domain.StatePaymentCreated
	out.PaymentRef = created.ReferenceNbr
	log.Info("erp payment created", "payment_ref", created.ReferenceNbr)

	if onCreated != nil {
		if err := onCreated(ctx, created.ReferenceNbr); err != nil {
			log.Error("failed to record payment reference", "payment_ref", created.ReferenceNbr, "error", err)
		}
	}

	if session.Transaction.NeedsAmountCorrection() {
		fix, err := correctionFor(created, session)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		corrected, err := es.CorrectPaymentAmount(ctx, fix)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		out.State = domain.StateAmountCorrected
		log.Info("erp payment amount corrected",
			"payment_ref", created.ReferenceNbr,
			"cross_rate", session.Transaction.CrossRate().String(),
			"applied", corrected.AppliedTotal().String(),
		)
	}

	metadata := maps.Clone(session.Metadata)
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata[domain.MetadataPaymentReferenceNbr] = created.ReferenceNbr
	if err := w.sessions.UpdateSessionMetadata(ctx, session.ID, metadata); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	out.State = domain.StateMetadataUpdated

	if err := es.ReleasePayment(ctx, created.ReferenceNbr); err != nil {
		return fmt.Errorf("record: release %s: %w", created.ReferenceNbr, err)
	}
	out.State = domain.StateReleased
	return nil
}
