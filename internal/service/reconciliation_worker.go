package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/events"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
	"github.com/josh-kwaku/invoice-pay/internal/service/reconcile"
)

type jobStore interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.ReconciliationJob, error)
	RecordPaymentRef(ctx context.Context, id uuid.UUID, paymentRef string) error
	Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, state domain.ReconcileState, paymentRef, lastError string) error
}

type reconciler interface {
	Reconcile(ctx context.Context, sessionID string, opts ...reconcile.RunOption) (*reconcile.Outcome, error)
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Lease     time.Duration
}

// ReconciliationWorker drains the job queue. Jobs in a batch run one after
// another; each job's workflow is sequential end to end.
type ReconciliationWorker struct {
	jobs      jobStore
	workflow  reconciler
	publisher events.Publisher
	logger    *slog.Logger
	cfg       WorkerConfig
}

func NewReconciliationWorker(
	jobs jobStore,
	workflow reconciler,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg WorkerConfig,
) *ReconciliationWorker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ReconciliationWorker{
		jobs:      jobs,
		workflow:  workflow,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.logger.Info("reconciliation worker started",
		"interval", w.cfg.Interval,
		"batch_size", w.cfg.BatchSize,
		"lease", w.cfg.Lease,
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *ReconciliationWorker) poll(ctx context.Context) {
	jobs, err := w.jobs.ClaimPending(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		w.logger.Error("failed to claim reconciliation jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("failed to process reconciliation job",
				"job_id", job.ID,
				"session_id", job.SessionID,
				"error", err,
			)
		}
	}
}

func (w *ReconciliationWorker) processJob(ctx context.Context, job domain.ReconciliationJob) error {
	ctx = logging.WithLogger(ctx, w.logger.With("job_id", job.ID, "attempt", job.Attempts))

	opts := []reconcile.RunOption{
		reconcile.OnPaymentCreated(func(ctx context.Context, ref string) error {
			return w.jobs.RecordPaymentRef(ctx, job.ID, ref)
		}),
	}
	if job.PaymentRef != nil {
		opts = append(opts, reconcile.WithBookedPayment(*job.PaymentRef))
	}

	out, runErr := w.workflow.Reconcile(ctx, job.SessionID, opts...)
	if out == nil {
		out = &reconcile.Outcome{Status: domain.JobStatusFailed, State: job.State}
	}
	if ctx.Err() != nil && out.Status == domain.JobStatusFailed && out.PaymentRef == "" {
		// Stopped before any ERP write; the lease expiry hands it to the next claim.
		return fmt.Errorf("processJob: interrupted: %w", ctx.Err())
	}

	// The outcome is recorded even during shutdown once a payment may exist.
	ctx = context.WithoutCancel(ctx)

	var lastError string
	if runErr != nil {
		lastError = runErr.Error()
	}

	if err := w.jobs.Finish(ctx, job.ID, out.Status, out.State, out.PaymentRef, lastError); err != nil {
		return fmt.Errorf("processJob: %w", err)
	}

	w.logger.Info("reconciliation job finished",
		"job_id", job.ID,
		"session_id", job.SessionID,
		"status", out.Status,
		"state", out.State,
	)

	ev := events.ReconciliationEvent{
		Type:       events.EventType(out.Status),
		JobID:      job.ID.String(),
		SessionID:  job.SessionID,
		Status:     out.Status,
		State:      out.State,
		PaymentRef: out.PaymentRef,
		Attempt:    job.Attempts,
		Error:      lastError,
		OccurredAt: time.Now().UTC(),
	}
	if err := w.publisher.PublishReconciliation(ctx, ev); err != nil {
		w.logger.Warn("failed to publish reconciliation event",
			"job_id", job.ID,
			"event_type", ev.Type,
			"error", err,
		)
	}
	return nil
}
