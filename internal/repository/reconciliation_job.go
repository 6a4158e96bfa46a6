package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const reconciliationJobColumns = `id, session_id, status, state, payment_ref,
	attempts, last_error, created_at, updated_at, completed_at`

type ReconciliationJobRepository struct {
	db *sql.DB
}

func NewReconciliationJobRepository(db *sql.DB) *ReconciliationJobRepository {
	return &ReconciliationJobRepository{db: db}
}

// Enqueue adds a pending job for the session. The session id is the
// deduplication key; false means a job already existed.
func (r *ReconciliationJobRepository) Enqueue(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reconciliation_jobs (id, session_id, status, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		uuid.New(), sessionID, domain.JobStatusPending, domain.StateAwaitingSettlement,
	)
	if err != nil {
		return false, fmt.Errorf("Enqueue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Enqueue: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *ReconciliationJobRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reconciliationJobColumns+` FROM reconciliation_jobs WHERE session_id = $1`,
		sessionID,
	)
	j, err := scanReconciliationJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetBySessionID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetBySessionID: %w", err)
	}
	return j, nil
}

// ClaimPending moves up to limit claimable jobs to running and returns them.
// Running jobs whose lease expired are claimable again, so a crashed worker's
// job is picked up after lease.
func (r *ReconciliationJobRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.ReconciliationJob, error) {
	// SKIP LOCKED keeps concurrent workers from claiming the same job
	rows, err := r.db.QueryContext(ctx,
		`UPDATE reconciliation_jobs
		SET status = $1, attempts = attempts + 1,
			lease_until = now() + ($2::bigint * interval '1 millisecond'),
			updated_at = now()
		WHERE id IN (
			SELECT id FROM reconciliation_jobs
			WHERE status = $3 OR (status = $1 AND lease_until < now())
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+reconciliationJobColumns,
		domain.JobStatusRunning, lease.Milliseconds(), domain.JobStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ReconciliationJob
	for rows.Next() {
		j, err := scanReconciliationJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return jobs, nil
}

// Finish records the outcome of a claimed job. An empty paymentRef keeps any
// reference recorded by an earlier attempt.
func (r *ReconciliationJobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, state domain.ReconcileState, paymentRef, lastError string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("Finish: status %q is not terminal: %w", status, domain.ErrInvalidRequest)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE reconciliation_jobs
		SET status = $2, state = $3,
			payment_ref = COALESCE(NULLIF($4, ''), payment_ref),
			last_error = NULLIF($5, ''),
			lease_until = NULL,
			completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $6`,
		id, status, state, paymentRef, lastError, domain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("Finish: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finish: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Finish: job %s not running: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecordPaymentRef stores the ERP payment reference of a running job as soon as
// the payment exists, so a reclaimed run knows not to create another.
func (r *ReconciliationJobRepository) RecordPaymentRef(ctx context.Context, id uuid.UUID, paymentRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reconciliation_jobs
		SET payment_ref = $2, state = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, paymentRef, domain.StatePaymentCreated, domain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("RecordPaymentRef: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RecordPaymentRef: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("RecordPaymentRef: job %s not running: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Requeue puts a timed-out or failed job back in the queue. Jobs that already
// booked an ERP payment are not retryable; rerunning them would book a second one.
func (r *ReconciliationJobRepository) Requeue(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE reconciliation_jobs
		SET status = $2, last_error = NULL, lease_until = NULL,
			completed_at = NULL, updated_at = now()
		WHERE session_id = $1 AND status IN ($3, $4) AND payment_ref IS NULL
		RETURNING `+reconciliationJobColumns,
		sessionID, domain.JobStatusPending, domain.JobStatusTimedOut, domain.JobStatusFailed,
	)
	j, err := scanReconciliationJob(row)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Requeue: %w", err)
	}

	if _, err := r.GetBySessionID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("Requeue: %w", err)
	}
	return nil, fmt.Errorf("Requeue: %w", domain.ErrJobNotRetryable)
}

func scanReconciliationJob(s scanner) (*domain.ReconciliationJob, error) {
	var j domain.ReconciliationJob
	err := s.Scan(
		&j.ID, &j.SessionID, &j.Status, &j.State, &j.PaymentRef,
		&j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
