package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

// SeedJob inserts a reconciliation job in the given status and returns its id.
func SeedJob(t *testing.T, db *sql.DB, sessionID string, status domain.JobStatus) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO reconciliation_jobs (id, session_id, status, state)
		 VALUES ($1, $2, $3, $4)`,
		id, sessionID, status, domain.StateAwaitingSettlement,
	)
	if err != nil {
		t.Fatalf("seed job %s: %v", sessionID, err)
	}
	return id
}

// ExpireLease backdates a running job's lease so it can be claimed again.
func ExpireLease(t *testing.T, db *sql.DB, id uuid.UUID) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE reconciliation_jobs SET lease_until = $2 WHERE id = $1`,
		id, time.Now().Add(-time.Minute),
	)
	if err != nil {
		t.Fatalf("expire lease %s: %v", id, err)
	}
}

func CountJobs(t *testing.T, db *sql.DB, sessionID string) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reconciliation_jobs WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	return n
}
