package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

type reconciliationJobs interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error)
	Requeue(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error)
}

type AdminHandler struct {
	jobs reconciliationJobs
}

func NewAdminHandler(jobs reconciliationJobs) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

type reconciliationJobResponse struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	State       string     `json:"state,omitempty"`
	PaymentRef  *string    `json:"payment_ref"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func toJobResponse(j *domain.ReconciliationJob) reconciliationJobResponse {
	return reconciliationJobResponse{
		ID:          j.ID.String(),
		SessionID:   j.SessionID,
		Status:      string(j.Status),
		State:       string(j.State),
		PaymentRef:  j.PaymentRef,
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: j.CompletedAt,
	}
}

func (h *AdminHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetBySessionID(r.Context(), r.PathValue("session_id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toJobResponse(job))
}

func (h *AdminHandler) RetryReconciliation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	job, err := h.jobs.Requeue(r.Context(), sessionID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("reconciliation requeued",
		"session_id", sessionID,
		"job_id", job.ID,
		"attempts", job.Attempts,
	)
	RespondSuccess(w, http.StatusAccepted, toJobResponse(job))
}
