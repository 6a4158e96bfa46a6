package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

type mockSessionReader struct {
	session *domain.CheckoutSession
	err     error
	expand  []bool
}

func (m *mockSessionReader) GetSession(_ context.Context, _ string, expand bool) (*domain.CheckoutSession, error) {
	m.expand = append(m.expand, expand)
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type mockJobQueue struct {
	queued map[string]bool
	err    error
	calls  int
}

func (m *mockJobQueue) Enqueue(_ context.Context, sessionID string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if m.queued == nil {
		m.queued = make(map[string]bool)
	}
	if m.queued[sessionID] {
		return false, nil
	}
	m.queued[sessionID] = true
	return true, nil
}

func paidSession(metadata map[string]string) *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: domain.SessionPaymentStatusPaid,
		Metadata:      metadata,
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name        string
		session     *domain.CheckoutSession
		preQueued   bool
		queueErr    error
		wantTrigger Trigger
		wantEnqueue int
	}{
		{
			name:        "first confirmation queues reconciliation",
			session:     paidSession(map[string]string{domain.MetadataInvoiceNumber: "004210"}),
			wantTrigger: TriggerQueued,
			wantEnqueue: 1,
		},
		{
			name:        "repeat confirmation is deduplicated",
			session:     paidSession(map[string]string{domain.MetadataInvoiceNumber: "004210"}),
			preQueued:   true,
			wantTrigger: TriggerAlreadyQueued,
			wantEnqueue: 1,
		},
		{
			name: "already reconciled session is not queued",
			session: paidSession(map[string]string{
				domain.MetadataInvoiceNumber:       "004210",
				domain.MetadataPaymentReferenceNbr: "000123",
			}),
			wantTrigger: TriggerAlreadyReconciled,
		},
		{
			name:        "queue failure still confirms",
			session:     paidSession(map[string]string{domain.MetadataInvoiceNumber: "004210"}),
			queueErr:    errors.New("connection refused"),
			wantTrigger: TriggerNotQueued,
			wantEnqueue: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader := &mockSessionReader{session: tc.session}
			jobs := &mockJobQueue{err: tc.queueErr}
			if tc.preQueued {
				jobs.queued = map[string]bool{"cs_1": true}
			}
			svc := NewConfirmationService(reader, jobs)

			got, err := svc.Confirm(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, "004210", got.InvoiceNumber)
			assert.Equal(t, domain.SessionPaymentStatusPaid, got.PaymentStatus)
			assert.Equal(t, tc.wantTrigger, got.Reconciliation)
			assert.Equal(t, tc.wantEnqueue, jobs.calls)
			assert.Equal(t, []bool{false}, reader.expand)
		})
	}
}

func TestConfirm_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		session   *domain.CheckoutSession
		readErr   error
		wantErr   error
	}{
		{
			name:      "unpaid session",
			sessionID: "cs_1",
			session:   &domain.CheckoutSession{ID: "cs_1", PaymentStatus: domain.SessionPaymentStatusUnpaid},
			wantErr:   domain.ErrPaymentNotCompleted,
		},
		{
			name:      "no payment required",
			sessionID: "cs_1",
			session:   &domain.CheckoutSession{ID: "cs_1", PaymentStatus: domain.SessionPaymentStatusNoPaymentRequired},
			wantErr:   domain.ErrPaymentNotCompleted,
		},
		{name: "missing id", sessionID: "", wantErr: domain.ErrInvalidRequest},
		{name: "processor error", sessionID: "cs_1", readErr: domain.ErrUpstream, wantErr: domain.ErrUpstream},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &mockJobQueue{}
			svc := NewConfirmationService(&mockSessionReader{session: tc.session, err: tc.readErr}, jobs)

			_, err := svc.Confirm(context.Background(), tc.sessionID)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, jobs.calls)
		})
	}
}

func TestTrigger_ReportsQueueFailure(t *testing.T) {
	jobs := &mockJobQueue{err: errors.New("connection refused")}
	svc := NewConfirmationService(&mockSessionReader{session: paidSession(nil)}, jobs)

	_, err := svc.Trigger(context.Background(), "cs_1")
	assert.Error(t, err)
}

func TestTrigger_Queues(t *testing.T) {
	jobs := &mockJobQueue{}
	svc := NewConfirmationService(&mockSessionReader{session: paidSession(nil)}, jobs)

	got, err := svc.Trigger(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, TriggerQueued, got)

	got, err = svc.Trigger(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, TriggerAlreadyQueued, got)
}
