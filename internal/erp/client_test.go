package erp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/erp/erptest"
)

var testCreds = erptest.Credentials{Username: "svc-payments", Password: "s3cret", Tenant: "Company"}

func setupERP(t *testing.T) (*erptest.Server, *Client) {
	t.Helper()
	fake := erptest.NewServer(testCreds)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:         srv.URL + "/",
		Username:        testCreds.Username,
		Password:        testCreds.Password,
		Tenant:          testCreds.Tenant,
		Endpoint:        "Default",
		Version:         "22.200.001",
		ReleaseEndpoint: "Release",
	})
	return fake, client
}

func testPayment() *domain.ERPPayment {
	return &domain.ERPPayment{
		Type:          domain.ERPPaymentType,
		CustomerID:    "C000123",
		PaymentMethod: "STRIPE",
		CashAccount:   "1008",
		PaymentRef:    "pi_123",
		PaymentAmount: decimal.RequireFromString("250.00"),
		Documents: []domain.DocumentApplication{{
			DocType:      domain.ERPDocTypeInvoice,
			ReferenceNbr: "004210",
			AmountPaid:   decimal.RequireFromString("250.00"),
			CrossRate:    decimal.NewFromInt(1),
		}},
		Charges: []domain.Charge{{
			EntryTypeID: "STRIPEFEE",
			Amount:      decimal.RequireFromString("7.50"),
			Description: "Stripe fee",
		}},
	}
}

func TestWithSession_LogsOutOnEveryPath(t *testing.T) {
	tests := []struct {
		name    string
		fnErr   error
		wantErr bool
	}{
		{name: "success", fnErr: nil},
		{name: "callback error", fnErr: errors.New("boom"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake, client := setupERP(t)

			err := client.WithSession(context.Background(), func(Session) error { return tc.fnErr })
			if tc.wantErr {
				assert.ErrorIs(t, err, tc.fnErr)
			} else {
				assert.NoError(t, err)
			}

			stats := fake.Stats()
			assert.Equal(t, 1, stats.Logins)
			assert.Equal(t, 1, stats.Logouts)
			assert.Equal(t, 0, fake.OpenSessions())
		})
	}
}

func TestWithSession_LogoutFailureDoesNotMaskResult(t *testing.T) {
	fake, client := setupERP(t)
	fake.FailLogout = true

	err := client.WithSession(context.Background(), func(Session) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, fake.Stats().Logouts)
}

func TestWithSession_LogsOutAfterPanic(t *testing.T) {
	fake, client := setupERP(t)

	assert.Panics(t, func() {
		_ = client.WithSession(context.Background(), func(Session) error { panic("boom") })
	})
	assert.Equal(t, 1, fake.Stats().Logouts)
}

func TestLogin_BadCredentials(t *testing.T) {
	fake, client := setupERP(t)
	client.cfg.Password = "wrong"

	called := false
	err := client.WithSession(context.Background(), func(Session) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrERPAuthentication)
	assert.False(t, called)
	assert.Equal(t, 0, fake.Stats().Logouts)
}

func TestLogout_Idempotent(t *testing.T) {
	fake, client := setupERP(t)
	ctx := context.Background()

	s, err := client.Login(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, 1, fake.Stats().Logouts)
}

func TestFindInvoice(t *testing.T) {
	fake, client := setupERP(t)
	fake.AddInvoice(domain.Invoice{
		Number:      "004210",
		CustomerID:  "C000123",
		Balance:     decimal.RequireFromString("250.00"),
		Currency:    "USD",
		Description: "Consulting, March",
	})

	tests := []struct {
		name    string
		number  string
		wantErr error
	}{
		{name: "found", number: "004210"},
		{name: "missing", number: "009999", wantErr: domain.ErrInvoiceNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var inv *domain.Invoice
			err := client.WithSession(context.Background(), func(s Session) error {
				var err error
				inv, err = s.FindInvoice(context.Background(), tc.number)
				return err
			})

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "004210", inv.Number)
			assert.Equal(t, "C000123", inv.CustomerID)
			assert.True(t, decimal.RequireFromString("250").Equal(inv.Balance))
			assert.Equal(t, "USD", inv.Currency)
			assert.Equal(t, "Consulting, March", inv.Description)
		})
	}
}

func TestFindInvoice_Unauthenticated(t *testing.T) {
	_, client := setupERP(t)
	ctx := context.Background()

	s, err := client.Login(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))
	s.loggedOut = false

	_, err = s.FindInvoice(ctx, "004210")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestCreatePayment(t *testing.T) {
	fake, client := setupERP(t)

	var created *domain.ERPPayment
	err := client.WithSession(context.Background(), func(s Session) error {
		var err error
		created, err = s.CreatePayment(context.Background(), testPayment())
		return err
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "000001", created.ReferenceNbr)
	assert.Equal(t, domain.ERPPaymentStatusOpen, created.Status)
	require.Len(t, created.Documents, 1)
	assert.NotEmpty(t, created.Documents[0].ID)
	assert.True(t, decimal.RequireFromString("250").Equal(created.Documents[0].AmountPaid))

	stored, ok := fake.Payment("000001")
	require.True(t, ok)
	assert.Equal(t, "pi_123", stored.PaymentRef)
	assert.Equal(t, "1008", stored.CashAccount)
	require.Len(t, stored.Charges, 1)
	assert.Equal(t, "STRIPEFEE", stored.Charges[0].EntryTypeID)
	assert.True(t, decimal.RequireFromString("7.5").Equal(stored.Charges[0].Amount))
}

func TestCreatePayment_Rejected(t *testing.T) {
	fake, client := setupERP(t)
	fake.FailCreate = true

	err := client.WithSession(context.Background(), func(s Session) error {
		_, err := s.CreatePayment(context.Background(), testPayment())
		return err
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Cash account is inactive")
	assert.Equal(t, 1, fake.Stats().Logouts)
}

func TestCorrectPaymentAmount(t *testing.T) {
	fake, client := setupERP(t)

	p := testPayment()
	p.Documents[0].CrossRate = decimal.RequireFromString("1.35")

	err := client.WithSession(context.Background(), func(s Session) error {
		created, err := s.CreatePayment(context.Background(), p)
		if err != nil {
			return err
		}
		created.Documents[0].AmountPaid = p.Documents[0].AmountPaid
		_, err = s.CorrectPaymentAmount(context.Background(), created)
		return err
	})
	require.NoError(t, err)

	stored, ok := fake.Payment("000001")
	require.True(t, ok)
	require.Len(t, stored.Documents, 1)
	assert.True(t, decimal.RequireFromString("250").Equal(stored.Documents[0].AmountPaid))
	require.Len(t, stored.Charges, 1)
	assert.Equal(t, 1, fake.Stats().Corrections)
}

func TestReleasePayment(t *testing.T) {
	fake, client := setupERP(t)

	err := client.WithSession(context.Background(), func(s Session) error {
		created, err := s.CreatePayment(context.Background(), testPayment())
		if err != nil {
			return err
		}
		return s.ReleasePayment(context.Background(), created.ReferenceNbr)
	})
	require.NoError(t, err)

	stored, _ := fake.Payment("000001")
	assert.Equal(t, domain.ERPPaymentStatusReleased, stored.Status)
}

func TestReleasePayment_AcceptedStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "accepted", status: http.StatusAccepted},
		{name: "no content", status: http.StatusNoContent},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/entity/Release/22.200.001/Payment/Release", r.URL.Path)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			s := &AuthSession{
				cfg:  Config{BaseURL: srv.URL, Version: "22.200.001", ReleaseEndpoint: "Release"},
				http: srv.Client(),
			}
			err := s.ReleasePayment(context.Background(), "000001")
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrUpstream)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPaymentDTO_NumbersAreUnquoted(t *testing.T) {
	b, err := json.Marshal(toPaymentDTO(testPayment()))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, `{"value":250}`, string(raw["PaymentAmount"]))
	assert.JSONEq(t, `{"value":"C000123"}`, string(raw["CustomerID"]))
	_, hasID := raw["id"]
	assert.False(t, hasID)
}

func TestCorrectionDTO_OmitsCharges(t *testing.T) {
	p := testPayment()
	p.ID = "a1b2"
	p.ReferenceNbr = "000001"
	p.Documents[0].ID = "d1"

	b, err := json.Marshal(toCorrectionDTO(p))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.NotContains(t, raw, "Charges")
	assert.NotContains(t, raw, "PaymentAmount")
	assert.Contains(t, raw, "DocumentsToApply")
	assert.JSONEq(t, `"a1b2"`, string(raw["id"]))
	assert.JSONEq(t, `[{"id":"d1","DocType":{"value":"Invoice"},"ReferenceNbr":{"value":"004210"},"AmountPaid":{"value":250}}]`,
		string(raw["DocumentsToApply"]))
}

func TestAPIError_BodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, string(make([]byte, 4096)))
	}))
	defer srv.Close()

	s := &AuthSession{cfg: Config{BaseURL: srv.URL, Version: "v"}, http: srv.Client()}
	err := s.ReleasePayment(context.Background(), "000001")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, 512)
}
