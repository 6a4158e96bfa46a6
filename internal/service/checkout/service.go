package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/erp"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
	"github.com/josh-kwaku/invoice-pay/internal/service/invoice"
)

type erpSessions interface {
	WithSession(ctx context.Context, fn func(erp.Session) error) error
}

type sessionCreator interface {
	CreateSession(ctx context.Context, req domain.SessionCreateRequest) (string, error)
}

type invoiceValidator interface {
	Validate(ctx context.Context, finder invoice.Finder, rawNumber, customerID string) (*domain.Invoice, error)
}

type StartResult struct {
	SessionID     string
	InvoiceNumber string
}

type Service struct {
	erp       erpSessions
	validator invoiceValidator
	builder   *SessionBuilder
	sessions  sessionCreator
}

func NewService(erpClient erpSessions, validator invoiceValidator, builder *SessionBuilder, sessions sessionCreator) *Service {
	return &Service{
		erp:       erpClient,
		validator: validator,
		builder:   builder,
		sessions:  sessions,
	}
}

// StartCheckout validates the invoice against the ERP and opens a hosted
// session for its balance. The ERP session is closed before the processor is called.
func (s *Service) StartCheckout(ctx context.Context, customerID, invoiceNumber string) (*StartResult, error) {
	log := logging.FromContext(ctx)

	var inv *domain.Invoice
	err := s.erp.WithSession(ctx, func(es erp.Session) error {
		var err error
		inv, err = s.validator.Validate(ctx, es, invoiceNumber, customerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("StartCheckout: %w", err)
	}

	req := s.builder.Build(inv, inv.Number, strings.TrimSpace(customerID))
	sessionID, err := s.sessions.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("StartCheckout: %w", err)
	}

	log.Info("checkout session created",
		"session_id", sessionID,
		"invoice_number", inv.Number,
		"amount_minor", req.LineItem.UnitAmount,
		"currency", req.LineItem.Currency,
	)

	return &StartResult{SessionID: sessionID, InvoiceNumber: inv.Number}, nil
}
