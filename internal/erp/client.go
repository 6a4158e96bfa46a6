package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

type Config struct {
	BaseURL         string
	Username        string
	Password        string
	Tenant          string
	Endpoint        string
	Version         string
	ReleaseEndpoint string
	Timeout         time.Duration
}

// Session is the set of entity operations available while logged in.
type Session interface {
	FindInvoice(ctx context.Context, invoiceNumber string) (*domain.Invoice, error)
	CreatePayment(ctx context.Context, p *domain.ERPPayment) (*domain.ERPPayment, error)
	CorrectPaymentAmount(ctx context.Context, p *domain.ERPPayment) (*domain.ERPPayment, error)
	ReleasePayment(ctx context.Context, referenceNbr string) error
}

type Client struct {
	cfg       Config
	transport http.RoundTripper
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg}
}

// WithTransport overrides the HTTP transport of every session the client opens.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.transport = rt
	return c
}

// APIError is a non-success response from the entity API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return domain.ErrUpstream }

// AuthSession is one cookie-authenticated login. It is not safe for concurrent use.
type AuthSession struct {
	cfg       Config
	http      *http.Client
	loggedOut bool
}

func (c *Client) Login(ctx context.Context) (*AuthSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("Login: cookie jar: %w", err)
	}

	s := &AuthSession{
		cfg: c.cfg,
		http: &http.Client{
			Timeout:   c.cfg.Timeout,
			Jar:       jar,
			Transport: c.transport,
		},
	}

	req := loginRequest{
		Name:     c.cfg.Username,
		Password: c.cfg.Password,
		Tenant:   c.cfg.Tenant,
	}
	if err := s.call(ctx, "Login", http.MethodPost, "/entity/auth/login", req, nil, http.StatusOK, http.StatusNoContent); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("Login: %w: %w", domain.ErrERPAuthentication, err)
		}
		return nil, fmt.Errorf("Login: %w", err)
	}

	logging.FromContext(ctx).Debug("erp session opened", "tenant", c.cfg.Tenant)
	return s, nil
}

// WithSession logs in, runs fn and logs out on every exit path, including panics.
// Logout errors are logged and never replace fn's result.
func (c *Client) WithSession(ctx context.Context, fn func(Session) error) error {
	s, err := c.Login(ctx)
	if err != nil {
		return fmt.Errorf("WithSession: %w", err)
	}
	defer func() {
		if err := s.Logout(context.WithoutCancel(ctx)); err != nil {
			logging.FromContext(ctx).Error("erp logout failed", "error", err)
		}
	}()
	return fn(s)
}

func (s *AuthSession) Logout(ctx context.Context) error {
	if s.loggedOut {
		return nil
	}
	s.loggedOut = true
	if err := s.call(ctx, "Logout", http.MethodPost, "/entity/auth/logout", nil, nil, http.StatusOK, http.StatusNoContent); err != nil {
		return fmt.Errorf("Logout: %w", err)
	}
	return nil
}

func (s *AuthSession) FindInvoice(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	path := s.entityPath(s.cfg.Endpoint, "Invoice", "Invoice", url.PathEscape(invoiceNumber)) +
		"?$select=Balance,Customer,Currency,Description"

	var dto invoiceDTO
	if err := s.call(ctx, "FindInvoice", http.MethodGet, path, nil, &dto, http.StatusOK); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("FindInvoice: %s: %w", invoiceNumber, domain.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("FindInvoice: %w", err)
	}
	return dto.toDomain(invoiceNumber), nil
}

func (s *AuthSession) CreatePayment(ctx context.Context, p *domain.ERPPayment) (*domain.ERPPayment, error) {
	path := s.entityPath(s.cfg.Endpoint, "Payment") + "?$expand=DocumentsToApply"

	var out paymentDTO
	if err := s.call(ctx, "CreatePayment", http.MethodPut, path, toPaymentDTO(p), &out, http.StatusOK); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}
	created := out.toDomain()
	if created.ReferenceNbr == "" {
		return nil, fmt.Errorf("CreatePayment: response has no reference number: %w", domain.ErrUpstream)
	}
	return created, nil
}

func (s *AuthSession) CorrectPaymentAmount(ctx context.Context, p *domain.ERPPayment) (*domain.ERPPayment, error) {
	path := s.entityPath(s.cfg.Endpoint, "Payment") + "?$expand=DocumentsToApply"

	var out paymentDTO
	if err := s.call(ctx, "CorrectPaymentAmount", http.MethodPut, path, toCorrectionDTO(p), &out, http.StatusOK); err != nil {
		return nil, fmt.Errorf("CorrectPaymentAmount: %w", err)
	}
	return out.toDomain(), nil
}

func (s *AuthSession) ReleasePayment(ctx context.Context, referenceNbr string) error {
	path := s.entityPath(s.cfg.ReleaseEndpoint, "Payment", "Release")
	req := releaseRequest{Entity: releaseEntity{
		Type:         str(domain.ERPPaymentType),
		ReferenceNbr: str(referenceNbr),
	}}
	if err := s.call(ctx, "ReleasePayment", http.MethodPost, path, req, nil,
		http.StatusOK, http.StatusAccepted, http.StatusNoContent); err != nil {
		return fmt.Errorf("ReleasePayment: %w", err)
	}
	return nil
}

func (s *AuthSession) entityPath(endpoint string, parts ...string) string {
	return "/entity/" + endpoint + "/" + s.cfg.Version + "/" + strings.Join(parts, "/")
}

func (s *AuthSession) call(ctx context.Context, op, method, path string, in, out any, accepted ...int) error {
	log := logging.FromContext(ctx)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}
	defer resp.Body.Close()

	log.Debug("erp response received",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !slices.Contains(accepted, resp.StatusCode) {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return nil
}
