// Package erptest provides an in-memory implementation of the ERP entity API
// endpoints used by the payment flow.
package erptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const sessionCookie = ".ASPXAUTH"

type Credentials struct {
	Username string
	Password string
	Tenant   string
}

// Stats counts calls per operation.
type Stats struct {
	Logins      int
	Logouts     int
	Lookups     int
	Creates     int
	Corrections int
	Releases    int
}

// Writes is the number of calls that mutate ERP data.
func (s Stats) Writes() int {
	return s.Creates + s.Corrections + s.Releases
}

type Server struct {
	creds Credentials

	mu       sync.Mutex
	sessions map[string]bool
	invoices map[string]domain.Invoice
	payments map[string]*domain.ERPPayment
	nextRef  int
	stats    Stats

	// RecalculateOnCrossRate mimics the ERP recomputing AmountPaid when a
	// non-identity cross-rate is supplied on create.
	RecalculateOnCrossRate bool
	FailCreate             bool
	FailRelease            bool
	FailLogout             bool
}

func NewServer(creds Credentials) *Server {
	return &Server{
		creds:                  creds,
		sessions:               make(map[string]bool),
		invoices:               make(map[string]domain.Invoice),
		payments:               make(map[string]*domain.ERPPayment),
		RecalculateOnCrossRate: true,
	}
}

func (s *Server) AddInvoice(inv domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.Number] = inv
}

func (s *Server) Payment(referenceNbr string) (domain.ERPPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[referenceNbr]
	if !ok {
		return domain.ERPPayment{}, false
	}
	return *p, true
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// OpenSessions is the number of logins not yet logged out.
func (s *Server) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /entity/auth/login", s.login)
	mux.HandleFunc("POST /entity/auth/logout", s.logout)
	mux.HandleFunc("GET /entity/{endpoint}/{version}/Invoice/Invoice/{number}", s.authed(s.getInvoice))
	mux.HandleFunc("PUT /entity/{endpoint}/{version}/Payment", s.authed(s.putPayment))
	mux.HandleFunc("POST /entity/{endpoint}/{version}/Payment/Release", s.authed(s.release))
	return mux
}

type sval struct {
	Value string `json:"value"`
}

type dval struct {
	Value decimal.Decimal `json:"value"`
}

func (v dval) MarshalJSON() ([]byte, error) {
	return []byte(`{"value":` + v.Value.String() + `}`), nil
}

type wireDocument struct {
	ID           string `json:"id,omitempty"`
	DocType      *sval  `json:"DocType,omitempty"`
	ReferenceNbr *sval  `json:"ReferenceNbr,omitempty"`
	AmountPaid   *dval  `json:"AmountPaid,omitempty"`
	CrossRate    *dval  `json:"CrossRate,omitempty"`
}

type wireCharge struct {
	EntryTypeID *sval `json:"EntryTypeID,omitempty"`
	Amount      *dval `json:"Amount,omitempty"`
	Description *sval `json:"Description,omitempty"`
}

type wirePayment struct {
	ID               string         `json:"id,omitempty"`
	Type             *sval          `json:"Type,omitempty"`
	ReferenceNbr     *sval          `json:"ReferenceNbr,omitempty"`
	Status           *sval          `json:"Status,omitempty"`
	CustomerID       *sval          `json:"CustomerID,omitempty"`
	PaymentMethod    *sval          `json:"PaymentMethod,omitempty"`
	CashAccount      *sval          `json:"CashAccount,omitempty"`
	PaymentRef       *sval          `json:"PaymentRef,omitempty"`
	PaymentAmount    *dval          `json:"PaymentAmount,omitempty"`
	DocumentsToApply []wireDocument `json:"DocumentsToApply,omitempty"`
	Charges          []wireCharge   `json:"Charges,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		Tenant   string `json:"tenant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid login body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Logins++

	if req.Name != s.creds.Username || req.Password != s.creds.Password || req.Tenant != s.creds.Tenant {
		http.Error(w, `{"message":"Invalid credentials."}`, http.StatusUnauthorized)
		return
	}

	token := uuid.NewString()
	s.sessions[token] = true
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Logouts++

	if s.FailLogout {
		http.Error(w, `{"message":"logout failed"}`, http.StatusInternalServerError)
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		delete(s.sessions, c.Value)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		ok := err == nil && s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			http.Error(w, `{"message":"You are not logged in."}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Lookups++

	inv, ok := s.invoices[r.PathValue("number")]
	if !ok {
		http.Error(w, `{"message":"No entity satisfies the condition."}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"ReferenceNbr": sval{inv.Number},
		"Customer":     sval{inv.CustomerID},
		"Balance":      dval{inv.Balance},
		"Currency":     sval{inv.Currency},
		"Description":  sval{inv.Description},
	})
}

func (s *Server) putPayment(w http.ResponseWriter, r *http.Request) {
	var in wirePayment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid payment body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID != "" {
		s.correct(w, in)
		return
	}

	s.stats.Creates++
	if s.FailCreate {
		http.Error(w, `{"message":"Cash account is inactive."}`, http.StatusUnprocessableEntity)
		return
	}

	s.nextRef++
	p := &domain.ERPPayment{
		ID:            uuid.NewString(),
		ReferenceNbr:  fmt.Sprintf("%06d", s.nextRef),
		Type:          get(in.Type),
		Status:        domain.ERPPaymentStatusOpen,
		CustomerID:    get(in.CustomerID),
		PaymentMethod: get(in.PaymentMethod),
		CashAccount:   get(in.CashAccount),
		PaymentRef:    get(in.PaymentRef),
		PaymentAmount: getDec(in.PaymentAmount),
	}
	for _, d := range in.DocumentsToApply {
		doc := domain.DocumentApplication{
			ID:           uuid.NewString(),
			DocType:      get(d.DocType),
			ReferenceNbr: get(d.ReferenceNbr),
			AmountPaid:   getDec(d.AmountPaid),
			CrossRate:    decimal.NewFromInt(1),
		}
		if d.CrossRate != nil {
			doc.CrossRate = d.CrossRate.Value
		}
		if s.RecalculateOnCrossRate && !doc.CrossRate.Equal(decimal.NewFromInt(1)) {
			doc.AmountPaid = doc.AmountPaid.Mul(doc.CrossRate).Round(2)
		}
		p.Documents = append(p.Documents, doc)
	}
	for _, c := range in.Charges {
		p.Charges = append(p.Charges, domain.Charge{
			EntryTypeID: get(c.EntryTypeID),
			Amount:      getDec(c.Amount),
			Description: get(c.Description),
		})
	}
	s.payments[p.ReferenceNbr] = p
	writeJSON(w, toWire(p))
}

// correct must be called with s.mu held.
func (s *Server) correct(w http.ResponseWriter, in wirePayment) {
	s.stats.Corrections++

	p, ok := s.payments[get(in.ReferenceNbr)]
	if !ok || p.ID != in.ID {
		http.Error(w, `{"message":"Payment not found."}`, http.StatusNotFound)
		return
	}
	if p.Status == domain.ERPPaymentStatusReleased {
		http.Error(w, `{"message":"Released documents cannot be modified."}`, http.StatusUnprocessableEntity)
		return
	}
	for _, d := range in.DocumentsToApply {
		for i := range p.Documents {
			if p.Documents[i].ID == d.ID && d.AmountPaid != nil {
				p.Documents[i].AmountPaid = d.AmountPaid.Value
			}
		}
	}
	writeJSON(w, toWire(p))
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Entity struct {
			Type         *sval `json:"Type"`
			ReferenceNbr *sval `json:"ReferenceNbr"`
		} `json:"entity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid release body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Releases++

	if s.FailRelease {
		http.Error(w, `{"message":"Document is out of balance."}`, http.StatusInternalServerError)
		return
	}
	p, ok := s.payments[get(in.Entity.ReferenceNbr)]
	if !ok {
		http.Error(w, `{"message":"Payment not found."}`, http.StatusNotFound)
		return
	}
	p.Status = domain.ERPPaymentStatusReleased
	w.WriteHeader(http.StatusNoContent)
}

func toWire(p *domain.ERPPayment) wirePayment {
	out := wirePayment{
		ID:            p.ID,
		Type:          &sval{p.Type},
		ReferenceNbr:  &sval{p.ReferenceNbr},
		Status:        &sval{string(p.Status)},
		CustomerID:    &sval{p.CustomerID},
		PaymentMethod: &sval{p.PaymentMethod},
		CashAccount:   &sval{p.CashAccount},
		PaymentRef:    &sval{p.PaymentRef},
		PaymentAmount: &dval{p.PaymentAmount},
	}
	for _, d := range p.Documents {
		out.DocumentsToApply = append(out.DocumentsToApply, wireDocument{
			ID:           d.ID,
			DocType:      &sval{d.DocType},
			ReferenceNbr: &sval{d.ReferenceNbr},
			AmountPaid:   &dval{d.AmountPaid},
			CrossRate:    &dval{d.CrossRate},
		})
	}
	return out
}

func get(v *sval) string {
	if v == nil {
		return ""
	}
	return v.Value
}

func getDec(v *dval) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return v.Value
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
