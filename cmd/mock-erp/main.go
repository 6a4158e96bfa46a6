package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/erp/erptest"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

type config struct {
	Port     int    `env:"MOCK_ERP_PORT" envDefault:"8081"`
	Username string `env:"ERP_USERNAME" envDefault:"admin"`
	Password string `env:"ERP_PASSWORD" envDefault:"admin"`
	Tenant   string `env:"ERP_TENANT"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`

	// NUMBER:CUSTOMER:BALANCE:CURRENCY[:DESCRIPTION], comma separated
	Invoices []string `env:"MOCK_ERP_INVOICES" envDefault:"004210:C001:250.00:USD:Consulting services,004211:C002:1200.00:CAD"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-erp", "info", cfg.AppEnv)

	srv := erptest.NewServer(erptest.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		Tenant:   cfg.Tenant,
	})

	for _, raw := range cfg.Invoices {
		inv, err := parseInvoice(raw)
		if err != nil {
			slog.Error("invalid seed invoice", "value", raw, "error", err)
			os.Exit(1)
		}
		srv.AddInvoice(inv)
		slog.Info("seeded invoice", "number", inv.Number, "customer_id", inv.CustomerID, "balance", inv.Balance, "currency", inv.Currency)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock erp started", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseInvoice(raw string) (domain.Invoice, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 5)
	if len(parts) < 4 {
		return domain.Invoice{}, fmt.Errorf("parseInvoice: want NUMBER:CUSTOMER:BALANCE:CURRENCY, got %q", raw)
	}

	balance, err := decimal.NewFromString(parts[2])
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("parseInvoice: balance: %w", err)
	}

	inv := domain.Invoice{
		Number:     parts[0],
		CustomerID: parts[1],
		Balance:    balance,
		Currency:   parts[3],
	}
	if len(parts) == 5 {
		inv.Description = parts[4]
	}
	return inv, nil
}
