package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	StripeAPIKey        string `env:"STRIPE_API_KEY,required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	ERPBaseURL         string        `env:"ERP_BASE_URL,required"`
	ERPUsername        string        `env:"ERP_USERNAME,required"`
	ERPPassword        string        `env:"ERP_PASSWORD,required"`
	ERPTenant          string        `env:"ERP_TENANT"`
	ERPEndpoint        string        `env:"ERP_ENDPOINT" envDefault:"Default"`
	ERPEndpointVersion string        `env:"ERP_ENDPOINT_VERSION" envDefault:"24.200.001"`
	ERPReleaseEndpoint string        `env:"ERP_RELEASE_ENDPOINT" envDefault:"Default"`
	ERPTimeout         time.Duration `env:"ERP_TIMEOUT" envDefault:"30s"`

	CheckoutSuccessURL  string `env:"CHECKOUT_SUCCESS_URL,required"`
	CheckoutCancelURL   string `env:"CHECKOUT_CANCEL_URL,required"`
	CheckoutTitlePrefix string `env:"CHECKOUT_TITLE_PREFIX" envDefault:"Invoice #"`
	InvoiceNumberWidth  int    `env:"INVOICE_NUMBER_WIDTH" envDefault:"6"`

	CashAccounts       map[string]string `env:"CASH_ACCOUNTS" envDefault:"USD:1008" envKeyValSeparator:":"`
	DefaultCashAccount string            `env:"DEFAULT_CASH_ACCOUNT" envDefault:"1013"`
	PaymentMethod      string            `env:"PAYMENT_METHOD" envDefault:"STRIPE"`
	FeeEntryType       string            `env:"FEE_ENTRY_TYPE" envDefault:"CCFEES"`

	SettlementMaxAttempts int           `env:"SETTLEMENT_MAX_ATTEMPTS" envDefault:"10"`
	SettlementBackoffStep time.Duration `env:"SETTLEMENT_BACKOFF_STEP" envDefault:"5s"`

	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	WorkerBatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"10"`
	WorkerLease        time.Duration `env:"WORKER_LEASE" envDefault:"15m"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET,required"`

	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"payment-reconciliations"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.InvoiceNumberWidth < 1 {
		return nil, fmt.Errorf("config.Load: INVOICE_NUMBER_WIDTH must be positive, got %d", cfg.InvoiceNumberWidth)
	}
	if cfg.SettlementMaxAttempts < 1 {
		return nil, fmt.Errorf("config.Load: SETTLEMENT_MAX_ATTEMPTS must be positive, got %d", cfg.SettlementMaxAttempts)
	}
	cfg.CashAccounts = normalizeCurrencyKeys(cfg.CashAccounts)
	return &cfg, nil
}

// Currency codes arrive in any case from both the ERP and the processor.
func normalizeCurrencyKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
