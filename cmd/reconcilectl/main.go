package main

import (
	"context"
	"fmt"
	"os"

	env "github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
	"github.com/josh-kwaku/invoice-pay/internal/repository"
)

type cliConfig struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`
}

type jobStore interface {
	Enqueue(ctx context.Context, sessionID string) (bool, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error)
	Requeue(ctx context.Context, sessionID string) (*domain.ReconciliationJob, error)
}

// openStoreFunc connects to the job store; the returned func releases it.
type openStoreFunc func(ctx context.Context, cfg cliConfig) (jobStore, func() error, error)

func openPostgresStore(ctx context.Context, cfg cliConfig) (jobStore, func() error, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		ApplicationName: "reconcilectl",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
	})
	if err != nil {
		return nil, nil, err
	}
	return repository.NewReconciliationJobRepository(db), db.Close, nil
}

func newRootCmd(cfg cliConfig, open openStoreFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operate the invoice payment reconciliation queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(tokenCmd(cfg))
	root.AddCommand(enqueueCmd(cfg, open))
	root.AddCommand(statusCmd(cfg, open))
	root.AddCommand(retryCmd(cfg, open))

	return root
}

func main() {
	cfg, err := env.ParseAs[cliConfig]()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg, openPostgresStore).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
