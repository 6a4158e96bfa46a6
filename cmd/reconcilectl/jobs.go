package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

const commandTimeout = 30 * time.Second

// withStore runs fn against an open job store and closes it afterwards.
func withStore(cmd *cobra.Command, cfg cliConfig, open openStoreFunc, fn func(ctx context.Context, jobs jobStore) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	jobs, closeFn, err := open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer closeFn()

	return fn(ctx, jobs)
}

func enqueueCmd(cfg cliConfig, open openStoreFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [session_id]",
		Short: "Queue a checkout session for reconciliation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, open, func(ctx context.Context, jobs jobStore) error {
				created, err := jobs.Enqueue(ctx, args[0])
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already has a reconciliation job\n", args[0])
				}
				return nil
			})
		},
	}
}

func statusCmd(cfg cliConfig, open openStoreFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session_id]",
		Short: "Show the reconciliation job for a checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, open, func(ctx context.Context, jobs jobStore) error {
				job, err := jobs.GetBySessionID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJob(cmd.OutOrStdout(), job)
			})
		},
	}
}

func retryCmd(cfg cliConfig, open openStoreFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [session_id]",
		Short: "Requeue a timed-out or failed reconciliation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, open, func(ctx context.Context, jobs jobStore) error {
				job, err := jobs.Requeue(ctx, args[0])
				if err != nil {
					return err
				}
				return printJob(cmd.OutOrStdout(), job)
			})
		},
	}
}

func printJob(w io.Writer, job *domain.ReconciliationJob) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Job:\t%s\n", job.ID)
	fmt.Fprintf(tw, "Session:\t%s\n", job.SessionID)
	fmt.Fprintf(tw, "Status:\t%s\n", job.Status)
	fmt.Fprintf(tw, "State:\t%s\n", valueOrDash(string(job.State)))
	fmt.Fprintf(tw, "Payment:\t%s\n", derefOrDash(job.PaymentRef))
	fmt.Fprintf(tw, "Attempts:\t%d\n", job.Attempts)
	fmt.Fprintf(tw, "Last error:\t%s\n", derefOrDash(job.LastError))
	fmt.Fprintf(tw, "Updated:\t%s\n", job.UpdatedAt.Format(time.RFC3339))
	return tw.Flush()
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func derefOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return valueOrDash(*s)
}
