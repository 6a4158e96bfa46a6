package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

const readinessCheckTimeout = 3 * time.Second

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// DatabaseCheck pings the pool.
func DatabaseCheck(db *sql.DB) ReadinessCheck {
	return ReadinessCheck{Name: "database", Check: db.PingContext}
}

// ERPCheck treats any HTTP answer from baseURL as reachable. Only transport
// failures mark the ERP down; its login state is not part of readiness.
func ERPCheck(client *http.Client, baseURL string) ReadinessCheck {
	return ReadinessCheck{Name: "erp", Check: func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return fmt.Errorf("ERPCheck: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("ERPCheck: %w", err)
		}
		resp.Body.Close()
		return nil
	}}
}

type HealthHandler struct {
	version string
	checks  []ReadinessCheck
}

func NewHealthHandler(version string, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "invoice-pay",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	results := make(map[string]string, len(h.checks))
	httpStatus := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			log.Warn("readiness check failed", "check", c.Name, "error", err)
			results[c.Name] = "down"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "ok"
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
