// Package startup runs pre-flight hardware/model checks before the dialogue
// controller starts, ported from startup_checks.py.
package startup

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HealthChecker is implemented by any external collaborator with a
// HealthCheck(ctx) error method (llm.Client, stt.Client).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check runs every named check and returns one error per failure; an empty
// slice means every check passed.
func Check(ctx context.Context, requiredFiles []string, services map[string]HealthChecker) []error {
	var errs []error

	for _, path := range requiredFiles {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("startup: required file missing: %s: %w", path, err))
		}
	}

	for name, svc := range services {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := svc.HealthCheck(checkCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("startup: %s health check failed: %w", name, err))
		}
	}

	return errs
}
