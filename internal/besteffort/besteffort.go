// Package besteffort isolates the cross-cutting "best-effort" policy: side
// effects such as restore-history logging, session-info writes, and title
// prefixing must never fail the critical path that triggered them. Do wraps
// such a call, logging and swallowing any error.
package besteffort

import (
	"context"

	"github.com/rewindhq/rewind/internal/logging"
)

// Do runs fn and swallows any error, logging a warning tagged with
// component so the failure is still observable without propagating.
func Do(ctx context.Context, component string, fn func() error) {
	if err := fn(); err != nil {
		logging.Warn(ctx, "best-effort operation failed",
			"component", component,
			"error", err.Error(),
		)
	}
}
