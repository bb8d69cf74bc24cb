package diagramstore

import (
	"log/slog"

	"github.com/flowkit/diagramstore/diagramstore/quota"
)

// Option configures a store at construction time.
type Option func(*storeOptions)

type storeOptions struct {
	logger          *slog.Logger
	observer        quota.Observer
	cleanupPatterns []quota.Pattern
}

func defaultOptions() storeOptions {
	return storeOptions{
		logger: slog.Default(),
	}
}

// WithLogger sets the structured logger the store reports through.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQuotaObserver registers a callback for quota-exceeded events, so a
// UI layer can surface recovery outcomes without the store depending on
// any host event bus.
func WithQuotaObserver(observer quota.Observer) Option {
	return func(o *storeOptions) {
		o.observer = observer
	}
}

// WithCleanupPatterns overrides the low-priority key patterns quota
// cleanup may reclaim, in priority order (least valuable first).
func WithCleanupPatterns(patterns []quota.Pattern) Option {
	return func(o *storeOptions) {
		o.cleanupPatterns = patterns
	}
}
