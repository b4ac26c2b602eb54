package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/profilehub/internal/observability/metrics"
	"github.com/yourorg/profilehub/internal/session"
)

// SessionSweeper periodically prunes per-account session indexes in
// Redis. Session keys themselves expire by TTL; the index sets they
// are registered in do not, so dead IDs accumulate there until swept.
type SessionSweeper struct {
	store    *session.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewSessionSweeper creates a new sweeper
func NewSessionSweeper(store *session.Store, logger *slog.Logger, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the sweep loop and blocks until the context is done
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session sweeper started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	pruned, live, err := w.store.Sweep(ctx)
	if err != nil {
		w.logger.Error("session sweep failed", slog.String("error", err.Error()))
		return
	}
	metrics.SetLiveSessions(live)
	if pruned > 0 {
		metrics.AddSweptSessions(pruned)
		w.logger.Info("pruned expired session entries",
			slog.Int("pruned", pruned),
			slog.Int("live", live),
		)
	}
}
