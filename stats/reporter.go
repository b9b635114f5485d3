package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reporter periodically flushes table statistics.
type Reporter struct {
	table    *TableStatistics
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReporter builds a periodic reporter over the batching adapter.
func NewReporter(table *TableStatistics, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		table:    table,
		interval: interval,
		logger:   logger.With("component", "stats-reporter"),
	}
}

// Start launches the flush loop. Idempotent while running.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(loopCtx)
}

func (r *Reporter) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush on the way out, best effort.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.table.Report(flushCtx, time.Now()); err != nil {
				r.logger.Warn("Final statistics flush failed", "error", err)
			}
			cancel()
			return
		case now := <-ticker.C:
			if err := r.table.Report(ctx, now); err != nil {
				r.logger.Warn("Statistics flush failed", "error", err)
			}
		}
	}
}

// Stop halts the loop and waits for the final flush.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
