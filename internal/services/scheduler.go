package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rata/internal/core"
)

// Scheduler runs the periodic due-check pass: an initial scan on start
// and one scan per interval tick until the context is cancelled. Between
// scans it is idle; a scan processes each due definition to completion
// before considering the next.
type Scheduler struct {
	store    DefinitionStore
	executor *Executor
	owner    string
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(store DefinitionStore, executor *Executor, owner string, interval time.Duration, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		owner:    owner,
		interval: interval,
		now:      now,
	}
}

// Run blocks until ctx is cancelled. Cancellation is the stop handle:
// an in-flight scan finishes its current definition, then the loop exits.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Due-check scheduler started",
		"owner", s.owner,
		"interval", s.interval)

	if count, err := s.Scan(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial scan failed", "error", err)
	} else {
		slog.InfoContext(ctx, "Initial scan complete", "executed", count)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Due-check scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			count, err := s.Scan(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Periodic scan failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Periodic scan complete",
				"executed", count,
				"next_check", s.now().Add(s.interval).Format("15:04:05"))
		}
	}
}

// Scan runs a single due-check pass and returns the number of
// materialized occurrences. Each definition fires at most once per scan;
// a definition overdue by several periods catches up on later scans.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	today := core.DateOf(s.now())

	due, err := s.store.ListDue(ctx, s.owner, today)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Scanning recurring definitions",
		"due", len(due),
		"date", today.String())

	executed := 0
	for _, d := range due {
		if ctx.Err() != nil {
			return executed, ctx.Err()
		}

		_, err := s.executor.Execute(ctx, d.ID)
		switch {
		case err == nil:
			executed++
		case errors.Is(err, core.ErrNotFound):
			// Deleted between scan and execution.
			slog.DebugContext(ctx, "Definition vanished before execution", "id", d.ID)
		case errors.Is(err, core.ErrVersionConflict):
			// Another instance or an edit claimed it first.
			slog.InfoContext(ctx, "Execution claim lost, skipping", "id", d.ID)
		case errors.Is(err, core.ErrEnded):
			slog.DebugContext(ctx, "Definition past its end date", "id", d.ID)
		default:
			// Schedule was not advanced; the next scan retries.
			slog.ErrorContext(ctx, "Failed to execute recurring definition",
				"id", d.ID,
				"name", d.Name,
				"error", err)
		}
	}

	return executed, nil
}
