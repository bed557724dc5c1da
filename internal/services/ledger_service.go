package services

import (
	"context"
	"fmt"
	"log/slog"

	"rata/internal/core"
)

// EventPublisher notifies downstream consumers that a ledger entry was
// materialized. The dashboard's sync worker picks these messages up.
type EventPublisher interface {
	PublishLedgerSync(ctx context.Context, id, version int64) error
}

// LedgerService decorates the durable ledger with async sync messages.
// The local append is authoritative; publish failures are logged and
// never fail the operation.
type LedgerService struct {
	ledger LedgerAppender
	events EventPublisher
}

func NewLedgerService(ledger LedgerAppender, events EventPublisher) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		events: events,
	}
}

// Append implements LedgerAppender.
func (s *LedgerService) Append(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	entry, err := s.ledger.Append(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("append ledger entry: %w", err)
	}

	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping sync message", "id", entry.ID)
		return entry, nil
	}

	if err := s.events.PublishLedgerSync(ctx, entry.ID, entry.Version); err != nil {
		// Entry is durable locally; downstream sync will catch up later.
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"id", entry.ID,
			"error", err)
	}

	return entry, nil
}
