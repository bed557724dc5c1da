package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rata/internal/core"
)

// Executor materializes one due occurrence of a definition into the
// ledger and advances its schedule. The schedule only moves forward on a
// confirmed successful append: a failed ledger write leaves the
// definition untouched so the next scan retries the same occurrence.
type Executor struct {
	store  DefinitionStore
	ledger LedgerAppender
	now    func() time.Time
}

func NewExecutor(store DefinitionStore, ledger LedgerAppender, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{
		store:  store,
		ledger: ledger,
		now:    now,
	}
}

// Execute fires one occurrence of the definition. It is the single entry
// point for both scheduler-driven and manual "run now" execution; manual
// calls bypass the due-date and auto-execute gates but follow the same
// claim/append/advance protocol.
//
// The claim step bumps the definition version with a compare-and-swap so
// that two instances observing the same due definition cannot both
// append; the loser returns core.ErrVersionConflict before touching the
// ledger.
func (e *Executor) Execute(ctx context.Context, id int64) (core.LedgerEntry, error) {
	// Reload by id: the definition may have been deleted or edited
	// between scan and execution.
	d, err := e.store.GetDefinition(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	today := core.DateOf(e.now())

	if !d.EndDate.IsZero() && today.After(d.EndDate) {
		return core.LedgerEntry{}, fmt.Errorf("definition %d ended %s: %w", id, d.EndDate, core.ErrEnded)
	}

	if err := e.store.ClaimExecution(ctx, d.ID, d.Version); err != nil {
		return core.LedgerEntry{}, err
	}

	entry := core.LedgerEntry{
		Kind:         d.Kind,
		Amount:       d.Amount,
		Category:     d.Category,
		Description:  fmt.Sprintf("%s (recurring #%d)", d.Name, d.ID),
		Date:         today,
		DefinitionID: d.ID,
	}

	appended, err := e.ledger.Append(ctx, entry)
	if err != nil {
		// Schedule stays unadvanced; the claim only burned a version.
		return core.LedgerEntry{}, fmt.Errorf("execute definition %d: %w", id, err)
	}

	next, err := NextDate(today, d.Frequency)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	if err := e.store.AdvanceSchedule(ctx, d.ID, today, next); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("advance schedule for definition %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Materialized recurring occurrence",
		"definition_id", d.ID,
		"entry_id", appended.ID,
		"kind", d.Kind,
		"amount_cents", d.Amount.Cents,
		"date", today.String(),
		"next_occurrence", next.String())

	return appended, nil
}
