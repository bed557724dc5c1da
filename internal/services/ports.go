package services

import (
	"context"

	"rata/internal/core"
)

// Ports for outbound collaborators. The storage package provides the
// durable implementations; tests substitute in-memory fakes.
type (
	// DefinitionStore persists recurring definitions for a single owner set.
	// Implementations are read-your-writes consistent per owner.
	DefinitionStore interface {
		CreateDefinition(ctx context.Context, d core.Definition) (core.Definition, error)
		GetDefinition(ctx context.Context, id int64) (core.Definition, error)
		// UpdateDefinition replaces the mutable fields of d guarded by
		// d.Version; returns core.ErrVersionConflict on a stale version.
		UpdateDefinition(ctx context.Context, d core.Definition) (core.Definition, error)
		// DeleteDefinition removes a definition; deleting a missing id
		// returns core.ErrNotFound.
		DeleteDefinition(ctx context.Context, id int64) error
		ListDefinitions(ctx context.Context, owner string) ([]core.Definition, error)
		// ListDue returns active, auto-executing definitions whose next
		// occurrence falls on or before today and whose end date, if
		// any, has not passed.
		ListDue(ctx context.Context, owner string, today core.Date) ([]core.Definition, error)
		// ListUpcoming returns definitions with next occurrence on or
		// before until, ordered by next occurrence ascending.
		ListUpcoming(ctx context.Context, owner string, until core.Date) ([]core.Definition, error)
		// ClaimExecution bumps the version of the definition if and only
		// if it still matches version; core.ErrVersionConflict otherwise.
		ClaimExecution(ctx context.Context, id, version int64) error
		// AdvanceSchedule stamps the execution date and the recomputed
		// next occurrence.
		AdvanceSchedule(ctx context.Context, id int64, executed, next core.Date) error
	}

	// LedgerAppender is the append-only ledger collaborator.
	LedgerAppender interface {
		Append(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
	}
)
