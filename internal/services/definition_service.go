package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rata/internal/core"
)

// DefinitionService owns the lifecycle of recurring definitions: creation
// with derived scheduling state, partial updates, pause/resume and listing.
type DefinitionService struct {
	store DefinitionStore
	now   func() time.Time
}

// DefinitionUpdate carries the mutable fields of a definition; nil fields
// are left untouched. EndDate set to the zero date clears the end date.
type DefinitionUpdate struct {
	Kind        *core.Kind
	Name        *string
	Amount      *core.Money
	Category    *string
	Frequency   *core.Frequency
	StartDate   *core.Date
	EndDate     *core.Date
	IsActive    *bool
	AutoExecute *bool
}

func NewDefinitionService(store DefinitionStore, now func() time.Time) *DefinitionService {
	if now == nil {
		now = time.Now
	}
	return &DefinitionService{
		store: store,
		now:   now,
	}
}

// Create validates and persists a new definition. The initial next
// occurrence is derived from the start date; it is never accepted from
// the caller.
func (s *DefinitionService) Create(ctx context.Context, d core.Definition) (core.Definition, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)

	if err := d.Validate(); err != nil {
		return core.Definition{}, err
	}

	next, err := NextDate(d.StartDate, d.Frequency)
	if err != nil {
		return core.Definition{}, err
	}
	d.NextOccurrence = next
	d.LastExecutedDate = core.Date{}

	created, err := s.store.CreateDefinition(ctx, d)
	if err != nil {
		return core.Definition{}, fmt.Errorf("create definition: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition created",
		"id", created.ID,
		"name", created.Name,
		"kind", created.Kind,
		"frequency", created.Frequency,
		"next_occurrence", created.NextOccurrence.String())

	return created, nil
}

// Update applies the non-nil fields of u to the definition. The next
// occurrence is re-derived only when frequency or start date change;
// other edits leave the schedule untouched.
func (s *DefinitionService) Update(ctx context.Context, id int64, u DefinitionUpdate) (core.Definition, error) {
	d, err := s.store.GetDefinition(ctx, id)
	if err != nil {
		return core.Definition{}, err
	}

	rederive := false
	if u.Kind != nil {
		d.Kind = *u.Kind
	}
	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.Amount != nil {
		d.Amount = *u.Amount
	}
	if u.Category != nil {
		d.Category = strings.TrimSpace(*u.Category)
	}
	if u.Frequency != nil && *u.Frequency != d.Frequency {
		d.Frequency = *u.Frequency
		rederive = true
	}
	if u.StartDate != nil && !u.StartDate.Equal(d.StartDate.Time) {
		d.StartDate = *u.StartDate
		rederive = true
	}
	if u.EndDate != nil {
		d.EndDate = *u.EndDate
	}
	if u.IsActive != nil {
		d.IsActive = *u.IsActive
	}
	if u.AutoExecute != nil {
		d.AutoExecute = *u.AutoExecute
	}

	if err := d.Validate(); err != nil {
		return core.Definition{}, err
	}

	if rederive {
		anchor := d.StartDate
		if !d.LastExecutedDate.IsZero() {
			anchor = d.LastExecutedDate
		}
		next, err := NextDate(anchor, d.Frequency)
		if err != nil {
			return core.Definition{}, err
		}
		d.NextOccurrence = next
	}

	updated, err := s.store.UpdateDefinition(ctx, d)
	if err != nil {
		return core.Definition{}, fmt.Errorf("update definition %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Recurring definition updated",
		"id", updated.ID,
		"next_occurrence", updated.NextOccurrence.String())

	return updated, nil
}

// Delete removes a definition. Deleting a missing id is a no-op so
// client retries stay cheap.
func (s *DefinitionService) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteDefinition(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete definition %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Recurring definition deleted", "id", id)
	return nil
}

// ToggleActive flips the pause flag. The schedule state is untouched, so
// resuming makes the definition due again on its previous next occurrence.
func (s *DefinitionService) ToggleActive(ctx context.Context, id int64) (core.Definition, error) {
	d, err := s.store.GetDefinition(ctx, id)
	if err != nil {
		return core.Definition{}, err
	}

	d.IsActive = !d.IsActive
	updated, err := s.store.UpdateDefinition(ctx, d)
	if err != nil {
		return core.Definition{}, fmt.Errorf("toggle definition %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Recurring definition toggled",
		"id", updated.ID,
		"is_active", updated.IsActive)

	return updated, nil
}

// List returns all definitions for an owner.
func (s *DefinitionService) List(ctx context.Context, owner string) ([]core.Definition, error) {
	return s.store.ListDefinitions(ctx, owner)
}

// ListUpcoming returns the definitions whose next occurrence falls within
// the given number of days from today, ordered by next occurrence.
func (s *DefinitionService) ListUpcoming(ctx context.Context, owner string, withinDays int) ([]core.Definition, error) {
	if withinDays < 0 {
		withinDays = 0
	}
	today := core.DateOf(s.now())
	until := core.Date{Time: today.AddDate(0, 0, withinDays)}
	return s.store.ListUpcoming(ctx, owner, until)
}
