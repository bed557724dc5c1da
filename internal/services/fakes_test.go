package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"rata/internal/core"
)

// fakeStore is an in-memory DefinitionStore with the same version
// semantics as the SQLite repository.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	defs   map[int64]core.Definition

	// claimHook runs at the start of ClaimExecution, letting tests
	// interleave a concurrent writer between reload and claim.
	claimHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{defs: make(map[int64]core.Definition)}
}

func (f *fakeStore) CreateDefinition(_ context.Context, d core.Definition) (core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	d.ID = f.nextID
	d.Version = 1
	d.CreatedAt = time.Now()
	f.defs[d.ID] = d
	return d, nil
}

func (f *fakeStore) GetDefinition(_ context.Context, id int64) (core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.defs[id]
	if !ok {
		return core.Definition{}, core.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) UpdateDefinition(_ context.Context, d core.Definition) (core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.defs[d.ID]
	if !ok {
		return core.Definition{}, core.ErrNotFound
	}
	if cur.Version != d.Version {
		return core.Definition{}, core.ErrVersionConflict
	}
	d.Version++
	d.CreatedAt = cur.CreatedAt
	f.defs[d.ID] = d
	return d, nil
}

func (f *fakeStore) DeleteDefinition(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.defs[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.defs, id)
	return nil
}

func (f *fakeStore) ListDefinitions(_ context.Context, owner string) ([]core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []core.Definition
	for _, d := range f.defs {
		if owner == "" || d.Owner == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListDue(_ context.Context, owner string, today core.Date) ([]core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []core.Definition
	for _, d := range f.defs {
		if owner != "" && d.Owner != owner {
			continue
		}
		if !d.IsActive || !d.AutoExecute {
			continue
		}
		if !d.EndDate.IsZero() && today.After(d.EndDate) {
			continue
		}
		if d.NextOccurrence.OnOrBefore(today) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListUpcoming(_ context.Context, owner string, until core.Date) ([]core.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []core.Definition
	for _, d := range f.defs {
		if owner != "" && d.Owner != owner {
			continue
		}
		if !d.IsActive {
			continue
		}
		if d.NextOccurrence.OnOrBefore(until) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextOccurrence.Before(out[j].NextOccurrence.Time)
	})
	return out, nil
}

func (f *fakeStore) ClaimExecution(_ context.Context, id, version int64) error {
	if f.claimHook != nil {
		f.claimHook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.defs[id]
	if !ok {
		return core.ErrNotFound
	}
	if d.Version != version {
		return core.ErrVersionConflict
	}
	d.Version++
	f.defs[id] = d
	return nil
}

func (f *fakeStore) AdvanceSchedule(_ context.Context, id int64, executed, next core.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.defs[id]
	if !ok {
		return core.ErrNotFound
	}
	d.LastExecutedDate = executed
	d.NextOccurrence = next
	f.defs[id] = d
	return nil
}

// fakeLedger records appended entries and can be told to fail.
type fakeLedger struct {
	mu      sync.Mutex
	nextID  int64
	entries []core.LedgerEntry
	failErr error
}

func (f *fakeLedger) Append(_ context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return core.LedgerEntry{}, f.failErr
	}
	f.nextID++
	e.ID = f.nextID
	e.Version = 1
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLedger) all() []core.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.LedgerEntry(nil), f.entries...)
}

// fakePublisher captures sync messages.
type fakePublisher struct {
	mu      sync.Mutex
	ids     []int64
	failErr error
}

func (f *fakePublisher) PublishLedgerSync(_ context.Context, id, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return f.failErr
	}
	f.ids = append(f.ids, id)
	return nil
}

// fixedNow returns a clock pinned to the given day.
func fixedNow(year, month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.Month(month), day, 10, 30, 0, 0, time.UTC)
	}
}
