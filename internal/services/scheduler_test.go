package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rata/internal/core"
)

func newSchedulerFixture(t *testing.T, now func() time.Time) (*fakeStore, *fakeLedger, *DefinitionService, *Scheduler) {
	t.Helper()
	store := newFakeStore()
	ledger := &fakeLedger{}
	svc := NewDefinitionService(store, now)
	exec := NewExecutor(store, ledger, now)
	sched := NewScheduler(store, exec, "marta", 24*time.Hour, now)
	return store, ledger, svc, sched
}

func TestScanMaterializesDueMonthlyDefinition(t *testing.T) {
	store, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 2, 15))

	d := validDefinition() // monthly, start 2024-01-15, 900.00
	d.Amount = core.Money{Cents: 50000}
	created, err := svc.Create(context.Background(), d)
	require.NoError(t, err)

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries := ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50000), entries[0].Amount.Cents)
	assert.Equal(t, "2024-02-15", entries[0].Date.String())

	got, err := store.GetDefinition(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", got.NextOccurrence.String())
}

func TestScanFiresAtMostOncePerDefinition(t *testing.T) {
	// Weekly definition left behind by three periods: a single scan
	// coalesces the missed occurrences into one entry dated today.
	store, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 1, 22))

	d := validDefinition()
	d.Name = "Groceries"
	d.Frequency = core.Weekly
	d.StartDate = core.NewDate(2024, 1, 1) // next occurrence 2024-01-08
	created, err := svc.Create(context.Background(), d)
	require.NoError(t, err)

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, ledger.all(), 1)

	got, err := store.GetDefinition(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-29", got.NextOccurrence.String())
	assert.Equal(t, "2024-01-22", got.LastExecutedDate.String())
}

func TestScanSkipsNotYetDue(t *testing.T) {
	_, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 2, 14))

	_, err := svc.Create(context.Background(), validDefinition()) // due 2024-02-15
	require.NoError(t, err)

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, ledger.all())
}

func TestScanSkipsInactiveAndManualDefinitions(t *testing.T) {
	_, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 3, 1))

	paused := validDefinition()
	paused.Name = "Paused"
	paused.IsActive = false

	manual := validDefinition()
	manual.Name = "Manual"
	manual.AutoExecute = false

	for _, d := range []core.Definition{paused, manual} {
		_, err := svc.Create(context.Background(), d)
		require.NoError(t, err)
	}

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, ledger.all())
}

func TestScanSkipsOccurrencePastEndDate(t *testing.T) {
	store, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 6, 10))

	d := validDefinition()
	d.EndDate = core.NewDate(2024, 6, 1)
	created, err := svc.Create(context.Background(), d)
	require.NoError(t, err)

	// Force the schedule past the end date: next 2024-06-02.
	require.NoError(t, store.AdvanceSchedule(context.Background(), created.ID,
		core.NewDate(2024, 5, 2), core.NewDate(2024, 6, 2)))

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, ledger.all())
}

func TestScanDoesNotReselectExpiredDefinition(t *testing.T) {
	// End date in the past but next occurrence still before the end:
	// such a definition must drop out of the due set entirely instead
	// of being selected and refused on every scan.
	store, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 6, 10))

	d := validDefinition()
	d.EndDate = core.NewDate(2024, 6, 1)
	created, err := svc.Create(context.Background(), d)
	require.NoError(t, err)

	require.NoError(t, store.AdvanceSchedule(context.Background(), created.ID,
		core.NewDate(2024, 4, 15), core.NewDate(2024, 5, 15)))

	for i := 0; i < 2; i++ {
		count, err := sched.Scan(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	}
	assert.Empty(t, ledger.all())

	got, err := store.GetDefinition(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Version, got.Version, "scan must not touch an expired definition")
}

func TestToggleOffThenOnKeepsDueness(t *testing.T) {
	_, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 2, 20))

	created, err := svc.Create(context.Background(), validDefinition()) // due 2024-02-15
	require.NoError(t, err)

	_, err = svc.ToggleActive(context.Background(), created.ID)
	require.NoError(t, err)

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	// Resume: the unchanged next occurrence makes it due immediately.
	_, err = svc.ToggleActive(context.Background(), created.ID)
	require.NoError(t, err)

	count, err = sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, ledger.all(), 1)
}

func TestScanContinuesPastFailedExecutions(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{failErr: errors.New("ledger unavailable")}
	now := fixedNow(2024, 3, 1)
	svc := NewDefinitionService(store, now)
	exec := NewExecutor(store, ledger, now)
	sched := NewScheduler(store, exec, "marta", 24*time.Hour, now)

	first := validDefinition()
	first.Name = "First"
	second := validDefinition()
	second.Name = "Second"

	for _, d := range []core.Definition{first, second} {
		_, err := svc.Create(context.Background(), d)
		require.NoError(t, err)
	}

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	// Collaborator back up: the same occurrences fire on the next pass.
	ledger.failErr = nil
	count, err = sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, ledger.all(), 2)
}

func TestScanHonorsOwnerScope(t *testing.T) {
	_, ledger, svc, sched := newSchedulerFixture(t, fixedNow(2024, 3, 1))

	other := validDefinition()
	other.Owner = "giulio"
	_, err := svc.Create(context.Background(), other)
	require.NoError(t, err)

	count, err := sched.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, ledger.all())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	_, _, _, sched := newSchedulerFixture(t, fixedNow(2024, 3, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
