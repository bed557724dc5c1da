// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence date arithmetic.
// Each frequency (daily, weekly, biweekly, monthly, quarterly, yearly) has
// its own advancer that encapsulates the logic for computing the next
// occurrence from an anchor date.

package services

import (
	"fmt"
	"time"

	"rata/internal/core"
)

// Advancer is the strategy interface for computing the next occurrence
// of a recurring definition. Implementations are pure: same anchor in,
// same date out, and the result is always strictly after the anchor.
type Advancer interface {
	// Next returns the first occurrence after anchor for this frequency.
	Next(anchor core.Date) core.Date
}

// DayAdvancer implements Advancer for fixed day-count frequencies
// (daily, weekly, biweekly).
type DayAdvancer struct {
	Days int
}

func (a DayAdvancer) Next(anchor core.Date) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, a.Days)}
}

// MonthAdvancer implements Advancer for month-multiple frequencies
// (monthly, quarterly, yearly). When the target month is shorter than
// the anchor's day-of-month, the result clamps to the target month's
// last day (Jan 31 -> Feb 28/29, Feb 29 -> Feb 28 in non-leap years).
type MonthAdvancer struct {
	Months int
}

func (a MonthAdvancer) Next(anchor core.Date) core.Date {
	y, m, day := anchor.Time.Date()
	first := time.Date(y, m+time.Month(a.Months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// advancers maps frequencies to their corresponding strategies.
var advancers = map[core.Frequency]Advancer{
	core.Daily:     DayAdvancer{Days: 1},
	core.Weekly:    DayAdvancer{Days: 7},
	core.Biweekly:  DayAdvancer{Days: 14},
	core.Monthly:   MonthAdvancer{Months: 1},
	core.Quarterly: MonthAdvancer{Months: 3},
	core.Yearly:    MonthAdvancer{Months: 12},
}

// GetAdvancer returns the advancer for a frequency.
// Returns an error if the frequency is not supported.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	adv, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return adv, nil
}

// NextDate computes the next occurrence after anchor for the given
// frequency. It is total over valid frequencies; the only error case is
// a frequency that never passed validation.
func NextDate(anchor core.Date, frequency core.Frequency) (core.Date, error) {
	adv, err := GetAdvancer(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return adv.Next(anchor), nil
}
