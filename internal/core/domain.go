package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

type (
	// Frequency is the cadence of a recurring definition.
	Frequency string

	// Kind distinguishes ledger directions.
	Kind string

	// Date is a calendar day; the time-of-day component is always UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Definition is a user-declared recurring income/expense template.
	// It is not itself a ledger entry; the executor materializes due
	// occurrences into LedgerEntry records.
	Definition struct {
		ID               int64
		Owner            string
		Kind             Kind
		Name             string
		Amount           Money
		Category         string
		Frequency        Frequency
		StartDate        Date
		EndDate          Date // zero means no end
		NextOccurrence   Date
		IsActive         bool
		AutoExecute      bool
		LastExecutedDate Date // zero before first execution
		Version          int64
		CreatedAt        time.Time
	}

	// LedgerEntry is one realized transaction appended by the executor.
	LedgerEntry struct {
		ID           int64
		Kind         Kind
		Amount       Money
		Category     string
		Description  string
		Date         Date
		DefinitionID int64 // originating definition
		Version      int64
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 200 characters)")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEndBeforeStart   = errors.New("end date must not be before start date")

	// ErrNotFound is returned when a definition id no longer exists.
	ErrNotFound = errors.New("definition not found")

	// ErrVersionConflict is returned when an optimistic claim loses
	// against a concurrent writer of the same definition.
	ErrVersionConflict = errors.New("definition version conflict")

	// ErrEnded is returned when execution is requested for a definition
	// whose end date has already passed.
	ErrEnded = errors.New("definition schedule has ended")
)

// IsValidation reports whether err stems from malformed or missing fields
// rather than from a collaborator failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrNameTooLong) ||
		errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrEndBeforeStart)
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty reports whether the date is unset (for optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or empty for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// OnOrBefore reports whether d falls on the same or an earlier calendar day.
func (d Date) OnOrBefore(other Date) bool {
	return !d.Time.After(other.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate enforces the creation/update invariants of a definition.
func (d Definition) Validate() error {
	if err := d.Kind.Validate(); err != nil {
		return err
	}

	if len(strings.TrimSpace(d.Name)) == 0 {
		return ErrEmptyName
	}
	if len(d.Name) > 200 {
		return ErrNameTooLong
	}

	if err := d.Amount.Validate(); err != nil {
		return err
	}

	if err := d.Frequency.Validate(); err != nil {
		return err
	}

	if err := d.StartDate.Validate(); err != nil {
		return err
	}

	if !d.EndDate.IsZero() && d.EndDate.Time.Before(d.StartDate.Time) {
		return ErrEndBeforeStart
	}

	return nil
}
