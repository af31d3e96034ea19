package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the only accepted representation of an expense date.
const DateLayout = "2006-01-02"

// CreatedAtLayout is how creation timestamps are persisted and exported.
const CreatedAtLayout = "2006-01-02 15:04:05"

type (
	// Date is a calendar day in YYYY-MM-DD form. Values compare lexicographically.
	Date string

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          int64
		Amount      Money
		Category    string
		Date        Date
		Description string
		CreatedAt   time.Time
	}

	// DateRange is an inclusive, optionally open-ended filter on Expense.Date.
	DateRange struct {
		Start *Date
		End   *Date
	}

	// CreateExpenseInput carries the raw, not yet validated fields of a new expense.
	// Nil means the field was absent from the request.
	CreateExpenseInput struct {
		Amount      *string
		Category    *string
		Date        *string
		Description *string
	}
)

var (
	ErrMissing        = errors.New("is required")
	ErrInvalidAmount  = errors.New("must be a number greater than zero")
	ErrAmountTooLarge = errors.New("must not exceed 999999999999.99")
	ErrInvalidDate    = errors.New("must be a date in YYYY-MM-DD format")
)

// ParseDate validates s as a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", ErrInvalidDate
	}
	return Date(s), nil
}

// DateOf returns the calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date(t.In(loc).Format(DateLayout))
}

func (d Date) String() string {
	return string(d)
}

// NewDateRange builds a range from optional query values. Blank values are treated
// as absent.
func NewDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if s := strings.TrimSpace(start); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return DateRange{}, &ValidationError{Field: "startDate", Err: err}
		}
		r.Start = &d
	}
	if s := strings.TrimSpace(end); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return DateRange{}, &ValidationError{Field: "endDate", Err: err}
		}
		r.End = &d
	}
	return r, nil
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// NewExpense validates in and returns the expense to be stored. The first failing
// check wins: presence of amount, category and date, then the amount value, then the
// date format.
func NewExpense(in CreateExpenseInput) (Expense, error) {
	amount := trimmed(in.Amount)
	category := sanitize(trimmed(in.Category))
	date := trimmed(in.Date)

	if amount == "" {
		return Expense{}, &ValidationError{Field: "amount", Err: ErrMissing}
	}
	if category == "" {
		return Expense{}, &ValidationError{Field: "category", Err: ErrMissing}
	}
	if date == "" {
		return Expense{}, &ValidationError{Field: "date", Err: ErrMissing}
	}

	money, err := ParseAmount(amount)
	if err != nil {
		return Expense{}, &ValidationError{Field: "amount", Err: err}
	}
	d, err := ParseDate(date)
	if err != nil {
		return Expense{}, &ValidationError{Field: "date", Err: err}
	}

	return Expense{
		Amount:      money,
		Category:    category,
		Date:        d,
		Description: sanitize(trimmed(in.Description)),
	}, nil
}

// Validate checks an expense that did not come through NewExpense.
func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if strings.TrimSpace(e.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrMissing}
	}
	if _, err := ParseDate(string(e.Date)); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// sanitize folds CRLF and lone CR line breaks to LF and drops every other
// control character except tab.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' {
			return -1
		}
		return r
	}, s)
}
