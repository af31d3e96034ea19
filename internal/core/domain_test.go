package core

import (
	"errors"
	"testing"
	"time"
)

func ptr(s string) *string { return &s }

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-01", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-3-1", false},
		{"01/03/2024", false},
		{"2024-03-01T10:00:00Z", false},
		{"", false},
	}
	for i, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%q) expected error", i, tc.in)
		}
	}
}

func TestDateOf(t *testing.T) {
	instant := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	if got := DateOf(instant, nil); got != "2024-03-01" {
		t.Fatalf("UTC date = %s", got)
	}
	tokyo := time.FixedZone("JST", 9*3600)
	if got := DateOf(instant, tokyo); got != "2024-03-02" {
		t.Fatalf("JST date = %s", got)
	}
}

func TestNewExpense(t *testing.T) {
	good, err := NewExpense(CreateExpenseInput{
		Amount:   ptr("50.5"),
		Category: ptr("Transporte"),
		Date:     ptr("2024-03-01"),
	})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if good.Amount.Cents != 5050 || good.Category != "Transporte" || good.Date != "2024-03-01" || good.Description != "" {
		t.Fatalf("unexpected expense: %+v", good)
	}

	bads := []struct {
		name  string
		in    CreateExpenseInput
		field string
	}{
		{"missing everything", CreateExpenseInput{}, "amount"},
		{"blank amount", CreateExpenseInput{Amount: ptr(" "), Category: ptr("X"), Date: ptr("2024-03-01")}, "amount"},
		{"missing category", CreateExpenseInput{Amount: ptr("1"), Date: ptr("2024-03-01")}, "category"},
		{"missing date", CreateExpenseInput{Amount: ptr("1"), Category: ptr("X")}, "date"},
		{"presence before amount value", CreateExpenseInput{Amount: ptr("abc"), Category: ptr("X")}, "date"},
		{"negative amount", CreateExpenseInput{Amount: ptr("-5"), Category: ptr("X"), Date: ptr("2024-03-01")}, "amount"},
		{"zero amount", CreateExpenseInput{Amount: ptr("0"), Category: ptr("X"), Date: ptr("2024-03-01")}, "amount"},
		{"non-numeric amount", CreateExpenseInput{Amount: ptr("ten"), Category: ptr("X"), Date: ptr("2024-03-01")}, "amount"},
		{"malformed date", CreateExpenseInput{Amount: ptr("1"), Category: ptr("X"), Date: ptr("March 1")}, "date"},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewExpense(tc.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestNewDateRange(t *testing.T) {
	r, err := NewDateRange("", " ")
	if err != nil || !r.IsZero() {
		t.Fatalf("expected zero range, got %+v err=%v", r, err)
	}

	r, err = NewDateRange("2024-03-01", "")
	if err != nil || r.Start == nil || r.End != nil {
		t.Fatalf("expected start-only range, got %+v err=%v", r, err)
	}

	_, err = NewDateRange("2024-03-01", "tomorrow")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "endDate" {
		t.Fatalf("expected endDate validation error, got %v", err)
	}
}

func TestNewExpenseFoldsLineBreaks(t *testing.T) {
	e, err := NewExpense(CreateExpenseInput{
		Amount:      ptr("1"),
		Category:    ptr("Casa\rJardim"),
		Date:        ptr("2024-03-01"),
		Description: ptr("linha1\r\nlinha2\rlinha3\x00\tfim"),
	})
	if err != nil {
		t.Fatalf("new expense: %v", err)
	}
	if e.Description != "linha1\nlinha2\nlinha3\tfim" {
		t.Fatalf("description = %q", e.Description)
	}
	if e.Category != "Casa\nJardim" {
		t.Fatalf("category = %q", e.Category)
	}
}

func TestIsValidation(t *testing.T) {
	err := &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	if !IsValidation(err) || !errors.Is(err, ErrInvalidAmount) {
		t.Fatal("ValidationError should unwrap to its cause")
	}
	if IsValidation(ErrNotFound) {
		t.Fatal("ErrNotFound is not a validation error")
	}
	if err.Error() != "amount must be a number greater than zero" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
