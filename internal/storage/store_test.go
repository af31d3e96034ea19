package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gastos/internal/core"
)

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "expenses.db")
	s, err := Open(context.Background(), dbPath, WithClock(stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, cents int64, category string, date core.Date, desc string) core.Expense {
	t.Helper()
	e, err := s.Insert(context.Background(), core.Expense{
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Date:        date,
		Description: desc,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return e
}

func dateRange(t *testing.T, start, end string) core.DateRange {
	t.Helper()
	r, err := core.NewDateRange(start, end)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	return r
}

func ids(expenses []core.Expense) []int64 {
	out := make([]int64, len(expenses))
	for i, e := range expenses {
		out[i] = e.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := mustInsert(t, s, 5050, "Transporte", "2024-03-01", "")
	if e.ID != 1 {
		t.Fatalf("first id = %d, want 1", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 5050 || got.Category != "Transporte" || got.Date != "2024-03-01" || got.Description != "" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, e.CreatedAt)
	}

	if _, err := s.Get(ctx, 99); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilterComposition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	feb := mustInsert(t, s, 100, "A", "2024-02-28", "")
	mar1 := mustInsert(t, s, 200, "B", "2024-03-01", "")
	mar15 := mustInsert(t, s, 300, "C", "2024-03-15", "")
	apr := mustInsert(t, s, 400, "D", "2024-04-01", "")

	tests := []struct {
		name       string
		start, end string
		want       []int64
	}{
		{"both bounds inclusive", "2024-03-01", "2024-03-15", []int64{mar15.ID, mar1.ID}},
		{"single day", "2024-03-01", "2024-03-01", []int64{mar1.ID}},
		{"start only", "2024-03-15", "", []int64{apr.ID, mar15.ID}},
		{"end only", "", "2024-03-01", []int64{mar1.ID, feb.ID}},
		{"no filter", "", "", []int64{apr.ID, mar15.ID, mar1.ID, feb.ID}},
		{"nothing matches", "2025-01-01", "2025-12-31", []int64{}},
		{"inverted range", "2024-04-01", "2024-02-01", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, dateRange(t, tt.start, tt.end), 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got == nil {
				t.Fatal("list must return an empty slice, not nil")
			}
			if !equalIDs(ids(got), tt.want) {
				t.Fatalf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestListOrderingAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := mustInsert(t, s, 100, "A", "2024-03-01", "")
	older := mustInsert(t, s, 100, "A", "2024-02-01", "")
	second := mustInsert(t, s, 100, "A", "2024-03-01", "")
	newer := mustInsert(t, s, 100, "A", "2024-03-02", "")

	got, err := s.List(ctx, core.DateRange{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{newer.ID, second.ID, first.ID, older.ID}
	if !equalIDs(ids(got), want) {
		t.Fatalf("order = %v, want %v", ids(got), want)
	}

	got, err = s.List(ctx, core.DateRange{}, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equalIDs(ids(got), want[:2]) {
		t.Fatalf("limited = %v, want %v", ids(got), want[:2])
	}
}

func TestListSameSecondFallsBackToID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "expenses.db")
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := Open(context.Background(), dbPath, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	a := mustInsert(t, s, 100, "A", "2024-03-01", "")
	b := mustInsert(t, s, 100, "A", "2024-03-01", "")
	got, err := s.List(context.Background(), core.DateRange{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equalIDs(ids(got), []int64{b.ID, a.ID}) {
		t.Fatalf("order = %v", ids(got))
	}
}

func TestSumForDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, 10, "A", "2024-03-01", "")
	mustInsert(t, s, 20, "A", "2024-03-01", "")
	mustInsert(t, s, 5050, "A", "2024-03-01", "")
	mustInsert(t, s, 999, "A", "2024-03-02", "")

	total, err := s.SumForDate(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total.Cents != 5080 {
		t.Fatalf("total = %d, want 5080", total.Cents)
	}

	total, err = s.SumForDate(ctx, "2030-01-01")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total.Cents != 0 {
		t.Fatalf("empty day total = %d, want 0", total.Cents)
	}
}

func TestDeleteAndIDMonotonicity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := mustInsert(t, s, 100, "A", "2024-03-01", "")
	b := mustInsert(t, s, 100, "A", "2024-03-01", "")

	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, 12345); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := mustInsert(t, s, 100, "A", "2024-03-01", "")
	if c.ID <= b.ID {
		t.Fatalf("id reused: got %d after deleting %d", c.ID, b.ID)
	}

	got, err := s.List(ctx, core.DateRange{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equalIDs(ids(got), []int64{c.ID, a.ID}) {
		t.Fatalf("ids after delete = %v", ids(got))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "expenses.db")
	ctx := context.Background()

	s, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustInsert(t, s, 100, "A", "2024-03-01", "kept")
	s.Close()

	s, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()
	got, err := s.List(ctx, core.DateRange{}, 0)
	if err != nil || len(got) != 1 || got[0].Description != "kept" {
		t.Fatalf("data lost across reopen: %+v err=%v", got, err)
	}
}

func TestOpenUpgradesLegacyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	stmts := []string{
		`CREATE TABLE expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			amount REAL NOT NULL,
			category TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`INSERT INTO expenses (amount, category, date, created_at) VALUES (12.5, 'Mercado', '2024-01-10', '2024-01-10 08:00:00')`,
		`INSERT INTO expenses (amount, category, date, created_at) VALUES (3, 'Lazer', '2024-01-11', '2024-01-11 08:00:00')`,
	}
	for _, stmt := range stmts {
		if _, err := legacy.Exec(stmt); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}
	legacy.Close()

	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open legacy store: %v", err)
	}
	defer s.Close()

	got, err := s.List(context.Background(), core.DateRange{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[1].Amount.Cents != 1250 || got[1].Category != "Mercado" || got[1].Description != "" {
		t.Fatalf("legacy row not preserved: %+v", got[1])
	}
	if got[1].CreatedAt != time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC) {
		t.Fatalf("legacy created_at = %v", got[1].CreatedAt)
	}

	var nulls int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM expenses WHERE description IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 0 {
		t.Fatalf("descriptions not backfilled: %d NULL rows", nulls)
	}

	next := mustInsert(t, s, 100, "A", "2024-03-01", "new")
	if next.ID != 3 {
		t.Fatalf("id after legacy rows = %d, want 3", next.ID)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInsertRejectsInvalidExpense(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Insert(context.Background(), core.Expense{Amount: core.Money{Cents: 0}, Category: "A", Date: "2024-03-01"})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := s.List(context.Background(), core.DateRange{}, 0)
	if len(got) != 0 {
		t.Fatalf("invalid expense stored: %+v", got)
	}
}

func TestCountFollowsRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, 100, "A", "2024-02-28", "")
	mustInsert(t, s, 100, "A", "2024-03-01", "")
	mustInsert(t, s, 100, "A", "2024-03-15", "")

	tests := []struct {
		start, end string
		want       int
	}{
		{"", "", 3},
		{"2024-03-01", "", 2},
		{"", "2024-03-01", 2},
		{"2024-03-01", "2024-03-01", 1},
		{"2025-01-01", "", 0},
	}
	for _, tt := range tests {
		got, err := s.Count(ctx, dateRange(t, tt.start, tt.end))
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if got != tt.want {
			t.Errorf("Count(%q, %q) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}
