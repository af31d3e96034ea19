package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

const expenseColumns = `id, amount, category, date, COALESCE(description, ''), COALESCE(CAST(created_at AS TEXT), '')`

// Store persists expenses in a single SQLite database handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates the database file if needed, applies migrations and the legacy
// schema check, and only then returns a Store ready to serve requests.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serialises every statement issued through this handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureDescriptionColumn(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate description column: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	slog.InfoContext(ctx, "SQLite store ready", "db_path", dbPath)
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores e and returns it with the assigned ID and creation time.
func (s *Store) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	createdAt := s.now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (amount, category, date, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Amount.Float(), e.Category, string(e.Date), e.Description, createdAt.Format(core.CreatedAtLayout))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read inserted id: %w", err)
	}

	e.ID = id
	e.CreatedAt = createdAt
	return e, nil
}

// List returns expenses matching r, newest first. limit <= 0 means unbounded.
func (s *Store) List(ctx context.Context, r core.DateRange, limit int) ([]core.Expense, error) {
	where, args := rangeClause(r)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		` ORDER BY date DESC, created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Count returns how many expenses fall inside r.
func (s *Store) Count(ctx context.Context, r core.DateRange) (int, error) {
	where, args := rangeClause(r)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// Get returns a single expense or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

// SumForDate adds up the amounts recorded on day d. Amounts are summed in cents.
func (s *Store) SumForDate(ctx context.Context, d core.Date) (core.Money, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CAST(ROUND(amount * 100) AS INTEGER)), 0) FROM expenses WHERE date = ?`,
		string(d)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses for %s: %w", d, err)
	}
	return core.Money{Cents: cents}, nil
}

// Delete removes the expense with the given id. It returns core.ErrNotFound when
// no row matched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// rangeClause composes the WHERE clause for an inclusive date range.
func rangeClause(r core.DateRange) (string, []any) {
	switch {
	case r.Start != nil && r.End != nil:
		return ` WHERE date >= ? AND date <= ?`, []any{string(*r.Start), string(*r.End)}
	case r.Start != nil:
		return ` WHERE date >= ?`, []any{string(*r.Start)}
	case r.End != nil:
		return ` WHERE date <= ?`, []any{string(*r.End)}
	default:
		return "", nil
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc scanner) (core.Expense, error) {
	var (
		e         core.Expense
		amount    float64
		date      string
		createdAt string
	)
	if err := sc.Scan(&e.ID, &amount, &e.Category, &date, &e.Description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Amount = core.MoneyFromFloat(amount)
	e.Date = core.Date(date)
	e.CreatedAt = parseCreatedAt(createdAt)
	return e, nil
}

// parseCreatedAt accepts SQLite's CURRENT_TIMESTAMP format as well as RFC 3339,
// which older rows may carry.
func parseCreatedAt(s string) time.Time {
	for _, layout := range []string{core.CreatedAtLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
