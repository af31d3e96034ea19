package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"
)

// DefaultRecentLimit caps the unfiltered list.
const DefaultRecentLimit = 20

// Repository is the persistence port used by ExpenseService.
type Repository interface {
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	List(ctx context.Context, r core.DateRange, limit int) ([]core.Expense, error)
	SumForDate(ctx context.Context, d core.Date) (core.Money, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// Options configures an ExpenseService. Zero values fall back to defaults.
type Options struct {
	Logger *log.Logger
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location    *time.Location
	Now         func() time.Time
	RecentLimit int
	// CacheSize <= 0 disables the read cache.
	CacheSize int
	CacheTTL  time.Duration
}

// ExpenseService records and queries expenses on top of a Repository.
type ExpenseService struct {
	repo        Repository
	logger      *log.Logger
	loc         *time.Location
	now         func() time.Time
	recentLimit int

	recent cache.Cache[[]core.Expense]
	totals cache.Cache[core.Money]
	// flight collapses concurrent cache misses for the same key into one query.
	// Keys carry the generation so a read started after a write never joins a
	// query that began before it.
	flight singleflight.Group

	// generation is bumped on every write; reads only populate the cache when it
	// has not moved since they started.
	mu         sync.Mutex
	generation uint64
}

const recentKey = "recent"

func NewExpenseService(repo Repository, opts Options) *ExpenseService {
	s := &ExpenseService{
		repo:        repo,
		logger:      opts.Logger,
		loc:         opts.Location,
		now:         opts.Now,
		recentLimit: opts.RecentLimit,
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	s.logger = s.logger.WithComponent(log.ComponentExpense)
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.recentLimit <= 0 {
		s.recentLimit = DefaultRecentLimit
	}
	if opts.CacheSize > 0 {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		s.recent = cache.NewLRUCache[[]core.Expense](1, ttl)
		s.totals = cache.NewLRUCache[core.Money](opts.CacheSize, ttl)
	}
	return s
}

// Caches exposes the service caches so their expiry can be scheduled.
func (s *ExpenseService) Caches() []cache.Cleaner {
	var out []cache.Cleaner
	if c, ok := s.recent.(cache.Cleaner); ok {
		out = append(out, c)
	}
	if c, ok := s.totals.(cache.Cleaner); ok {
		out = append(out, c)
	}
	return out
}

// Create validates in and persists a new expense.
func (s *ExpenseService) Create(ctx context.Context, in core.CreateExpenseInput) (core.Expense, error) {
	e, err := core.NewExpense(in)
	if err != nil {
		s.logger.DebugContext(ctx, "Expense rejected", log.FieldError, err, log.FieldOperation, log.OpValidate)
		return core.Expense{}, err
	}

	saved, err := s.repo.Insert(ctx, e)
	if err != nil {
		s.logger.LogError(ctx, "Failed to save expense", err, log.OpCreate,
			log.NewFields().WithExpense(0, e.Amount.Cents, e.Category, e.Date.String()).WithErrorType(log.ErrorTypeDatabase))
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate()

	s.logger.InfoContext(ctx, "Expense created",
		log.NewFields().WithExpense(saved.ID, saved.Amount.Cents, saved.Category, saved.Date.String()).WithOperation(log.OpCreate).ToSlice()...)
	return saved, nil
}

// List returns expenses in r, newest first. Without any bound only the most recent
// entries are returned; an explicit range is never truncated.
func (s *ExpenseService) List(ctx context.Context, r core.DateRange) ([]core.Expense, error) {
	if !r.IsZero() {
		return s.query(ctx, r, 0, log.OpList)
	}

	gen := s.currentGeneration()
	if s.recent != nil {
		if items, ok := s.recent.Get(recentKey); ok {
			return cloneExpenses(items), nil
		}
	}
	v, err, _ := s.flight.Do(flightKey(recentKey, gen), func() (any, error) {
		items, err := s.query(ctx, r, s.recentLimit, log.OpList)
		if err != nil {
			return nil, err
		}
		if s.recent != nil {
			s.fill(gen, func() { s.recent.Set(recentKey, items) })
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneExpenses(v.([]core.Expense)), nil
}

// Export returns every expense in r, newest first, with no cap.
func (s *ExpenseService) Export(ctx context.Context, r core.DateRange) ([]core.Expense, error) {
	return s.query(ctx, r, 0, log.OpExport)
}

// DailyTotal sums the expenses dated today in the service's location.
func (s *ExpenseService) DailyTotal(ctx context.Context) (core.DailyTotal, error) {
	return s.TotalFor(ctx, s.Today())
}

// Today returns the current calendar day in the service's location.
func (s *ExpenseService) Today() core.Date {
	return core.DateOf(s.now(), s.loc)
}

// TotalFor sums the expenses dated d.
func (s *ExpenseService) TotalFor(ctx context.Context, d core.Date) (core.DailyTotal, error) {
	gen := s.currentGeneration()
	if s.totals != nil {
		if total, ok := s.totals.Get(d.String()); ok {
			return core.DailyTotal{Date: d, Total: total}, nil
		}
	}

	v, err, _ := s.flight.Do(flightKey("total:"+d.String(), gen), func() (any, error) {
		total, err := s.repo.SumForDate(ctx, d)
		if err != nil {
			s.logger.LogError(ctx, "Failed to calculate daily total", err, log.OpTotal,
				log.NewFields().WithErrorType(log.ErrorTypeDatabase))
			return nil, fmt.Errorf("daily total: %w", err)
		}
		if s.totals != nil {
			s.fill(gen, func() { s.totals.Set(d.String(), total) })
		}
		return total, nil
	})
	if err != nil {
		return core.DailyTotal{}, err
	}
	return core.DailyTotal{Date: d, Total: v.(core.Money)}, nil
}

// Delete removes the expense with the given id, or returns core.ErrNotFound.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		s.logger.LogError(ctx, "Failed to delete expense", err, log.OpDelete,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		return fmt.Errorf("delete expense: %w", err)
	}
	s.invalidate()

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)
	return nil
}

// Close releases the underlying repository.
func (s *ExpenseService) Close() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}

func (s *ExpenseService) query(ctx context.Context, r core.DateRange, limit int, op string) ([]core.Expense, error) {
	items, err := s.repo.List(ctx, r, limit)
	if err != nil {
		s.logger.LogError(ctx, "Failed to query expenses", err, op,
			log.NewFields().WithRange(rangeBound(r.Start), rangeBound(r.End)).WithErrorType(log.ErrorTypeDatabase))
		return nil, fmt.Errorf("%s expenses: %w", op, err)
	}
	return items, nil
}

func (s *ExpenseService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *ExpenseService) fill(gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		set()
	}
}

func (s *ExpenseService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.recent != nil {
		s.recent.Purge()
	}
	if s.totals != nil {
		s.totals.Purge()
	}
}

func rangeBound(d *core.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

func cloneExpenses(items []core.Expense) []core.Expense {
	return append(make([]core.Expense, 0, len(items)), items...)
}
