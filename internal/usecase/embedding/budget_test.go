package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/domain"
)

type memBudgetStore struct {
	mu       sync.Mutex
	counters map[string]int64
	getErr   error
}

func newMemBudgetStore() *memBudgetStore {
	return &memBudgetStore{counters: make(map[string]int64)}
}

func (m *memBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += val
	return nil
}

func (m *memBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.counters[key], nil
}

func newTracker(daily, monthly int64, action BudgetAction) *BudgetTracker {
	return NewBudgetTracker("test", "coursedex:", daily, monthly, action, zap.NewNop())
}

func TestCheck_WithinBudget(t *testing.T) {
	b := newTracker(100, 1000, BudgetActionReject)
	b.Record(50)
	if err := b.Check(context.Background()); err != nil {
		t.Errorf("Check under budget: %v", err)
	}
}

func TestCheck_RejectsWhenDailyExceeded(t *testing.T) {
	b := newTracker(100, 0, BudgetActionReject)
	b.Record(100)
	if err := b.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestCheck_RejectsWhenMonthlyExceeded(t *testing.T) {
	b := newTracker(0, 200, BudgetActionReject)
	b.Record(250)
	if err := b.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestCheck_WarnAllowsThrough(t *testing.T) {
	b := newTracker(100, 0, BudgetActionWarn)
	b.Record(500)
	if err := b.Check(context.Background()); err != nil {
		t.Errorf("warn action must allow the request, got %v", err)
	}
}

func TestCheck_ZeroLimitsAreUnlimited(t *testing.T) {
	b := newTracker(0, 0, BudgetActionReject)
	b.Record(1 << 40)
	if err := b.Check(context.Background()); err != nil {
		t.Errorf("unlimited budget rejected: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	b := newTracker(100, 0, BudgetActionReject)

	if got := b.RemainingDaily(); got != 100 {
		t.Errorf("RemainingDaily = %d, want 100", got)
	}
	if got := b.RemainingMonthly(); got != -1 {
		t.Errorf("RemainingMonthly = %d, want -1 (unlimited)", got)
	}

	b.Record(30)
	if got := b.RemainingDaily(); got != 70 {
		t.Errorf("RemainingDaily = %d, want 70", got)
	}

	b.Record(100)
	if got := b.RemainingDaily(); got != 0 {
		t.Errorf("overspent budget must clamp to 0, got %d", got)
	}
}

func TestRecord_PersistsToStore(t *testing.T) {
	store := newMemBudgetStore()
	b := newTracker(0, 0, BudgetActionWarn).WithStore(context.Background(), store)

	b.Record(40)
	b.Record(2)

	now := time.Now().UTC()
	if got := store.counters[b.dailyKey(now)]; got != 42 {
		t.Errorf("daily counter = %d, want 42", got)
	}
	if got := store.counters[b.monthlyKey(now)]; got != 42 {
		t.Errorf("monthly counter = %d, want 42", got)
	}
}

func TestWithStore_LoadsExistingCounters(t *testing.T) {
	store := newMemBudgetStore()
	now := time.Now().UTC()

	seed := newTracker(100, 1000, BudgetActionReject)
	store.counters[seed.dailyKey(now)] = 80
	store.counters[seed.monthlyKey(now)] = 300

	b := newTracker(100, 1000, BudgetActionReject).WithStore(context.Background(), store)
	if got := b.RemainingDaily(); got != 20 {
		t.Errorf("RemainingDaily after load = %d, want 20", got)
	}
	if got := b.RemainingMonthly(); got != 700 {
		t.Errorf("RemainingMonthly after load = %d, want 700", got)
	}
}

func TestWithStore_SurvivesLoadFailure(t *testing.T) {
	store := newMemBudgetStore()
	store.getErr = errors.New("db down")

	b := newTracker(100, 0, BudgetActionReject).WithStore(context.Background(), store)
	if err := b.Check(context.Background()); err != nil {
		t.Errorf("tracker should start at zero when load fails: %v", err)
	}
}

func TestResetIfNeeded_DayRollover(t *testing.T) {
	b := newTracker(100, 1000, BudgetActionReject)
	b.Record(100)

	// Pretend the last reset happened yesterday.
	b.mu.Lock()
	b.lastDayReset = b.lastDayReset.AddDate(0, 0, -1)
	b.mu.Unlock()

	if err := b.Check(context.Background()); err != nil {
		t.Errorf("daily counter should reset on rollover: %v", err)
	}
	if got := b.RemainingDaily(); got != 100 {
		t.Errorf("RemainingDaily after rollover = %d, want 100", got)
	}
	// Monthly usage is untouched by a day rollover.
	if got := b.RemainingMonthly(); got != 900 {
		t.Errorf("RemainingMonthly = %d, want 900", got)
	}
}

func TestResetIfNeeded_MonthRollover(t *testing.T) {
	b := newTracker(0, 1000, BudgetActionReject)
	b.Record(1000)

	b.mu.Lock()
	b.lastMonthReset = b.lastMonthReset.AddDate(0, -1, 0)
	b.mu.Unlock()

	if err := b.Check(context.Background()); err != nil {
		t.Errorf("monthly counter should reset on rollover: %v", err)
	}
}

func TestBudgetKeys(t *testing.T) {
	b := newTracker(0, 0, BudgetActionWarn)
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	if got := b.dailyKey(at); got != "coursedex:budget:test:daily:2026-08-29" {
		t.Errorf("dailyKey = %q", got)
	}
	if got := b.monthlyKey(at); got != "coursedex:budget:test:monthly:2026-08" {
		t.Errorf("monthlyKey = %q", got)
	}
}
