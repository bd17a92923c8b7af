// Package sequence issues account identifiers of the form YYYYMMDD followed by
// an eight digit counter that restarts every UTC day.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DayLayout formats the date prefix of an identifier.
	DayLayout = "20060102"
	// DefaultCeiling is the largest counter value that fits in eight digits.
	DefaultCeiling int64 = 99_999_999
)

var (
	// ErrCapacityExceeded indicates the daily counter reached its ceiling.
	ErrCapacityExceeded = errors.New("daily account capacity exceeded")
	// ErrCounterStoreRequired indicates a missing counter store.
	ErrCounterStoreRequired = errors.New("counter store is required")
)

// CounterStore increments a persistent per-day counter.
//
// Increment returns the new value, or ErrCapacityExceeded without changing
// the counter when it already equals ceiling.
type CounterStore interface {
	Increment(ctx context.Context, day string, ceiling int64) (int64, error)
}

// Generator hands out unique account identifiers.
type Generator struct {
	Counter CounterStore
	Now     func() time.Time
	Ceiling int64

	mu   sync.Mutex
	days map[string]*sync.Mutex
}

// Next returns the next identifier for the current UTC day.
func (g *Generator) Next(ctx context.Context) (string, error) {
	if g.Counter == nil {
		return "", ErrCounterStoreRequired
	}
	now := g.Now
	if now == nil {
		now = time.Now
	}
	day := now().UTC().Format(DayLayout)
	ceiling := g.Ceiling
	if ceiling <= 0 || ceiling > DefaultCeiling {
		ceiling = DefaultCeiling
	}

	lock := g.dayLock(day)
	lock.Lock()
	defer lock.Unlock()

	count, err := g.Counter.Increment(ctx, day, ceiling)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			return "", err
		}
		return "", fmt.Errorf("increment counter for %s: %w", day, err)
	}
	if count > ceiling {
		return "", ErrCapacityExceeded
	}
	return Format(day, count), nil
}

// Format renders an identifier from a day prefix and a counter value.
func Format(day string, count int64) string {
	return fmt.Sprintf("%s%08d", day, count)
}

// dayLock returns the mutex for a day, dropping locks for other days so the
// map holds at most the current one.
func (g *Generator) dayLock(day string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	if lock, ok := g.days[day]; ok {
		return lock
	}
	g.days = map[string]*sync.Mutex{day: {}}
	return g.days[day]
}

// MemoryCounter is an in-process CounterStore.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

// Increment bumps the counter for day.
func (m *MemoryCounter) Increment(ctx context.Context, day string, ceiling int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	if m.counts[day] >= ceiling {
		return 0, ErrCapacityExceeded
	}
	m.counts[day]++
	return m.counts[day], nil
}

// Count returns the number of identifiers issued for day.
func (m *MemoryCounter) Count(day string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day]
}
