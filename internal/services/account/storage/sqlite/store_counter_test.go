package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
)

func TestIncrementCountsPerDay(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "20250101", sequence.DefaultCeiling)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}
	got, err := store.Increment(ctx, "20250102", sequence.DefaultCeiling)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got != 1 {
		t.Fatalf("new day count = %d, want 1", got)
	}
}

func TestIncrementStopsAtCeiling(t *testing.T) {
	store := openTestEventsStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := store.Increment(ctx, "20250101", 2); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if _, err := store.Increment(ctx, "20250101", 2); !errors.Is(err, sequence.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want %v", err, sequence.ErrCapacityExceeded)
	}
	count, err := store.Count(ctx, "20250101")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestGeneratorOverSQLiteIsUnique(t *testing.T) {
	store := openTestEventsStore(t)
	g := &sequence.Generator{Counter: store}
	const workers = 20
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next(context.Background())
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != workers {
		t.Fatalf("ids = %d, want %d", len(seen), workers)
	}
}

func TestCountMissingDayIsZero(t *testing.T) {
	store := openTestEventsStore(t)
	count, err := store.Count(context.Background(), "19990101")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}
