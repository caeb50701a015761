package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestLimiterSpacing(t *testing.T) {
	t.Parallel()

	t.Run("same host fetches are spaced by the delay", func(t *testing.T) {
		t.Parallel()

		const delay = 40 * time.Millisecond
		l := New(delay)

		var mu sync.Mutex
		var starts []time.Time
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := l.WaitIfNeeded(context.Background(), "site.test"); err != nil {
					t.Errorf("WaitIfNeeded() error = %v", err)
					return
				}
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
			}()
		}
		wg.Wait()

		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
		for i := 1; i < len(starts); i++ {
			// Allow a little scheduler slack between the release and the append.
			if gap := starts[i].Sub(starts[i-1]); gap < delay-10*time.Millisecond {
				t.Errorf("gap %d = %v, want >= %v", i, gap, delay)
			}
		}
	})

	t.Run("distinct hosts do not block each other", func(t *testing.T) {
		t.Parallel()

		l := New(time.Second)
		ctx := context.Background()
		if err := l.WaitIfNeeded(ctx, "a.test"); err != nil {
			t.Fatal(err)
		}

		start := time.Now()
		if err := l.WaitIfNeeded(ctx, "b.test"); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
			t.Errorf("other host waited %v", elapsed)
		}
		if l.Hosts() != 2 {
			t.Errorf("Hosts() = %d, want 2", l.Hosts())
		}
	})

	t.Run("first fetch to a host does not wait", func(t *testing.T) {
		t.Parallel()

		l := New(time.Hour)
		start := time.Now()
		if err := l.WaitIfNeeded(context.Background(), "site.test"); err != nil {
			t.Fatal(err)
		}
		if time.Since(start) > 100*time.Millisecond {
			t.Error("first fetch waited")
		}
	})

	t.Run("host names are case-insensitive", func(t *testing.T) {
		t.Parallel()

		l := New(time.Hour)
		_ = l.WaitIfNeeded(context.Background(), "Site.Test")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := l.WaitIfNeeded(ctx, "site.test"); err == nil {
			t.Error("expected wait on same host with different case")
		}
	})
}

func TestLimiterCancellation(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	l := New(time.Hour)
	l.now = func() time.Time { return now }

	if err := l.WaitIfNeeded(context.Background(), "site.test"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.WaitIfNeeded(ctx, "site.test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitIfNeeded() error = %v, want context.Canceled", err)
	}

	st := l.state("site.test")
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.last.Equal(now) {
		t.Errorf("last = %v, want unchanged %v", st.last, now)
	}
}

func TestLimiterZeroDelay(t *testing.T) {
	t.Parallel()

	l := New(0)
	start := time.Now()
	for range 100 {
		if err := l.WaitIfNeeded(context.Background(), "site.test"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("zero delay limiter slept")
	}
}

func TestLimiterWindow(t *testing.T) {
	t.Parallel()

	l := New(0, WithWindow(Window{Requests: 2, Window: 200 * time.Millisecond}))
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := l.WaitIfNeeded(ctx, "site.test"); err != nil {
			t.Fatal(err)
		}
	}
	// Burst of 2, then one token every 100ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("third request after %v, want token bucket wait", elapsed)
	}
}
