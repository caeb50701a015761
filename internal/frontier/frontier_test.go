package frontier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases scheme and host", in: "HTTPS://Site.TEST/Path", want: "https://site.test/Path"},
		{name: "strips fragment", in: "https://site.test/a#section", want: "https://site.test/a"},
		{name: "empty path becomes slash", in: "https://site.test", want: "https://site.test/"},
		{name: "drops default https port", in: "https://site.test:443/a", want: "https://site.test/a"},
		{name: "drops default http port", in: "http://site.test:80/a", want: "http://site.test/a"},
		{name: "keeps non-default port", in: "http://site.test:8080/a", want: "http://site.test:8080/a"},
		{name: "resolves dot segments", in: "https://site.test/a/./b/../c", want: "https://site.test/a/c"},
		{name: "keeps trailing slash", in: "https://site.test/a/b/", want: "https://site.test/a/b/"},
		{name: "keeps query", in: "https://site.test/a?x=1&y=2", want: "https://site.test/a?x=1&y=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("rejects unsupported scheme", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"mailto:a@site.test", "javascript:void(0)", "ftp://site.test/", "/relative"} {
			if _, err := Normalize(in); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Normalize(%q) error = %v, want ErrInvalidURL", in, err)
			}
		}
	})

	t.Run("equivalent forms normalize equal", func(t *testing.T) {
		t.Parallel()

		a, _ := Normalize("HTTP://SITE.test:80")
		b, _ := Normalize("http://site.test/#top")
		if a != b {
			t.Errorf("Normalize mismatch: %q vs %q", a, b)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, _ := Normalize("https://site.test/dir/page.html")
	baseURL := mustParse(t, base)

	tests := []struct {
		ref  string
		want string
	}{
		{"other.html", "https://site.test/dir/other.html"},
		{"../up.html", "https://site.test/up.html"},
		{"/abs", "https://site.test/abs"},
		{"//cdn.test/x", "https://cdn.test/x"},
		{"#frag", "https://site.test/dir/page.html"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(baseURL, tt.ref)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestFrontierEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicates of queued urls", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		if !f.Enqueue("https://site.test/", 0) {
			t.Fatal("first Enqueue() = false")
		}
		if f.Enqueue("https://site.test/", 1) {
			t.Error("duplicate Enqueue() = true")
		}
		if f.Size() != 1 {
			t.Errorf("Size() = %d, want 1", f.Size())
		}
	})

	t.Run("rejects visited urls", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		f.Enqueue("https://site.test/", 0)
		if _, ok := f.Dequeue(context.Background()); !ok {
			t.Fatal("Dequeue() = false")
		}
		if f.Enqueue("https://site.test/", 1) {
			t.Error("Enqueue() of visited url = true")
		}
	})

	t.Run("respects depth bound", func(t *testing.T) {
		t.Parallel()

		f := New(1, 0)
		if !f.Enqueue("https://site.test/b", 1) {
			t.Error("Enqueue() at max depth = false")
		}
		if f.Enqueue("https://site.test/d", 2) {
			t.Error("Enqueue() beyond max depth = true")
		}
		if !f.Discover("https://site.test/e") {
			t.Error("Discover() of new url = false")
		}
		if f.Discover("https://site.test/d") {
			t.Error("too-deep url should still be recorded as discovered")
		}
	})

	t.Run("keeps accepting after close", func(t *testing.T) {
		t.Parallel()

		f := New(1, 0)
		f.Close()
		if !f.Enqueue("https://site.test/", 0) {
			t.Error("Enqueue() after Close() = false")
		}
		if _, ok := f.Dequeue(context.Background()); ok {
			t.Error("Dequeue() after Close() = true")
		}
		if f.Size() != 1 {
			t.Errorf("Size() = %d, want 1", f.Size())
		}
	})
}

func TestFrontierConcurrentDedup(t *testing.T) {
	t.Parallel()

	f := New(5, 0)
	var inserted atomic.Int64
	var wg sync.WaitGroup
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				if f.Enqueue(fmt.Sprintf("https://site.test/%d", (i+w)%50), 1) {
					inserted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := inserted.Load(); got != 50 {
		t.Errorf("inserted = %d, want 50", got)
	}

	seen := make(map[string]bool)
	for {
		e, ok := f.Dequeue(context.Background())
		if !ok {
			break
		}
		if seen[e.URL] {
			t.Fatalf("url %q dequeued twice", e.URL)
		}
		seen[e.URL] = true
		f.Done(e.URL, false)
	}
	if len(seen) != 50 {
		t.Errorf("dequeued %d urls, want 50", len(seen))
	}
}

func TestFrontierDequeue(t *testing.T) {
	t.Parallel()

	t.Run("returns false when empty and idle", func(t *testing.T) {
		t.Parallel()

		f := New(1, 0)
		if _, ok := f.Dequeue(context.Background()); ok {
			t.Error("Dequeue() on empty frontier = true")
		}
	})

	t.Run("waits for in-flight work to produce links", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		f.Enqueue("https://site.test/", 0)
		if _, ok := f.Dequeue(context.Background()); !ok {
			t.Fatal("Dequeue() = false")
		}

		got := make(chan model.FrontierEntry, 1)
		go func() {
			e, ok := f.Dequeue(context.Background())
			if ok {
				got <- e
			}
			close(got)
		}()

		time.Sleep(20 * time.Millisecond)
		f.Enqueue("https://site.test/child", 1)
		f.Done("https://site.test/", true)

		select {
		case e, ok := <-got:
			if !ok || e.URL != "https://site.test/child" {
				t.Errorf("Dequeue() = %+v, %v; want child entry", e, ok)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Dequeue() did not wake up")
		}
	})

	t.Run("terminates waiters when last in-flight entry finishes", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		f.Enqueue("https://site.test/", 0)
		f.Dequeue(context.Background())

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Dequeue(context.Background())
			done <- ok
		}()

		time.Sleep(20 * time.Millisecond)
		f.Done("https://site.test/", false)

		select {
		case ok := <-done:
			if ok {
				t.Error("Dequeue() = true, want termination")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter was not released")
		}
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		f.Enqueue("https://site.test/", 0)
		f.Dequeue(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan bool, 1)
		go func() {
			_, ok := f.Dequeue(ctx)
			done <- ok
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case ok := <-done:
			if ok {
				t.Error("Dequeue() = true after cancel")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("cancel did not wake Dequeue()")
		}
	})

	t.Run("close wakes waiters", func(t *testing.T) {
		t.Parallel()

		f := New(2, 0)
		f.Enqueue("https://site.test/", 0)
		f.Dequeue(context.Background())

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Dequeue(context.Background())
			done <- ok
		}()
		time.Sleep(20 * time.Millisecond)
		f.Close()

		select {
		case ok := <-done:
			if ok {
				t.Error("Dequeue() = true after Close()")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Close() did not wake Dequeue()")
		}
	})
}

func TestFrontierPageBudget(t *testing.T) {
	t.Parallel()

	t.Run("accepted pages never exceed budget under concurrency", func(t *testing.T) {
		t.Parallel()

		const maxPages = 7
		f := New(3, maxPages)
		for i := range 40 {
			f.Enqueue(fmt.Sprintf("https://site.test/%d", i), 1)
		}

		var accepted atomic.Int64
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					e, ok := f.Dequeue(context.Background())
					if !ok {
						return
					}
					time.Sleep(time.Millisecond)
					accepted.Add(1)
					f.Done(e.URL, true)
				}
			}()
		}
		wg.Wait()

		if got := accepted.Load(); got != maxPages {
			t.Errorf("accepted = %d, want %d", got, maxPages)
		}
		if !f.BudgetReached() {
			t.Error("BudgetReached() = false")
		}
		if f.Size() == 0 {
			t.Error("remaining siblings should stay queued")
		}
	})

	t.Run("rejected pages release their budget slot", func(t *testing.T) {
		t.Parallel()

		f := New(1, 1)
		f.Enqueue("https://site.test/a", 1)
		f.Enqueue("https://site.test/b", 1)

		first, ok := f.Dequeue(context.Background())
		if !ok {
			t.Fatal("first Dequeue() = false")
		}
		f.Done(first.URL, false)
		second, ok := f.Dequeue(context.Background())
		if !ok {
			t.Fatal("second Dequeue() = false after rejected page")
		}
		f.Done(second.URL, true)
		if f.Enqueue("https://site.test/c", 1) {
			t.Error("Enqueue() accepted after budget reached")
		}
	})
}

func TestFrontierRequeue(t *testing.T) {
	t.Parallel()

	f := New(2, 0)
	f.Enqueue("https://site.test/a", 0)
	f.Enqueue("https://site.test/b", 0)
	e, _ := f.Dequeue(context.Background())

	f.Requeue(e)
	if f.IsVisited(e.URL) {
		t.Error("requeued entry still visited")
	}
	if f.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", f.InFlight())
	}

	next, _ := f.Dequeue(context.Background())
	if next.URL != e.URL {
		t.Errorf("Dequeue() after Requeue() = %q, want %q", next.URL, e.URL)
	}
}

func TestFrontierSnapshotRestore(t *testing.T) {
	t.Parallel()

	f := New(2, 0)
	f.Enqueue("https://site.test/", 0)
	f.Dequeue(context.Background())
	f.Enqueue("https://site.test/a", 1)
	f.Enqueue("https://site.test/b", 1)
	f.Discover("https://site.test/private/x")
	f.Done("https://site.test/", true)

	st := f.Snapshot()
	if len(st.Visited) != 1 || len(st.Pending) != 2 || len(st.Discovered) != 1 || st.Accepted != 1 {
		t.Fatalf("Snapshot() = %+v", st)
	}

	g := New(2, 0)
	g.Restore(st)
	if g.Size() != 2 {
		t.Errorf("Size() after Restore() = %d, want 2", g.Size())
	}
	if !g.IsVisited("https://site.test/") {
		t.Error("visited set not restored")
	}
	if g.Enqueue("https://site.test/", 1) {
		t.Error("Enqueue() of restored visited url = true")
	}
	if g.Discover("https://site.test/private/x") {
		t.Error("discovered set not restored")
	}
	if g.Accepted() != 1 {
		t.Errorf("Accepted() = %d, want 1", g.Accepted())
	}

	e, _ := g.Dequeue(context.Background())
	if e.URL != "https://site.test/a" || e.Depth != 1 {
		t.Errorf("Dequeue() = %+v, want first pending entry", e)
	}
}

func TestFrontierSnapshotReportsInFlightAsPending(t *testing.T) {
	t.Parallel()

	f := New(2, 0)
	f.Enqueue("https://site.test/", 0)
	f.Enqueue("https://site.test/a", 1)
	e, _ := f.Dequeue(context.Background())

	st := f.Snapshot()
	if len(st.Visited) != 0 {
		t.Errorf("Visited = %v, want none", st.Visited)
	}
	if len(st.Pending) != 2 || st.Pending[0] != e {
		t.Errorf("Pending = %+v, want in-flight entry first", st.Pending)
	}

	g := New(2, 0)
	g.Restore(st)
	next, _ := g.Dequeue(context.Background())
	if next.URL != e.URL {
		t.Errorf("Dequeue() after Restore() = %q, want %q", next.URL, e.URL)
	}
}

func TestFrontierDropsEntriesAboveLoweredDepth(t *testing.T) {
	t.Parallel()

	t.Run("restored entries", func(t *testing.T) {
		t.Parallel()

		f := New(0, 0)
		f.Restore(State{
			Pending: []model.FrontierEntry{
				{URL: "https://site.test/deep", Depth: 2},
				{URL: "https://site.test/", Depth: 0},
			},
		})

		e, ok := f.Dequeue(context.Background())
		if !ok || e.URL != "https://site.test/" {
			t.Fatalf("Dequeue() = %+v, %v, want the depth-0 entry", e, ok)
		}
		f.Done(e.URL, true)

		if e, ok := f.Dequeue(context.Background()); ok {
			t.Errorf("Dequeue() = %+v, want no entry deeper than the limit", e)
		}
		if f.IsVisited("https://site.test/deep") {
			t.Error("dropped entry marked visited")
		}
		if f.Discover("https://site.test/deep") {
			t.Error("dropped entry forgotten by the discovered set")
		}
		if f.Size() != 0 {
			t.Errorf("Size() = %d, want 0", f.Size())
		}
	})

	t.Run("limits lowered after enqueue", func(t *testing.T) {
		t.Parallel()

		f := New(3, 0)
		f.Enqueue("https://site.test/a", 2)
		f.Enqueue("https://site.test/b", 1)
		f.SetLimits(1, 0)

		e, ok := f.Dequeue(context.Background())
		if !ok || e.URL != "https://site.test/b" || e.Depth != 1 {
			t.Fatalf("Dequeue() = %+v, %v, want the depth-1 entry", e, ok)
		}
		f.Done(e.URL, true)
		if _, ok := f.Dequeue(context.Background()); ok {
			t.Error("Dequeue() returned an entry deeper than the lowered limit")
		}
	})
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}
