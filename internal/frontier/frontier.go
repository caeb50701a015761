package frontier

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Frontier is the shared queue of URLs waiting to be fetched, together with
// the visited set and the page budget.
//
// All state lives behind a single monitor (mutex plus condition variable) so
// that the visited check, the queued check and the insertion happen in one
// critical section. A URL is handed out by Dequeue at most once per run.
//
// The page budget is enforced by reservation: a dequeued entry holds one
// budget slot until Done is called. Dequeue never hands out more entries than
// maxPages minus accepted pages, so the number of accepted pages can never
// exceed maxPages even with many workers.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	// queue holds pending entries in FIFO order.
	queue []model.FrontierEntry

	// queued mirrors queue for O(1) membership checks.
	queued map[string]struct{}

	// visited holds URLs that have been dequeued.
	visited map[string]struct{}

	// discovered holds every URL seen, whether or not it was enqueued.
	discovered map[string]struct{}

	// inFlight holds entries dequeued but not yet reported via Done.
	inFlight map[string]model.FrontierEntry

	// size mirrors len(queue) for lock-free reads.
	size atomic.Int64

	// accepted counts entries reported as accepted pages.
	accepted int

	// maxDepth is the highest depth accepted by Enqueue and handed out
	// by Dequeue.
	maxDepth int

	// maxPages is the accepted-page budget. Zero or negative means unlimited.
	maxPages int

	// closed stops all further dequeues. Enqueue still works so that pages
	// finishing during shutdown can record their links for a resume.
	closed bool
}

// New creates an empty frontier with the given limits.
func New(maxDepth, maxPages int) *Frontier {
	f := &Frontier{
		queued:     make(map[string]struct{}),
		visited:    make(map[string]struct{}),
		discovered: make(map[string]struct{}),
		inFlight:   make(map[string]model.FrontierEntry),
		maxDepth:   maxDepth,
		maxPages:   maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Discover records that url was seen as a link. It reports whether this is
// the first time the URL has been seen in the session.
func (f *Frontier) Discover(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoverLocked(url)
}

func (f *Frontier) discoverLocked(url string) bool {
	if _, ok := f.discovered[url]; ok {
		return false
	}
	f.discovered[url] = struct{}{}
	return true
}

// Enqueue inserts url at depth if it has not been visited or queued, the
// depth is within the limit and the page budget is not exhausted. It reports
// whether the insertion happened. url must already be normalized.
func (f *Frontier) Enqueue(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.discoverLocked(url)
	if depth < 0 || depth > f.maxDepth || f.budgetExhaustedLocked() {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}

	f.queue = append(f.queue, model.FrontierEntry{URL: url, Depth: depth})
	f.queued[url] = struct{}{}
	f.size.Store(int64(len(f.queue)))
	f.cond.Signal()
	return true
}

// Dequeue removes the next entry and marks it visited. Entries deeper than
// the current depth limit are discarded instead of returned.
//
// It blocks while the queue is empty but other entries are still in flight,
// since those may produce new links, and while every remaining budget slot is
// reserved by in-flight entries. It returns false when the crawl is over:
// the queue is empty with nothing in flight, the page budget has been reached,
// the frontier was closed, or ctx was cancelled.
//
// Every entry returned must be followed by exactly one call to Done or Requeue.
func (f *Frontier) Dequeue(ctx context.Context) (model.FrontierEntry, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed || ctx.Err() != nil || f.budgetExhaustedLocked() {
			return model.FrontierEntry{}, false
		}
		f.dropTooDeepLocked()
		if len(f.queue) == 0 && len(f.inFlight) == 0 {
			// Wake other waiters so they observe termination too.
			f.cond.Broadcast()
			return model.FrontierEntry{}, false
		}
		if len(f.queue) > 0 && f.hasBudgetLocked() {
			entry := f.queue[0]
			f.queue[0] = model.FrontierEntry{}
			f.queue = f.queue[1:]
			delete(f.queued, entry.URL)
			f.size.Store(int64(len(f.queue)))
			f.visited[entry.URL] = struct{}{}
			f.inFlight[entry.URL] = entry
			return entry, true
		}
		f.cond.Wait()
	}
}

// dropTooDeepLocked removes head entries deeper than maxDepth. They were
// queued under a higher limit, for example before a resume lowered it. A
// dropped URL stays discovered but is never marked visited.
func (f *Frontier) dropTooDeepLocked() {
	for len(f.queue) > 0 && f.queue[0].Depth > f.maxDepth {
		delete(f.queued, f.queue[0].URL)
		f.queue[0] = model.FrontierEntry{}
		f.queue = f.queue[1:]
	}
	f.size.Store(int64(len(f.queue)))
}

// Done releases the in-flight entry for url. accepted reports whether the
// page was accepted and counts against the page budget.
func (f *Frontier) Done(url string, accepted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inFlight[url]; !ok {
		return
	}
	delete(f.inFlight, url)
	if accepted {
		f.accepted++
	}
	f.cond.Broadcast()
}

// Requeue returns an in-flight entry to the front of the queue and removes it
// from the visited set. It is used when a fetch was aborted by shutdown
// before producing any result, so a resumed session fetches it again.
func (f *Frontier) Requeue(entry model.FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inFlight[entry.URL]; !ok {
		return
	}
	delete(f.inFlight, entry.URL)
	delete(f.visited, entry.URL)
	if _, ok := f.queued[entry.URL]; !ok {
		f.queue = append([]model.FrontierEntry{entry}, f.queue...)
		f.queued[entry.URL] = struct{}{}
		f.size.Store(int64(len(f.queue)))
	}
	f.cond.Broadcast()
}

// Close stops all further dequeues and wakes every waiting worker.
// Entries still queued are kept for Snapshot.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Size returns the number of queued entries. It never blocks.
func (f *Frontier) Size() int {
	return int(f.size.Load())
}

// InFlight returns the number of dequeued entries not yet released.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// Accepted returns the number of accepted pages counted against the budget.
func (f *Frontier) Accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

// BudgetReached reports whether the accepted page count has hit maxPages.
func (f *Frontier) BudgetReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budgetExhaustedLocked()
}

// IsVisited reports whether url has already been dequeued.
func (f *Frontier) IsVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// SetLimits replaces the depth and page limits. New limits apply to future
// Enqueue and Dequeue calls only.
func (f *Frontier) SetLimits(maxDepth, maxPages int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxDepth = maxDepth
	f.maxPages = maxPages
	f.cond.Broadcast()
}

func (f *Frontier) budgetExhaustedLocked() bool {
	return f.maxPages > 0 && f.accepted >= f.maxPages
}

func (f *Frontier) hasBudgetLocked() bool {
	return f.maxPages <= 0 || f.accepted+len(f.inFlight) < f.maxPages
}

// State is a copy of the frontier contents.
type State struct {
	// Visited lists dequeued URLs whose processing has finished.
	Visited []string

	// Pending lists in-flight entries followed by queued entries in
	// queue order.
	Pending []model.FrontierEntry

	// Discovered lists URLs seen but neither visited nor pending.
	Discovered []string

	// Accepted is the accepted-page count.
	Accepted int
}

// Snapshot copies the frontier contents under the lock.
//
// In-flight entries are reported as pending: a snapshot taken mid-fetch
// cannot know whether the fetch will finish, so a resume from it must be
// able to process the entry again. Callers that persisted the page in the
// meantime detect the repeat through their page index.
func (f *Frontier) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := State{
		Visited:  make([]string, 0, len(f.visited)),
		Pending:  make([]model.FrontierEntry, 0, len(f.inFlight)+len(f.queue)),
		Accepted: f.accepted,
	}
	for u := range f.visited {
		if _, ok := f.inFlight[u]; ok {
			continue
		}
		st.Visited = append(st.Visited, u)
	}
	for _, e := range f.inFlight {
		st.Pending = append(st.Pending, e)
	}
	st.Pending = append(st.Pending, f.queue...)
	for u := range f.discovered {
		if _, ok := f.visited[u]; ok {
			continue
		}
		if _, ok := f.queued[u]; ok {
			continue
		}
		st.Discovered = append(st.Discovered, u)
	}
	return st
}

// Restore replaces the frontier contents with st. Pending entries that are
// also in the visited set are dropped.
func (f *Frontier) Restore(st State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queue = f.queue[:0]
	f.queued = make(map[string]struct{}, len(st.Pending))
	f.visited = make(map[string]struct{}, len(st.Visited))
	f.discovered = make(map[string]struct{}, len(st.Visited)+len(st.Pending)+len(st.Discovered))
	f.inFlight = make(map[string]model.FrontierEntry)
	f.accepted = st.Accepted

	for _, u := range st.Visited {
		f.visited[u] = struct{}{}
		f.discovered[u] = struct{}{}
	}
	for _, e := range st.Pending {
		f.discovered[e.URL] = struct{}{}
		if _, ok := f.visited[e.URL]; ok {
			continue
		}
		if _, ok := f.queued[e.URL]; ok {
			continue
		}
		f.queue = append(f.queue, e)
		f.queued[e.URL] = struct{}{}
	}
	for _, u := range st.Discovered {
		f.discovered[u] = struct{}{}
	}
	f.size.Store(int64(len(f.queue)))
	f.cond.Broadcast()
}
