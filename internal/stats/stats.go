package stats

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Aggregator collects crawl statistics from all workers.
//
// Every mutation is an atomic increment; readers never block writers.
// Snapshot is eventually consistent: counters read at slightly different
// instants may disagree by in-flight updates.
type Aggregator struct {
	urlsFound      atomic.Int64
	downloaded     atomic.Int64
	filtered       atomic.Int64
	policyRejected atomic.Int64
	errors         atomic.Int64
	bytes          atomic.Int64
	fetchCount     atomic.Int64
	fetchNanos     atomic.Int64

	// errorsByKind maps model.ErrorKind to *atomic.Int64.
	errorsByKind sync.Map

	// filterReasons maps a filter reason to *atomic.Int64.
	filterReasons sync.Map

	// domains is the set of hosts with at least one fetched page.
	domains sync.Map

	// pagesPerMinute tracks the recent download rate.
	pagesPerMinute *ratecounter.RateCounter

	// startedAt is when the current run began.
	startedAt time.Time

	// priorElapsed is crawl time accumulated by earlier runs of the session.
	priorElapsed time.Duration
}

// New creates an empty aggregator whose clock starts now.
func New() *Aggregator {
	return &Aggregator{
		pagesPerMinute: ratecounter.NewRateCounter(time.Minute),
		startedAt:      time.Now(),
	}
}

// URLFound records a newly discovered distinct URL.
func (a *Aggregator) URLFound() {
	a.urlsFound.Add(1)
}

// Downloaded records an accepted page.
func (a *Aggregator) Downloaded() {
	a.downloaded.Add(1)
	a.pagesPerMinute.Incr(1)
}

// Filtered records a page rejected by the content filter.
func (a *Aggregator) Filtered(reason string) {
	a.filtered.Add(1)
	counterFor(&a.filterReasons, reason).Add(1)
}

// PolicyRejected records a URL rejected before fetch by the URL filter or
// the robots policy.
func (a *Aggregator) PolicyRejected(reason string) {
	a.policyRejected.Add(1)
	counterFor(&a.filterReasons, reason).Add(1)
}

// Error records a per-URL failure of the given kind.
func (a *Aggregator) Error(kind model.ErrorKind) {
	a.errors.Add(1)
	counterFor(&a.errorsByKind, kind).Add(1)
}

// Fetched records a completed HTTP exchange.
func (a *Aggregator) Fetched(host string, size int64, d time.Duration) {
	a.bytes.Add(size)
	a.fetchCount.Add(1)
	a.fetchNanos.Add(int64(d))
	if host != "" {
		a.domains.LoadOrStore(host, struct{}{})
	}
}

// DownloadedCount returns the accepted page count.
func (a *Aggregator) DownloadedCount() int64 {
	return a.downloaded.Load()
}

// URLsFoundCount returns the discovered URL count.
func (a *Aggregator) URLsFoundCount() int64 {
	return a.urlsFound.Load()
}

// ErrorCount returns the total error count.
func (a *Aggregator) ErrorCount() int64 {
	return a.errors.Load()
}

// Elapsed returns the crawl time including earlier runs.
func (a *Aggregator) Elapsed() time.Duration {
	return a.priorElapsed + time.Since(a.startedAt)
}

// Snapshot returns the current counters in serializable form.
func (a *Aggregator) Snapshot() model.Counters {
	c := model.Counters{
		URLsFound:      a.urlsFound.Load(),
		Downloaded:     a.downloaded.Load(),
		Filtered:       a.filtered.Load(),
		PolicyRejected: a.policyRejected.Load(),
		Errors:         a.errors.Load(),
		Bytes:          a.bytes.Load(),
		FetchCount:     a.fetchCount.Load(),
		FetchNanos:     a.fetchNanos.Load(),
		ErrorsByKind:   make(map[model.ErrorKind]int64),
		FilterReasons:  make(map[string]int64),
		ElapsedNanos:   int64(a.Elapsed()),
	}
	a.errorsByKind.Range(func(k, v any) bool {
		c.ErrorsByKind[k.(model.ErrorKind)] = v.(*atomic.Int64).Load()
		return true
	})
	a.filterReasons.Range(func(k, v any) bool {
		c.FilterReasons[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	a.domains.Range(func(k, _ any) bool {
		c.Domains = append(c.Domains, k.(string))
		return true
	})
	slices.Sort(c.Domains)
	return c
}

// Restore seeds the aggregator with counters from a snapshot so that a
// resumed session continues accumulating from them. It must be called
// before any worker starts.
func (a *Aggregator) Restore(c model.Counters) {
	a.urlsFound.Store(c.URLsFound)
	a.downloaded.Store(c.Downloaded)
	a.filtered.Store(c.Filtered)
	a.policyRejected.Store(c.PolicyRejected)
	a.errors.Store(c.Errors)
	a.bytes.Store(c.Bytes)
	a.fetchCount.Store(c.FetchCount)
	a.fetchNanos.Store(c.FetchNanos)
	for k, v := range c.ErrorsByKind {
		counterFor(&a.errorsByKind, k).Store(v)
	}
	for k, v := range c.FilterReasons {
		counterFor(&a.filterReasons, k).Store(v)
	}
	for _, d := range c.Domains {
		a.domains.Store(d, struct{}{})
	}
	a.priorElapsed = time.Duration(c.ElapsedNanos)
	a.startedAt = time.Now()
}

// Report builds the final statistics report from the current counters.
func (a *Aggregator) Report() Report {
	return NewReport(a.Snapshot(), a.pagesPerMinute.Rate())
}

func counterFor[K comparable](m *sync.Map, key K) *atomic.Int64 {
	if v, ok := m.Load(key); ok {
		return v.(*atomic.Int64)
	}
	v, _ := m.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}
