package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/ratelimit"
	"github.com/nao1215/sitecrawler/internal/robots"
	"github.com/nao1215/sitecrawler/internal/stats"
	"github.com/nao1215/sitecrawler/internal/transport"
)

// finalSnapshotTimeout bounds the snapshot written when a run ends.
const finalSnapshotTimeout = 30 * time.Second

// Result is returned when a run ends, whether it completed or was interrupted.
type Result struct {
	// Session is the session in its final state.
	Session model.Session

	// Report is the final statistics.
	Report stats.Report
}

// Engine runs one crawl session: a fixed pool of workers draining the
// frontier under per-host rate limits, with periodic checkpoints.
//
// An Engine is single-use. Create it with New, then call either Run for a
// new session or Resume for an interrupted one.
type Engine struct {
	// cfg is the resolved configuration of the session.
	cfg *config.Config

	// store receives snapshots. It may also implement PageIndex and
	// ErrorRecorder.
	store CheckpointStore

	// sink receives accepted pages.
	sink Sink

	// logger receives engine events.
	logger *slog.Logger

	// client is shared by the fetcher and the robots cache.
	client *http.Client

	fetcher  *Fetcher
	robots   *robots.Cache
	limiter  *ratelimit.Limiter
	frontier *frontier.Frontier
	stats    *stats.Aggregator

	// accounting pairs every statistics update with the matching frontier
	// update. Workers hold it shared; snapshots hold it exclusively so that
	// the frontier and the counters they capture agree.
	accounting sync.RWMutex

	// session is owned by the goroutine calling Run or Resume.
	session *model.Session

	// sessionID and status back Status without locking.
	sessionID atomic.Pointer[string]
	status    atomic.Pointer[model.SessionStatus]

	// current is the URL most recently picked up by any worker.
	current atomic.Pointer[string]

	// resumed is set when the session was restored from a snapshot.
	resumed bool

	// acceptedThisRun drives the periodic checkpoint.
	acceptedThisRun atomic.Int64

	// started guards against a second Run or Resume.
	started atomic.Bool

	ckpt checkpointer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSink sets the destination of accepted pages. Without a sink pages are
// counted but discarded.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithHTTPClient replaces the client built from the configuration.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// New validates cfg and wires the crawl components. Configuration errors are
// returned here, before any worker starts.
func New(cfg *config.Config, store CheckpointStore, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrNoCheckpointStore
	}

	e := &Engine{
		cfg:    cfg,
		store:  store,
		sink:   discardSink{},
		logger: slog.Default(),
		ckpt:   newCheckpointer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		client, err := transport.NewHTTPClient(transport.Options{
			Timeout:      cfg.Timeout,
			ProxyAddress: cfg.ProxyAddress,
			MaxRedirects: cfg.MaxRedirects,
			Cookie:       cfg.Cookie,
			Headers:      cfg.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		e.client = client
	}

	e.fetcher = NewFetcher(e.client, cfg.UserAgent, cfg.MaxBodySize)
	e.robots = robots.NewCache(e.client, cfg.UserAgent,
		robots.WithTimeout(cfg.RobotsTimeout),
		robots.WithLogger(e.logger),
	)
	e.limiter = ratelimit.New(cfg.Delay,
		ratelimit.WithWindow(ratelimit.Window{Requests: cfg.RequestsPerWindow, Window: cfg.RateWindow}),
		ratelimit.WithLogger(e.logger),
	)
	e.frontier = frontier.New(cfg.MaxDepth, cfg.MaxPages)
	e.stats = stats.New()

	return e, nil
}

// Run starts a new session at cfg.StartURL and blocks until the crawl
// completes or ctx is cancelled. Cancellation is not an error: the result
// then carries an interrupted session that can be resumed.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	seed, err := frontier.Normalize(e.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidStartURL, err)
	}
	if v := e.cfg.Criteria.CheckURL(seed); !v.Accepted {
		return nil, fmt.Errorf("%w: %s", ErrSeedRejected, v.Reason)
	}

	session := model.NewSession(seed, e.cfg.MaxDepth, e.cfg.MaxPages, e.cfg.Workers, e.cfg.Delay)
	if session.Config, err = json.Marshal(e.cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	e.setSession(session)

	e.frontier.Discover(seed)
	e.stats.URLFound()
	e.frontier.Enqueue(seed, 0)

	return e.run(ctx)
}

// Resume continues the session captured in snap. The engine's configuration
// replaces the stored one for every decision made from now on; pages already
// visited are not reclassified.
func (e *Engine) Resume(ctx context.Context, snap *model.Snapshot) (*Result, error) {
	if !snap.Session.Status.IsResumable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrSessionNotResumable, snap.Session.ID, snap.Session.Status)
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	session := snap.Session
	session.Reopen()
	session.MaxDepth = e.cfg.MaxDepth
	session.MaxPages = e.cfg.MaxPages
	session.Workers = e.cfg.Workers
	session.Delay = e.cfg.Delay
	cfgJSON, err := json.Marshal(e.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	session.Config = cfgJSON
	e.setSession(&session)

	e.frontier.Restore(frontier.State{
		Visited:    snap.Visited,
		Pending:    snap.Pending,
		Discovered: snap.Discovered,
		Accepted:   int(snap.Counters.Downloaded),
	})
	e.stats.Restore(snap.Counters)
	e.resumed = true

	e.logger.Info("resuming session",
		"session", session.ID,
		"visited", len(snap.Visited),
		"pending", len(snap.Pending),
		"downloaded", snap.Counters.Downloaded,
	)
	return e.run(ctx)
}

// run drives the worker pool until the frontier terminates or ctx is
// cancelled, then writes the final snapshot.
func (e *Engine) run(ctx context.Context) (*Result, error) {
	if err := e.store.SaveSnapshot(ctx, e.snapshot()); err != nil {
		return nil, fmt.Errorf("checkpoint store unavailable: %w", err)
	}

	e.logger.Info("crawl started",
		"session", e.session.ID,
		"start_url", e.session.StartURL,
		"max_depth", e.cfg.MaxDepth,
		"max_pages", e.cfg.MaxPages,
		"workers", e.cfg.Workers,
	)

	// In-flight fetches outlive ctx by up to the grace period.
	fetchCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	stopWatch := e.watchShutdown(ctx, abort)

	go e.checkpointLoop(context.WithoutCancel(ctx))

	// One long-lived goroutine per worker; each drains the frontier.
	var g errgroup.Group
	for range e.cfg.Workers {
		g.Go(func() error {
			e.work(ctx, fetchCtx)
			return nil
		})
	}
	_ = g.Wait()

	stopWatch()
	e.stopCheckpointLoop()

	status := model.SessionCompleted
	if ctx.Err() != nil && e.frontier.Size() > 0 && !e.frontier.BudgetReached() {
		status = model.SessionInterrupted
	}
	e.session.Finish(status)
	e.status.Store(&status)

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSnapshotTimeout)
	defer cancel()
	snapErr := e.store.SaveSnapshot(finalCtx, e.snapshot())
	if snapErr != nil {
		e.stats.Error(model.ErrorCheckpoint)
		e.logger.Error("failed to write final snapshot", "session", e.session.ID, "error", snapErr)
	}

	report := e.stats.Report()
	e.logger.Info("crawl finished",
		"session", e.session.ID,
		"status", status,
		"downloaded", report.Downloaded,
		"urls_found", report.URLsFound,
		"errors", report.Errors,
		"duration", report.Duration,
	)

	result := &Result{Session: *e.session, Report: report}
	if snapErr != nil {
		return result, fmt.Errorf("failed to write final snapshot: %w", snapErr)
	}
	return result, nil
}

// work is the loop of one worker.
func (e *Engine) work(ctx, fetchCtx context.Context) {
	for {
		entry, ok := e.frontier.Dequeue(ctx)
		if !ok {
			return
		}
		e.settle(entry, e.process(ctx, fetchCtx, entry))
	}
}

// watchShutdown closes the frontier when ctx is cancelled and aborts
// in-flight fetches once the grace period expires. The returned function
// stops the watcher.
func (e *Engine) watchShutdown(ctx context.Context, abort context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}

		e.frontier.Close()
		e.logger.Info("shutdown requested, draining in-flight fetches", "grace_period", e.cfg.GracePeriod)

		timer := time.NewTimer(e.cfg.GracePeriod)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			e.logger.Warn("grace period expired, aborting in-flight fetches")
			abort()
		}
	}()
	return func() { close(done) }
}

// Status returns a point-in-time view of the crawl. It never blocks workers
// and may be called from any goroutine at any time.
func (e *Engine) Status() model.LiveStatus {
	st := model.LiveStatus{
		PagesCrawled: e.stats.DownloadedCount(),
		PagesFound:   e.stats.URLsFoundCount(),
		Errors:       e.stats.ErrorCount(),
		QueueDepth:   e.frontier.Size(),
	}
	if id := e.sessionID.Load(); id != nil {
		st.SessionID = *id
	}
	if s := e.status.Load(); s != nil {
		st.Status = *s
	}
	if u := e.current.Load(); u != nil {
		st.CurrentURL = *u
	}
	return st
}

// Stats returns the live statistics aggregator.
func (e *Engine) Stats() *stats.Aggregator {
	return e.stats
}

func (e *Engine) setSession(s *model.Session) {
	e.session = s
	id, status := s.ID, s.Status
	e.sessionID.Store(&id)
	e.status.Store(&status)
}

// snapshot captures the frontier and the counters consistently.
// The store write happens afterwards, without any lock held.
func (e *Engine) snapshot() *model.Snapshot {
	e.accounting.Lock()
	st := e.frontier.Snapshot()
	counters := e.stats.Snapshot()
	e.accounting.Unlock()

	return &model.Snapshot{
		Session:    *e.session,
		Visited:    st.Visited,
		Pending:    st.Pending,
		Discovered: st.Discovered,
		Counters:   counters,
		TakenAt:    time.Now(),
	}
}
