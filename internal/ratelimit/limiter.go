package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Window configures an optional token bucket applied per host on top of the
// fixed delay: at most Requests fetches per Window.
type Window struct {
	Requests int
	Window   time.Duration
}

// enabled reports whether the window describes a usable token bucket.
func (w Window) enabled() bool {
	return w.Requests > 0 && w.Window > 0
}

// Limiter enforces a minimum interval between fetches to the same host.
//
// The host map lock is held only to look up or create a host's state. The
// per-host lock is then held across the whole wait, so two workers targeting
// the same host are serialized and their fetch start times are at least the
// configured delay apart. Workers targeting different hosts never block
// each other.
type Limiter struct {
	// delay is the minimum interval between fetches to one host.
	delay time.Duration

	// window is the optional per-host token bucket.
	window Window

	// logger receives debug output about waits.
	logger *slog.Logger

	// now returns the current time. Tests replace it.
	now func() time.Time

	mu    sync.Mutex
	hosts map[string]*hostState
}

// hostState is the politeness state of one host.
type hostState struct {
	mu sync.Mutex

	// last is when the previous fetch to this host was released.
	// Zero means the host has not been fetched yet.
	last time.Time

	// bucket is nil unless a Window is configured.
	bucket *rate.Limiter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow adds a per-host token bucket.
func WithWindow(w Window) Option {
	return func(l *Limiter) {
		l.window = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a limiter with the given per-host delay.
// A zero delay and no window makes WaitIfNeeded return immediately.
func New(delay time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		delay:  delay,
		logger: slog.Default(),
		now:    time.Now,
		hosts:  make(map[string]*hostState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Delay returns the configured per-host delay.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// WaitIfNeeded blocks until a fetch to host is allowed.
//
// If the previous fetch to host was released less than delay ago, it sleeps
// for the remainder. It then records the current time as the host's last
// fetch time. Both steps run under the host's lock. If ctx is cancelled
// during the wait, the context error is returned and the last fetch time is
// left untouched.
func (l *Limiter) WaitIfNeeded(ctx context.Context, host string) error {
	host = strings.ToLower(host)
	if host == "" || (l.delay <= 0 && !l.window.enabled()) {
		return ctx.Err()
	}

	st := l.state(host)
	st.mu.Lock()
	defer st.mu.Unlock()

	if l.delay > 0 && !st.last.IsZero() {
		if wait := l.delay - l.now().Sub(st.last); wait > 0 {
			l.logger.Debug("waiting for host", "host", host, "wait", wait)
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	if st.bucket != nil {
		if err := st.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	st.last = l.now()
	return nil
}

// Hosts returns the number of hosts seen so far.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}

// state returns the state of host, creating it on first use.
func (l *Limiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.hosts[host]
	if ok {
		return st
	}
	st = &hostState{}
	if l.window.enabled() {
		interval := l.window.Window / time.Duration(l.window.Requests)
		if interval <= 0 {
			interval = time.Millisecond
		}
		st.bucket = rate.NewLimiter(rate.Every(interval), l.window.Requests)
	}
	l.hosts[host] = st
	return st
}
