package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single robots.txt fetch.
const DefaultTimeout = 10 * time.Second

// maxRobotsSize caps how much of a robots.txt body is read.
const maxRobotsSize = 512 * 1024

// Cache answers whether a URL may be fetched according to the robots.txt of
// its host. Rules are fetched on the first query for a host and cached for
// the lifetime of the Cache; there is no TTL within a run.
//
// A missing robots.txt, a non-2xx status, a network failure or a parse
// failure all cache an allow-all policy. Only an explicit matching Disallow
// makes IsAllowed return false.
type Cache struct {
	// client fetches robots.txt files.
	client *http.Client

	// userAgent selects the robots.txt group and is sent with the request.
	userAgent string

	// timeout bounds each robots.txt fetch.
	timeout time.Duration

	// logger receives fetch failures at debug level.
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry

	// group coalesces concurrent first queries for the same host.
	group singleflight.Group
}

// entry is the cached robots state of one host.
type entry struct {
	// rules is nil when the host allows everything.
	rules *robotstxt.Group

	// fetchedAt is when the robots.txt fetch completed.
	fetchedAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a robots cache that fetches with client.
func NewCache(client *http.Client, userAgent string, opts ...Option) *Cache {
	if client == nil {
		client = &http.Client{}
	}
	c := &Cache{
		client:    client,
		userAgent: userAgent,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
		entries:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAllowed reports whether rawURL may be fetched.
// Invalid URLs are reported as allowed; the fetcher rejects them itself.
func (c *Cache) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	e, ok := c.lookup(ctx, u)
	if !ok || e.rules == nil {
		return true
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return e.rules.Test(target)
}

// FetchedAt returns when the robots.txt of the URL's host was fetched.
// It reports false when the host has not been queried yet.
func (c *Cache) FetchedAt(rawURL string) (time.Time, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(u)]
	return e.fetchedAt, ok
}

// lookup returns the cached entry for u's host, fetching it if necessary.
// It reports false if ctx was cancelled before the rules were available;
// nothing is cached in that case.
func (c *Cache) lookup(ctx context.Context, u *url.URL) (entry, bool) {
	key := cacheKey(u)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return e, nil
		}

		// The fetch outlives any single caller so that one cancelled worker
		// does not fail the lookup for others waiting on the same host.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		e = entry{rules: c.fetch(fetchCtx, key), fetchedAt: time.Now()}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return e, nil
	})

	select {
	case res := <-ch:
		return res.Val.(entry), true
	case <-ctx.Done():
		return entry{}, false
	}
}

// fetch downloads and parses robots.txt. It returns nil for allow-all.
func (c *Cache) fetch(ctx context.Context, base string) *robotstxt.Group {
	robotsURL := base + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Debug("failed to build robots request", "url", robotsURL, "error", err)
		return nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt fetch failed, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("robots.txt unavailable, allowing all", "url", robotsURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		c.logger.Debug("robots.txt read failed, allowing all", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		c.logger.Debug("robots.txt parse failed, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup(c.userAgent)
}

// cacheKey identifies the robots.txt location of u.
func cacheKey(u *url.URL) string {
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}
