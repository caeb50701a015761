// Package ratelimit implements per-host politeness delays.
//
// Each host gets its own state, created lazily and kept for the lifetime of
// the process. A Limiter never shares a timer between hosts, so a slow host
// does not throttle fetches to unrelated hosts.
package ratelimit
