package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a crawl session.
// Valid transitions are running → interrupted and running → completed.
// Resuming an interrupted session moves it back to running.
type SessionStatus string

const (
	// SessionRunning means workers are (or were, if the process died) active.
	SessionRunning SessionStatus = "running"

	// SessionInterrupted means the crawl was cancelled and a final
	// snapshot was written.
	SessionInterrupted SessionStatus = "interrupted"

	// SessionCompleted means the frontier drained or the page budget was reached.
	SessionCompleted SessionStatus = "completed"
)

// IsResumable reports whether a session in this state can be resumed.
// A session left in running state after a crash is resumable from its
// last snapshot.
func (s SessionStatus) IsResumable() bool {
	return s == SessionRunning || s == SessionInterrupted
}

// Session describes one logical crawl run.
// It is created at crawl start and mutated only by the engine.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// StartURL is the normalized seed URL.
	StartURL string `json:"start_url"`

	// MaxDepth is the depth ceiling in effect.
	MaxDepth int `json:"max_depth"`

	// MaxPages is the accepted-page ceiling in effect.
	MaxPages int `json:"max_pages"`

	// Delay is the per-host minimum interval between fetches.
	Delay time.Duration `json:"delay"`

	// Workers is the worker pool size.
	Workers int `json:"workers"`

	// Config is a JSON snapshot of the resolved configuration, including
	// filter criteria, so a resume can reuse it.
	Config []byte `json:"config,omitempty"`

	// Status is the lifecycle state.
	Status SessionStatus `json:"status"`

	// StartedAt is when the session was first created.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the session reached a terminal state.
	// Zero while running.
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewSessionID returns a new random session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// NewSession creates a running session with a fresh ID.
func NewSession(startURL string, maxDepth, maxPages, workers int, delay time.Duration) *Session {
	return &Session{
		ID:        NewSessionID(),
		StartURL:  startURL,
		MaxDepth:  maxDepth,
		MaxPages:  maxPages,
		Delay:     delay,
		Workers:   workers,
		Status:    SessionRunning,
		StartedAt: time.Now(),
	}
}

// Finish moves the session into a terminal status and stamps CompletedAt.
func (s *Session) Finish(status SessionStatus) {
	s.Status = status
	s.CompletedAt = time.Now()
}

// Reopen moves an interrupted session back to running.
func (s *Session) Reopen() {
	s.Status = SessionRunning
	s.CompletedAt = time.Time{}
}

// Snapshot is a durable, point-in-time capture of crawl state that is
// sufficient to resume a session exactly.
type Snapshot struct {
	// Session is the session metadata at snapshot time.
	Session Session `json:"session"`

	// Visited is the full visited set.
	Visited []string `json:"visited"`

	// Pending is the full frontier contents in queue order.
	Pending []FrontierEntry `json:"pending"`

	// Discovered holds URLs that were seen as links but never entered the
	// frontier, such as robots-disallowed or too-deep links. It keeps the
	// urls_found counter exact across a resume.
	Discovered []string `json:"discovered,omitempty"`

	// Counters are the statistics at snapshot time.
	Counters Counters `json:"counters"`

	// TakenAt is when the snapshot was captured.
	TakenAt time.Time `json:"taken_at"`
}

// LiveStatus is a read-only, point-in-time view of a running crawl intended
// for progress displays and dashboards.
type LiveStatus struct {
	SessionID    string        `json:"session_id"`
	PagesCrawled int64         `json:"pages_crawled"`
	PagesFound   int64         `json:"pages_found"`
	Errors       int64         `json:"errors"`
	CurrentURL   string        `json:"current_url"`
	QueueDepth   int           `json:"queue_depth"`
	Status       SessionStatus `json:"status"`
}
