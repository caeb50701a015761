package crawler

import (
	"context"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Sink receives every accepted page exactly once.
// Persist is called from worker goroutines and must be safe for concurrent use.
type Sink interface {
	Persist(ctx context.Context, page *model.PageRecord) error
}

// CheckpointStore durably stores session snapshots.
type CheckpointStore interface {
	// SaveSnapshot atomically replaces the stored state of snap.Session.ID.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot returns the latest snapshot of a session, or
	// model.ErrSnapshotNotFound.
	LoadSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error)

	// ListIncompleteSessions returns sessions that are running or interrupted.
	ListIncompleteSessions(ctx context.Context) ([]model.Session, error)
}

// PageIndex is implemented by stores that remember which pages a session
// already persisted. A resumed engine consults it before fetching a pending
// URL, so pages persisted after the last snapshot are not fetched again.
type PageIndex interface {
	LookupPage(ctx context.Context, sessionID, url string) (*model.PageRecord, bool, error)
}

// ErrorRecorder is implemented by stores that keep a per-URL error log.
type ErrorRecorder interface {
	RecordError(ctx context.Context, sessionID, url string, kind model.ErrorKind, message string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, page *model.PageRecord) error

// Persist calls f(ctx, page).
func (f SinkFunc) Persist(ctx context.Context, page *model.PageRecord) error {
	return f(ctx, page)
}

// discardSink drops every page.
type discardSink struct{}

func (discardSink) Persist(context.Context, *model.PageRecord) error { return nil }
