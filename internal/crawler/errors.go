package crawler

import "errors"

var (
	// ErrNoCheckpointStore is returned when an engine is created without a store.
	ErrNoCheckpointStore = errors.New("checkpoint store is required")

	// ErrSeedRejected is returned when the start URL fails the URL filter.
	ErrSeedRejected = errors.New("start url rejected by url filter")

	// ErrSessionNotResumable is returned when resuming a completed session.
	ErrSessionNotResumable = errors.New("session is not resumable")

	// ErrAlreadyStarted is returned when Run or Resume is called twice.
	ErrAlreadyStarted = errors.New("engine already started")
)
