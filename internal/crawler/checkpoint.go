package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

const (
	// backpressureThreshold is the number of consecutive failed checkpoints
	// after which workers stop enqueuing new links.
	backpressureThreshold = 3

	// defaultCheckpointRetry is how often a blocked worker asks for another
	// checkpoint attempt.
	defaultCheckpointRetry = time.Second
)

// checkpointer serializes snapshot writes through one goroutine.
// Requests arriving while a write is pending collapse into that write,
// which always captures the latest state.
type checkpointer struct {
	// requests has capacity one; a full channel means a write is already pending.
	requests chan struct{}

	// stop ends the loop; done is closed when it has returned.
	stop chan struct{}
	done chan struct{}

	// failures counts consecutive failed writes.
	failures atomic.Int32

	// retry is the interval between checkpoint requests from a blocked worker.
	retry time.Duration

	mu sync.Mutex
	// blocked is non-nil while backpressure is engaged and is closed when
	// a checkpoint succeeds again.
	blocked chan struct{}
}

func newCheckpointer() checkpointer {
	return checkpointer{
		requests: make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		retry:    defaultCheckpointRetry,
	}
}

// requestCheckpoint asks the writer for a snapshot without ever blocking.
func (e *Engine) requestCheckpoint() {
	select {
	case e.ckpt.requests <- struct{}{}:
	default:
	}
}

func (e *Engine) checkpointLoop(ctx context.Context) {
	defer close(e.ckpt.done)
	for {
		select {
		case <-e.ckpt.stop:
			return
		case <-e.ckpt.requests:
			_ = e.checkpoint(ctx)
		}
	}
}

func (e *Engine) stopCheckpointLoop() {
	close(e.ckpt.stop)
	<-e.ckpt.done
}

// checkpoint writes one snapshot and updates the failure streak.
func (e *Engine) checkpoint(ctx context.Context) error {
	snap := e.snapshot()
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		e.stats.Error(model.ErrorCheckpoint)
		n := e.ckpt.failures.Add(1)
		e.logger.Error("checkpoint failed",
			"session", snap.Session.ID,
			"consecutive_failures", n,
			"error", err,
		)
		if n >= backpressureThreshold {
			e.engageBackpressure()
		}
		return err
	}

	e.ckpt.failures.Store(0)
	e.releaseBackpressure()
	e.logger.Debug("checkpoint written",
		"session", snap.Session.ID,
		"visited", len(snap.Visited),
		"pending", len(snap.Pending),
	)
	return nil
}

func (e *Engine) engageBackpressure() {
	e.ckpt.mu.Lock()
	defer e.ckpt.mu.Unlock()
	if e.ckpt.blocked == nil {
		e.ckpt.blocked = make(chan struct{})
		e.logger.Warn("checkpoints keep failing, pausing link discovery")
	}
}

func (e *Engine) releaseBackpressure() {
	e.ckpt.mu.Lock()
	defer e.ckpt.mu.Unlock()
	if e.ckpt.blocked != nil {
		close(e.ckpt.blocked)
		e.ckpt.blocked = nil
		e.logger.Info("checkpoint recovered, resuming link discovery")
	}
}

func (e *Engine) backpressure() <-chan struct{} {
	e.ckpt.mu.Lock()
	defer e.ckpt.mu.Unlock()
	return e.ckpt.blocked
}

// waitForCheckpoint blocks while backpressure is engaged, asking for a new
// checkpoint attempt every retry interval. Cancellation ends the wait so
// that links found during shutdown still reach the final snapshot.
func (e *Engine) waitForCheckpoint(ctx context.Context) {
	for {
		blocked := e.backpressure()
		if blocked == nil {
			return
		}
		e.requestCheckpoint()

		timer := time.NewTimer(e.ckpt.retry)
		select {
		case <-blocked:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}
