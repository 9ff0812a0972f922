// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// WorkerState is the worker's lifecycle state.
type WorkerState string

const (
	StateStopped       WorkerState = "STOPPED"
	StateRunning       WorkerState = "RUNNING"
	StateStoppedByAuth WorkerState = "STOPPED_BY_AUTH_ERROR"
)

// Config holds tuning for the sync worker.
type Config struct {
	BaseDelay           time.Duration // backoff base, 1s
	MaxDelay            time.Duration // backoff cap, 30s
	MaxAttempts         int           // dead-letter threshold, 3
	OfflinePollInterval time.Duration // sleep while the device is offline, 5s
	JitterRange         time.Duration // extra random sleep to de-synchronize clients, 0 disables
	CheckpointTTL       time.Duration // staleness window for in-flight checkpoints
	UploadLimit         int           // max entries per batch, 200
	Logger              *slog.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDelay:           DefaultBaseDelay,
		MaxDelay:            DefaultMaxDelay,
		MaxAttempts:         DefaultMaxAttempts,
		OfflinePollInterval: 5 * time.Second,
		JitterRange:         0,
		CheckpointTTL:       DefaultCheckpointTTL,
		UploadLimit:         200,
	}
}

// Worker drains the queue against the remote endpoint. One logical worker
// runs per process, as a cooperative loop with explicit sleep points; it is
// constructed and owned by the composition root, never a hidden singleton.
//
// The loop stops naturally when the queue drains, cooperatively on Stop,
// and terminally on an authentication failure (no retry will succeed until
// the app re-authenticates and starts a fresh worker).
type Worker struct {
	store       *QueueStore
	remote      RemoteSync
	network     NetworkMonitor
	builder     *PayloadBuilder
	results     *ResultHandler
	checkpoints *CheckpointManager
	cfg         *Config
	logger      *slog.Logger
	clock       func() time.Time

	mu     sync.Mutex
	state  WorkerState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker wires a worker over its collaborators. A nil network monitor
// assumes the device is always online; a nil invalidator discards cache
// signals; a nil config takes DefaultConfig().
func NewWorker(store *QueueStore, remote RemoteSync, network NetworkMonitor, invalidator CacheInvalidator, cfg *Config) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if network == nil {
		network = AlwaysOnline
	}
	return &Worker{
		store:       store,
		remote:      remote,
		network:     network,
		builder:     NewPayloadBuilder(logger),
		results:     NewResultHandler(store, invalidator, cfg.MaxAttempts, logger),
		checkpoints: NewCheckpointManager(store, cfg.CheckpointTTL, logger),
		cfg:         cfg,
		logger:      logger,
		clock:       time.Now,
		state:       StateStopped,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start begins the drain loop. Idempotent: starting a running worker is a
// no-op. A worker stopped by an auth error may be restarted once the app
// has re-authenticated.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateRunning {
		w.mu.Unlock()
		return nil
	}

	// Leftover checkpoint from a previous process: resolve before draining.
	if _, err := w.checkpoints.ReconcileOnStart(ctx); err != nil {
		w.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateRunning
	w.mu.Unlock()

	go w.run(loopCtx)
	return nil
}

// Stop requests cooperative shutdown and waits for the loop to observe it.
// Cancellation takes effect at the next loop iteration, never mid-storage
// operation.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
}

func (w *Worker) run(ctx context.Context) {
	final := StateStopped
	defer func() {
		w.mu.Lock()
		w.state = final
		close(w.done)
		w.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if !w.network.Online() {
			if err := sleepWithContext(ctx, w.cfg.OfflinePollInterval); err != nil {
				return
			}
			continue
		}

		queue, err := w.store.GetAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The durable store is misbehaving; nothing useful to do but
			// wait and re-check. Enqueue callers see the same error.
			w.logger.Error("failed to read queue", "error", err)
			if err := sleepWithContext(ctx, w.cfg.OfflinePollInterval); err != nil {
				return
			}
			continue
		}

		live := liveEntries(queue)
		if len(live) == 0 {
			w.logger.Debug("queue drained, stopping worker")
			return
		}

		now := w.clock()
		var ready []QueuedWrite
		for i := range live {
			if Eligible(&live[i], now, w.cfg.BaseDelay, w.cfg.MaxDelay) {
				ready = append(ready, live[i])
			}
		}

		if len(ready) == 0 {
			// Bounded sleep until the earliest retry instant, not a poll.
			next := earliestAttempt(live, w.cfg.BaseDelay, w.cfg.MaxDelay)
			delay := next.Sub(now) + w.jitter()
			if err := sleepWithContext(ctx, delay); err != nil {
				return
			}
			continue
		}

		if w.cfg.UploadLimit > 0 && len(ready) > w.cfg.UploadLimit {
			ready = ready[:w.cfg.UploadLimit]
		}

		stop, err := w.syncOnce(ctx, ready)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("sync cycle failed on storage", "error", err)
			if err := sleepWithContext(ctx, w.cfg.OfflinePollInterval); err != nil {
				return
			}
			continue
		}
		if stop {
			final = StateStoppedByAuth
			return
		}
		// Loop immediately: attempted items are ineligible until their
		// backoff elapses, and new enqueues may already be waiting.
	}
}

// syncOnce runs one build → send → reconcile cycle over the ready set.
// The returned bool asks the loop to halt (auth failure). The returned
// error reports storage failures only; sync failures are fully contained
// here via classification.
func (w *Worker) syncOnce(ctx context.Context, ready []QueuedWrite) (bool, error) {
	build := w.builder.Build("", ready)
	if build.Request.IsEmpty() {
		// Everything deferred or malformed; nothing to send this pass.
		w.logger.Debug("no uploadable entries in ready set",
			"deferred", len(build.Deferred), "malformed", len(build.Malformed))
		return false, sleepWithContext(ctx, w.cfg.OfflinePollInterval)
	}

	operationIDs := make([]string, 0, len(build.Included))
	for i := range build.Included {
		operationIDs = append(operationIDs, build.Included[i].OperationID)
	}

	cp, err := w.checkpoints.Begin(ctx, operationIDs)
	if err != nil {
		return false, err
	}
	build.Request.RequestID = cp.RequestID

	resp, syncErr := w.remote.Sync(ctx, build.Request)
	if syncErr != nil {
		return w.handleFailure(ctx, build.Included, syncErr)
	}

	if err := w.results.Apply(ctx, build.Included, resp); err != nil {
		return false, err
	}
	// Outcome of every sent operation is now known.
	if err := w.checkpoints.Confirm(ctx, operationIDs); err != nil {
		return false, err
	}
	w.logger.Info("sync cycle complete",
		"sent", len(build.Included), "status", resp.Status, "conflicts", len(resp.Conflicts))
	return false, nil
}

// handleFailure applies failure classification to every attempted entry.
func (w *Worker) handleFailure(ctx context.Context, attempted []QueuedWrite, syncErr error) (bool, error) {
	var transportErr *TransportError
	if errors.As(syncErr, &transportErr) {
		// Environment problem, not the batch's fault: no attempt penalty,
		// and the checkpoint stays because the outcome is unknown.
		w.logger.Warn("sync transport failure, pausing", "error", syncErr)
		return false, sleepWithContext(ctx, w.cfg.OfflinePollInterval)
	}

	var authErr *AuthError
	if errors.As(syncErr, &authErr) {
		// The server rejected the batch outright; nothing was applied.
		if err := w.checkpoints.Clear(ctx); err != nil {
			return false, err
		}
		w.logger.Error("authentication failure, halting worker", "error", syncErr)
		return true, nil
	}

	// Definite rejection without application; the checkpoint is moot.
	if err := w.checkpoints.Clear(ctx); err != nil {
		return false, err
	}

	for i := range attempted {
		item := &attempted[i]
		cls := Classify(syncErr, item.AttemptCount, w.cfg.MaxAttempts)
		if !cls.IncrementAttempt {
			continue
		}
		updated, err := w.store.IncrementRetry(ctx, item.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // racing enqueue compacted it away
			}
			return false, err
		}
		if cls.Decision == DecisionDeadLetter {
			if err := w.store.MarkFailedPermanent(ctx, item.ID, cls.Reason); err != nil {
				return false, err
			}
			continue
		}
		w.logger.Warn("sync failed, backing off",
			"entityType", item.EntityType, "localId", item.Target.LocalID,
			"attempt", updated.AttemptCount, "reason", cls.Reason)
	}
	return false, nil
}

// jitter returns a random extra sleep within the configured range.
func (w *Worker) jitter() time.Duration {
	if w.cfg.JitterRange <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(w.cfg.JitterRange)))
}

// liveEntries filters out dead-lettered writes.
func liveEntries(queue []QueuedWrite) []QueuedWrite {
	var out []QueuedWrite
	for i := range queue {
		if queue[i].Status != StatusFailedPermanent {
			out = append(out, queue[i])
		}
	}
	return out
}

// earliestAttempt returns the soonest next-attempt instant across entries.
func earliestAttempt(entries []QueuedWrite, base, max time.Duration) time.Time {
	var earliest time.Time
	for i := range entries {
		at := NextAttemptAt(&entries[i], base, max)
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	return earliest
}

// sleepWithContext sleeps for d unless the context is canceled first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
