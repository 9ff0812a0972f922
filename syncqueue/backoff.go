// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"errors"
	"time"
)

// Default retry policy values.
const (
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 3
)

// BackoffDelay returns min(base * 2^attempt, max). Deterministic, no
// jitter; callers that need de-synchronization add jitter to the sleep,
// not to the delay itself.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		delay = max
	}
	return delay
}

// NextAttemptAt returns the earliest instant the write may be retried.
// The zero time means it is eligible immediately.
func NextAttemptAt(w *QueuedWrite, base, max time.Duration) time.Time {
	if w.AttemptCount == 0 || w.LastAttemptAt == nil {
		return time.Time{}
	}
	return w.LastAttemptAt.Add(BackoffDelay(w.AttemptCount, base, max))
}

// Eligible reports whether the write may be attempted at the given instant.
// Dead-lettered writes are never eligible. A write with no recorded attempt
// is always eligible, regardless of any lastAttemptAt marker.
func Eligible(w *QueuedWrite, now time.Time, base, max time.Duration) bool {
	if w.Status == StatusFailedPermanent {
		return false
	}
	at := NextAttemptAt(w, base, max)
	if at.IsZero() {
		return true
	}
	return !now.Before(at)
}

// Decision is the worker's reaction to a classified sync failure.
type Decision int

const (
	// DecisionRetry keeps the attempted items queued for a later pass.
	DecisionRetry Decision = iota
	// DecisionStopWorker halts the whole worker until an explicit restart.
	DecisionStopWorker
	// DecisionDeadLetter marks the attempted items permanently failed.
	DecisionDeadLetter
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionStopWorker:
		return "stop_worker"
	case DecisionDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Classification describes how a sync failure should be handled.
type Classification struct {
	Decision         Decision
	IncrementAttempt bool
	Reason           string
}

// Classify maps a sync failure onto the retry policy. attemptCount is the
// item's count before this failure; when the incremented count would reach
// maxAttempts the classification escalates to dead-letter for failures that
// will not self-resolve.
//
// Transport failures are treated as "paused", not "failed": no attempt
// increment, since they reflect the device's connectivity rather than the
// operation itself.
func Classify(err error, attemptCount, maxAttempts int) Classification {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	exhausted := attemptCount+1 >= maxAttempts

	var (
		transportErr  *TransportError
		authErr       *AuthError
		validationErr *ValidationError
		serverErr     *ServerError
	)
	switch {
	case errors.As(err, &transportErr):
		return Classification{Decision: DecisionRetry, Reason: "transport failure"}

	case errors.As(err, &authErr):
		return Classification{Decision: DecisionStopWorker, Reason: authErr.Error()}

	case errors.As(err, &validationErr):
		if exhausted {
			return Classification{Decision: DecisionDeadLetter, IncrementAttempt: true, Reason: validationErr.Error()}
		}
		return Classification{Decision: DecisionRetry, IncrementAttempt: true, Reason: validationErr.Error()}

	case errors.As(err, &serverErr):
		if exhausted {
			return Classification{Decision: DecisionDeadLetter, IncrementAttempt: true, Reason: serverErr.Error()}
		}
		return Classification{Decision: DecisionRetry, IncrementAttempt: true, Reason: serverErr.Error()}

	default:
		// Conservative default for anything unrecognized.
		if exhausted {
			return Classification{Decision: DecisionDeadLetter, IncrementAttempt: true, Reason: err.Error()}
		}
		return Classification{Decision: DecisionRetry, IncrementAttempt: true, Reason: err.Error()}
	}
}
