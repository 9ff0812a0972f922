// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayValues(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}

	for _, tc := range cases {
		got := BackoffDelay(tc.attempt, DefaultBaseDelay, DefaultMaxDelay)
		if got != tc.want {
			t.Fatalf("attempt %d: expected %v got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestBackoffDelayMonotonic(t *testing.T) {
	for n := 0; n < 20; n++ {
		cur := BackoffDelay(n, DefaultBaseDelay, DefaultMaxDelay)
		next := BackoffDelay(n+1, DefaultBaseDelay, DefaultMaxDelay)
		if next < cur {
			t.Fatalf("attempt %d: delay decreased from %v to %v", n, cur, next)
		}
		if cur > DefaultMaxDelay {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", n, cur, DefaultMaxDelay)
		}
	}
}

func TestBackoffDelayLargeAttemptDoesNotOverflow(t *testing.T) {
	got := BackoffDelay(500, DefaultBaseDelay, DefaultMaxDelay)
	require.Equal(t, DefaultMaxDelay, got)
}

func TestEligibilityGating(t *testing.T) {
	attemptAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := QueuedWrite{
		AttemptCount:  2,
		LastAttemptAt: &attemptAt,
		Status:        StatusRetrying,
	}
	delay := BackoffDelay(2, DefaultBaseDelay, DefaultMaxDelay)

	require.False(t, Eligible(&w, attemptAt.Add(delay-time.Millisecond), DefaultBaseDelay, DefaultMaxDelay),
		"one millisecond early must not be eligible")
	require.True(t, Eligible(&w, attemptAt.Add(delay), DefaultBaseDelay, DefaultMaxDelay),
		"the exact retry instant must be eligible")
}

func TestFreshWriteAlwaysEligible(t *testing.T) {
	// attemptCount == 0 implies immediate eligibility regardless of any
	// lastAttemptAt marker.
	attemptAt := time.Now().UTC()
	w := QueuedWrite{AttemptCount: 0, LastAttemptAt: &attemptAt, Status: StatusPending}
	require.True(t, Eligible(&w, attemptAt, DefaultBaseDelay, DefaultMaxDelay))
}

func TestDeadLetteredNeverEligible(t *testing.T) {
	w := QueuedWrite{Status: StatusFailedPermanent}
	require.False(t, Eligible(&w, time.Now().Add(time.Hour), DefaultBaseDelay, DefaultMaxDelay))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		attempt   int
		decision  Decision
		increment bool
	}{
		{"transport", &TransportError{Err: errors.New("dial tcp: no route")}, 0, DecisionRetry, false},
		{"transport never exhausts", &TransportError{Err: errors.New("timeout")}, 99, DecisionRetry, false},
		{"auth", &AuthError{StatusCode: 401, Message: "token expired"}, 0, DecisionStopWorker, false},
		{"validation", &ValidationError{StatusCode: 422, Message: "bad title"}, 0, DecisionRetry, true},
		{"validation exhausted", &ValidationError{StatusCode: 422, Message: "bad title"}, 2, DecisionDeadLetter, true},
		{"server", &ServerError{StatusCode: 503, Message: "unavailable"}, 1, DecisionRetry, true},
		{"server exhausted", &ServerError{StatusCode: 500, Message: "boom"}, 2, DecisionDeadLetter, true},
		{"unknown", errors.New("unexpected"), 0, DecisionRetry, true},
		{"unknown exhausted", errors.New("unexpected"), 2, DecisionDeadLetter, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls := Classify(tc.err, tc.attempt, DefaultMaxAttempts)
			require.Equal(t, tc.decision, cls.Decision)
			require.Equal(t, tc.increment, cls.IncrementAttempt)
			require.NotEmpty(t, cls.Reason)
		})
	}
}

func TestClassifyWrappedError(t *testing.T) {
	// Taxonomy errors must classify through wrapping.
	wrapped := errors.Join(errors.New("sync cycle"), &AuthError{StatusCode: 403, Message: "forbidden"})
	cls := Classify(wrapped, 0, DefaultMaxAttempts)
	require.Equal(t, DecisionStopWorker, cls.Decision)
}
