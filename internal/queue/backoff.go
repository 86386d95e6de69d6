package queue

import (
	"math/rand"
	"time"
)

// Backoff defaults shared by per-message retries and task-level reruns.
const (
	BackoffBase   = 500 * time.Millisecond
	RetryMaxDelay = 30 * time.Second
	TaskMaxDelay  = 5 * time.Minute
	BackoffJitter = 0.2
)

// Backoff computes base * 2^attempt capped at max, perturbed by a uniform
// random offset within ±jitter*capped. rnd must return a value in [0,1);
// pass a seeded source for deterministic results. Never negative.
func Backoff(attempt int, base, max time.Duration, jitter float64, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	if jitter > 0 && rnd != nil {
		offset := time.Duration((rnd()*2 - 1) * jitter * float64(d))
		d += offset
	}
	if d < 0 {
		d = 0
	}
	return d
}

// RetryDelay returns the wait before the next per-message send attempt.
func RetryDelay(attempt int) time.Duration {
	return Backoff(attempt, BackoffBase, RetryMaxDelay, BackoffJitter, rand.Float64)
}

// TaskDelay returns the wait before rerunning a failed worker task. The cap
// is looser than per-message retries since whole-task failures are usually
// connectivity, not payload, problems.
func TaskDelay(attempt int) time.Duration {
	return Backoff(attempt, BackoffBase, TaskMaxDelay, BackoffJitter, rand.Float64)
}
