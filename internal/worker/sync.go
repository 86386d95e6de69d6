package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/runtime"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// syncBatchSize bounds the work done per sync pass.
const syncBatchSize = 10

// Ingester delivers one message to the backend.
type Ingester interface {
	IngestMessage(ctx context.Context, m *queue.Message) error
}

// Sync drains the durable queue: it takes the oldest queued messages, walks
// each through sending, and persists the resulting state after every
// transition.
type Sync struct {
	store    *store.Store
	ingester Ingester
	policies PolicySource
	sched    Rearmer
	status   *runtime.Status
}

// NewSync creates the delivery worker.
func NewSync(st *store.Store, ingester Ingester, policies PolicySource, sched Rearmer, status *runtime.Status) *Sync {
	return &Sync{store: st, ingester: ingester, policies: policies, sched: sched, status: status}
}

// Startup recovers rows a previous run left mid-flight. A message stuck in
// sending is requeued; at-least-once delivery means a duplicate send is
// acceptable, a lost one is not.
func (w *Sync) Startup() error {
	n, err := w.store.RequeueStaleSending()
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Requeued messages left in-flight by previous run", "count", n)
	}
	return nil
}

// Run performs one delivery pass. Any send failure yields a retry outcome so
// the scheduler backs the whole task off; a clean pass re-arms at the policy
// sync interval.
func (w *Sync) Run(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	now := time.Now().UTC()

	batch, err := w.store.MessagesByStatus(queue.StatusQueued, syncBatchSize)
	if err != nil {
		slog.Error("Sync batch load failed", "error", err)
		return scheduler.OutcomeRetry
	}

	failed := 0
	for _, m := range batch {
		if ctx.Err() != nil {
			return scheduler.OutcomeRetry
		}
		if !eligible(m, now) {
			continue
		}

		if err := queue.OnSendStart(m, now); err != nil {
			slog.Error("Sync skipped message in unexpected state", "id", m.ID, "error", err)
			continue
		}
		if err := w.store.UpdateMessage(m); err != nil {
			slog.Error("Sync persist failed", "id", m.ID, "error", err)
			return scheduler.OutcomeRetry
		}

		sendErr := w.ingester.IngestMessage(ctx, m)
		if errors.Is(sendErr, creds.ErrNotPaired) {
			// Not an attempt the message should pay for: revert and wait
			// for pairing.
			m.Status = queue.StatusQueued
			m.LastAttemptAt = nil
			if err := w.store.UpdateMessage(m); err != nil {
				slog.Error("Sync revert failed", "id", m.ID, "error", err)
			}
			slog.Warn("Sync paused: device not paired")
			return scheduler.OutcomeRetry
		}
		if sendErr != nil {
			slog.Warn("Send failed", "id", m.ID, "attempt", m.RetryCount+1, "error", sendErr)
			if _, err := queue.OnSendFailure(m); err != nil {
				slog.Error("Sync transition failed", "id", m.ID, "error", err)
			}
			if err := w.store.UpdateMessage(m); err != nil {
				slog.Error("Sync persist failed", "id", m.ID, "error", err)
			}
			if m.Status == queue.StatusFailed {
				slog.Error("Message failed permanently", "id", m.ID, "attempts", m.RetryCount)
				_ = w.store.AddLog("sync", "error", "message "+m.ID+" failed permanently")
			}
			w.status.SetOnline(false)
			failed++
			continue
		}

		if err := queue.OnSendSuccess(m); err != nil {
			slog.Error("Sync transition failed", "id", m.ID, "error", err)
			continue
		}
		if err := w.store.UpdateMessage(m); err != nil {
			slog.Error("Sync persist failed", "id", m.ID, "error", err)
			return scheduler.OutcomeRetry
		}
		w.status.MarkSendSuccess(now)
	}

	if depth, err := w.store.QueueDepth(); err == nil {
		w.status.SetQueueDepth(depth)
	}

	if failed > 0 {
		return scheduler.OutcomeRetry
	}
	w.sched.ScheduleAfter(TaskSync, pol.SyncInterval)
	return scheduler.OutcomeSuccess
}

// eligible reports whether a queued message's per-message backoff has
// elapsed. Fresh messages (no attempts yet) are always eligible.
func eligible(m *queue.Message, now time.Time) bool {
	if m.RetryCount == 0 || m.LastAttemptAt == nil {
		return true
	}
	return !now.Before(m.LastAttemptAt.Add(queue.RetryDelay(m.RetryCount)))
}
