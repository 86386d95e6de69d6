package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// retentionInterval is the fixed pruning cadence. Retention windows come
// from policy; how often we sweep does not need to.
const retentionInterval = 6 * time.Hour

// Retention prunes aged rows: terminal messages, heartbeat samples,
// inventory snapshots, log rows, and superseded policy snapshots. Undelivered
// messages are never touched.
type Retention struct {
	store    *store.Store
	policies PolicySource
	sched    Rearmer
}

// NewRetention creates the retention worker.
func NewRetention(st *store.Store, policies PolicySource, sched Rearmer) *Retention {
	return &Retention{store: st, policies: policies, sched: sched}
}

// Run performs one pruning sweep.
func (w *Retention) Run(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	defer w.sched.ScheduleAfter(TaskRetention, retentionInterval)

	now := time.Now().UTC()
	failed := false
	prune := func(what string, fn func(time.Time) (int, error), cutoff time.Time) {
		if ctx.Err() != nil {
			failed = true
			return
		}
		n, err := fn(cutoff)
		if err != nil {
			slog.Error("Retention sweep failed", "what", what, "error", err)
			failed = true
			return
		}
		if n > 0 {
			slog.Info("Retention pruned rows", "what", what, "count", n)
		}
	}

	prune("terminal messages", w.store.DeleteTerminalBefore, now.Add(-pol.RetainAcked))
	prune("heartbeat samples", w.store.DeleteHeartbeatsBefore, now.Add(-pol.RetainHeartbeat))
	prune("inventory snapshots", w.store.DeleteInventoryBefore, now.Add(-pol.RetainInventory))
	prune("log rows", w.store.DeleteLogsBefore, now.Add(-pol.RetainLogs))
	prune("policy snapshots", w.store.DeletePolicySnapshotsBefore, now.Add(-pol.RetainLogs))

	if failed {
		return scheduler.OutcomeRetry
	}
	return scheduler.OutcomeSuccess
}
