package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/source"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// fingerprintSlack widens the dedup lookup range so a provider-reported
// timestamp that drifted across a minute boundary still matches.
const fingerprintSlack = 2 * time.Minute

// Reconcile re-scans the recent provider window and enqueues anything the
// live capture path missed. Safe to run repeatedly: rows are deduplicated by
// content fingerprint before insert.
type Reconcile struct {
	store    *store.Store
	provider source.Provider
	policies PolicySource
	sched    Rearmer
	creds    creds.Store
}

// NewReconcile creates the reconciliation worker.
func NewReconcile(st *store.Store, provider source.Provider, policies PolicySource, sched Rearmer, credStore creds.Store) *Reconcile {
	return &Reconcile{store: st, provider: provider, policies: policies, sched: sched, creds: credStore}
}

// Run performs one periodic reconciliation pass.
func (w *Reconcile) Run(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	outcome := w.scan(ctx, pol.ReconcileWindow, pol.ReconcileMaxScan, queue.ProvenanceReconcile, pol.ReconcileEnabled)
	w.sched.ScheduleAfter(TaskReconcile, pol.ReconcileInterval)
	return outcome
}

// BootScan runs a one-off pass at startup, marking recovered rows with boot
// provenance. It does not arm the periodic task.
func (w *Reconcile) BootScan(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	return w.scan(ctx, pol.ReconcileWindow, pol.ReconcileMaxScan, queue.ProvenanceBoot, pol.ReconcileEnabled)
}

func (w *Reconcile) scan(ctx context.Context, window time.Duration, maxScan int, prov queue.Provenance, enabled bool) scheduler.Outcome {
	if !enabled {
		return scheduler.OutcomeSuccess
	}
	deviceID, err := creds.DeviceID(w.creds)
	if errors.Is(err, creds.ErrNotPaired) {
		slog.Debug("Reconciliation skipped: device not paired")
		return scheduler.OutcomeSuccess
	}
	if err != nil {
		slog.Error("Reconciliation credential read failed", "error", err)
		return scheduler.OutcomeRetry
	}

	now := time.Now().UTC()
	since := now.Add(-window)
	entries, err := w.provider.Scan(ctx, since, maxScan)
	if errors.Is(err, source.ErrUnauthorized) {
		// Soft disable: permission may be granted later, nothing to retry.
		slog.Warn("Reconciliation skipped: source read not authorized")
		return scheduler.OutcomeSuccess
	}
	if err != nil {
		slog.Error("Reconciliation scan failed", "error", err)
		return scheduler.OutcomeRetry
	}

	inserted := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return scheduler.OutcomeRetry
		}
		fp := queue.Fingerprint(e.Sender, e.Body, e.ReceivedAt, e.LineID)
		n, err := w.store.CountFingerprint(fp, e.ReceivedAt.Add(-fingerprintSlack), e.ReceivedAt.Add(fingerprintSlack))
		if err != nil {
			slog.Error("Reconciliation dedup lookup failed", "error", err)
			return scheduler.OutcomeRetry
		}
		if n > 0 {
			continue
		}

		m := &queue.Message{
			ID:             uuid.NewString(),
			DeviceID:       deviceID,
			ReceivedAt:     e.ReceivedAt,
			Sender:         e.Sender,
			Body:           e.Body,
			Fingerprint:    fp,
			LineID:         e.LineID,
			SubscriptionID: e.SubscriptionID,
			Status:         queue.StatusQueued,
			Provenance:     prov,
		}
		if err := w.store.InsertMessage(m); err != nil {
			slog.Error("Reconciliation insert failed", "id", m.ID, "error", err)
			return scheduler.OutcomeRetry
		}
		inserted++
	}

	if inserted > 0 {
		slog.Info("Reconciliation recovered missed messages", "count", inserted, "provenance", string(prov))
		_ = w.store.AddLog("reconcile", "info", fmt.Sprintf("recovered %d missed messages", inserted))
		w.sched.RunNow(TaskSync)
	}
	return scheduler.OutcomeSuccess
}
