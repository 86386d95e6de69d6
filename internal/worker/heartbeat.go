package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/bus"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/runtime"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// HeartbeatSender posts one liveness report.
type HeartbeatSender interface {
	SendHeartbeat(ctx context.Context, hb api.HeartbeatPayload) error
}

// Heartbeat reports liveness upstream on the policy cadence. Every pass
// leaves a local history row whether or not the network call landed, so the
// sample series doubles as an offline diagnostic.
type Heartbeat struct {
	store    *store.Store
	sender   HeartbeatSender
	policies PolicySource
	sched    Rearmer
	status   *runtime.Status
	creds    creds.Store
	bus      *bus.Bus
}

// NewHeartbeat creates the heartbeat worker. b may be nil (no fan-out).
func NewHeartbeat(st *store.Store, sender HeartbeatSender, policies PolicySource, sched Rearmer, status *runtime.Status, credStore creds.Store, b *bus.Bus) *Heartbeat {
	return &Heartbeat{store: st, sender: sender, policies: policies, sched: sched, status: status, creds: credStore, bus: b}
}

// Run sends one heartbeat and records the sample. The cadence is fixed at
// the policy interval even when the network is down; the queue depth series
// must not develop gaps exactly when things go wrong.
func (w *Heartbeat) Run(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	defer w.sched.ScheduleAfter(TaskHeartbeat, pol.HeartbeatInterval)

	now := time.Now().UTC()
	depth, err := w.store.QueueDepth()
	if err != nil {
		slog.Error("Heartbeat queue depth read failed", "error", err)
		depth = w.status.QueueDepth()
	} else {
		w.status.SetQueueDepth(depth)
	}

	var inventoryHash string
	if snap, ok, err := w.store.LatestInventorySnapshot(); err == nil && ok {
		inventoryHash = snap.SummaryHash
	}

	sample := &store.HeartbeatSample{
		SentAt:        now,
		QueueDepth:    depth,
		NetworkType:   w.status.NetworkType(),
		InventoryHash: inventoryHash,
	}
	if last, ok := w.status.LastSuccess(); ok {
		sample.LastSuccessAt = &last
	}

	deviceID, err := creds.DeviceID(w.creds)
	switch {
	case errors.Is(err, creds.ErrNotPaired):
		slog.Debug("Heartbeat recorded locally: device not paired")
	case err != nil:
		slog.Error("Heartbeat credential read failed", "error", err)
	default:
		hb := api.HeartbeatPayload{
			DeviceID:      deviceID,
			ClientTime:    now,
			QueueDepth:    depth,
			LastSuccessAt: sample.LastSuccessAt,
			Connection:    w.status.Connection(),
			NetworkType:   sample.NetworkType,
			InventoryHash: inventoryHash,
		}
		wasOnline := w.status.Connection() == runtime.ConnOnline
		if sendErr := w.sender.SendHeartbeat(ctx, hb); sendErr != nil {
			slog.Warn("Heartbeat delivery failed", "error", sendErr)
			w.status.SetOnline(false)
		} else {
			sample.Delivered = true
			w.status.SetOnline(true)
			if !wasOnline && w.bus != nil {
				// The backend is reachable again; queued messages should
				// not wait out the regular sync interval.
				w.bus.Publish(bus.Event{Kind: bus.EventConnectivity})
			}
		}
	}

	if err := w.store.AddHeartbeatSample(sample); err != nil {
		slog.Error("Heartbeat sample persist failed", "error", err)
	}
	return scheduler.OutcomeSuccess
}
