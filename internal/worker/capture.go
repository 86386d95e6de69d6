package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/supermarsx/smsgate-sub000/internal/bus"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/source"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

const (
	capturePollInterval = 2 * time.Second
	captureBatchSize    = 100
)

// Capture is the live intake path: it tails the provider for fresh entries
// and enqueues them with primary provenance. Anything it misses is picked up
// later by reconciliation.
type Capture struct {
	store    *store.Store
	provider source.Provider
	bus      *bus.Bus
	creds    creds.Store
	lastSeen time.Time
}

// NewCapture creates the capture loop. Entries older than start are left to
// the boot reconciliation pass.
func NewCapture(st *store.Store, provider source.Provider, b *bus.Bus, credStore creds.Store, start time.Time) *Capture {
	return &Capture{store: st, provider: provider, bus: b, creds: credStore, lastSeen: start}
}

// Run polls until the context ends. Runs as its own goroutine; intake must
// not wait behind the scheduler's task table.
func (w *Capture) Run(ctx context.Context) {
	ticker := time.NewTicker(capturePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Capture) poll(ctx context.Context) {
	deviceID, err := creds.DeviceID(w.creds)
	if errors.Is(err, creds.ErrNotPaired) {
		return
	}
	if err != nil {
		slog.Error("Capture credential read failed", "error", err)
		return
	}

	entries, err := w.provider.Scan(ctx, w.lastSeen, captureBatchSize)
	if errors.Is(err, source.ErrUnauthorized) {
		return
	}
	if err != nil {
		slog.Warn("Capture scan failed", "error", err)
		return
	}

	enqueued := 0
	for _, e := range entries {
		if e.ReceivedAt.After(w.lastSeen) {
			w.lastSeen = e.ReceivedAt
		}
		fp := queue.Fingerprint(e.Sender, e.Body, e.ReceivedAt, e.LineID)
		n, err := w.store.CountFingerprint(fp, e.ReceivedAt.Add(-fingerprintSlack), e.ReceivedAt.Add(fingerprintSlack))
		if err != nil {
			slog.Error("Capture dedup lookup failed", "error", err)
			return
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
			Provenance:     queue.ProvenancePrimary,
		}
		if err := w.store.InsertMessage(m); err != nil {
			slog.Error("Capture insert failed", "id", m.ID, "error", err)
			return
		}
		enqueued++
	}

	if enqueued > 0 {
		slog.Debug("Capture enqueued messages", "count", enqueued)
		w.bus.Publish(bus.Event{Kind: bus.EventMessageCaptured, Payload: enqueued})
	}
}
