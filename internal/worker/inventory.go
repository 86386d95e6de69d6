package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// LineProvider reports the device's active communication lines.
type LineProvider interface {
	Lines(ctx context.Context) ([]api.LineFact, error)
}

// StaticLines is a LineProvider over a fixed set of lines, typically
// declared in the config file on platforms without a probe.
type StaticLines []api.LineFact

// Lines returns the fixed set.
func (s StaticLines) Lines(context.Context) ([]api.LineFact, error) {
	return []api.LineFact(s), nil
}

// InventoryUploader posts one inventory snapshot.
type InventoryUploader interface {
	UploadInventory(ctx context.Context, inv api.InventoryPayload) error
}

// Inventory polls the line facts, snapshots them locally, and uploads when
// the summary changed since the last uploaded snapshot.
type Inventory struct {
	store    *store.Store
	lines    LineProvider
	uploader InventoryUploader
	policies PolicySource
	sched    Rearmer
	creds    creds.Store
}

// NewInventory creates the inventory worker.
func NewInventory(st *store.Store, lines LineProvider, uploader InventoryUploader, policies PolicySource, sched Rearmer, credStore creds.Store) *Inventory {
	return &Inventory{store: st, lines: lines, uploader: uploader, policies: policies, sched: sched, creds: credStore}
}

// Run performs one inventory pass.
func (w *Inventory) Run(ctx context.Context) scheduler.Outcome {
	pol := w.policies.Effective()
	defer w.sched.ScheduleAfter(TaskInventory, pol.InventoryPollInterval)

	facts, err := w.lines.Lines(ctx)
	if err != nil {
		slog.Error("Inventory line read failed", "error", err)
		return scheduler.OutcomeRetry
	}

	raw, err := json.Marshal(facts)
	if err != nil {
		slog.Error("Inventory encode failed", "error", err)
		return scheduler.OutcomeRetry
	}
	hash := summaryHash(raw)

	last, hasLast, err := w.store.LatestInventorySnapshot()
	if err != nil {
		slog.Error("Inventory history read failed", "error", err)
		return scheduler.OutcomeRetry
	}
	if hasLast && last.SummaryHash == hash && last.Uploaded {
		return scheduler.OutcomeSuccess
	}

	snap := &store.InventorySnapshot{
		CapturedAt:  time.Now().UTC(),
		SummaryHash: hash,
		Lines:       string(raw),
	}

	deviceID, err := creds.DeviceID(w.creds)
	switch {
	case errors.Is(err, creds.ErrNotPaired):
		slog.Debug("Inventory captured locally: device not paired")
	case err != nil:
		slog.Error("Inventory credential read failed", "error", err)
	default:
		inv := api.InventoryPayload{
			DeviceID:   deviceID,
			CapturedAt: snap.CapturedAt,
			Lines:      facts,
		}
		if upErr := w.uploader.UploadInventory(ctx, inv); upErr != nil {
			slog.Warn("Inventory upload failed", "error", upErr)
		} else {
			snap.Uploaded = true
		}
	}

	if err := w.store.AddInventorySnapshot(snap); err != nil {
		slog.Error("Inventory snapshot persist failed", "error", err)
		return scheduler.OutcomeRetry
	}
	return scheduler.OutcomeSuccess
}

func summaryHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}
