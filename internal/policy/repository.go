package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/supermarsx/smsgate-sub000/internal/bus"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

// SnapshotStore is the slice of the durable store the repository needs.
type SnapshotStore interface {
	LatestPolicySnapshot() (store.PolicySnapshot, bool, error)
	SavePolicySnapshot(version int64, etag, raw string) error
	LatestOverrides() (string, error)
}

// Fetcher performs the conditional policy pull.
type Fetcher interface {
	FetchPolicy(ctx context.Context, etag string) (raw []byte, newETag string, notModified bool, err error)
}

// Repository owns the effective policy: the latest stored snapshot with
// allow-listed local overrides applied. Every other component reads policy
// exclusively through it.
type Repository struct {
	store   SnapshotStore
	fetcher Fetcher
	bus     *bus.Bus
}

// NewRepository creates a policy repository. bus may be nil (no fan-out).
func NewRepository(st SnapshotStore, fetcher Fetcher, b *bus.Bus) *Repository {
	return &Repository{store: st, fetcher: fetcher, bus: b}
}

// Effective returns the current effective policy. Absent or unparseable
// snapshots yield the hard-coded defaults; there is no partial trust.
func (r *Repository) Effective() Policy {
	snap, ok, err := r.store.LatestPolicySnapshot()
	if err != nil {
		slog.Error("Policy snapshot load failed, using defaults", "error", err)
		p := Default()
		p.clamp()
		return p
	}
	if !ok {
		p := Default()
		p.clamp()
		return p
	}

	p, perr := Parse([]byte(snap.Raw))
	if perr != nil {
		slog.Warn("Stored policy unparseable, using defaults", "version", snap.Version, "error", perr)
	}
	p.Version = snap.Version
	p.ETag = snap.ETag

	if p.OverridesEnabled {
		raw, err := r.store.LatestOverrides()
		if err != nil {
			slog.Warn("Overrides load failed, applying remote policy as-is", "error", err)
		} else {
			p.Apply(ParseOverrides([]byte(raw)))
		}
	}
	return p
}

// Refresh pulls the policy from the backend, conditional on the stored
// validation token. A 304 stores nothing; a fresh document becomes a new
// snapshot with a bumped version. Either way dependents are re-armed via
// the policy-changed event, since the pull is their scheduling anchor.
func (r *Repository) Refresh(ctx context.Context) error {
	snap, _, err := r.store.LatestPolicySnapshot()
	if err != nil {
		return fmt.Errorf("load policy snapshot: %w", err)
	}

	raw, newETag, notModified, err := r.fetcher.FetchPolicy(ctx, snap.ETag)
	if err != nil {
		return fmt.Errorf("fetch policy: %w", err)
	}

	if notModified {
		slog.Debug("Policy unchanged", "version", snap.Version)
		r.notify()
		return nil
	}

	if _, perr := Parse(raw); perr != nil {
		// A document that does not parse must never become the
		// authoritative row.
		return fmt.Errorf("backend policy unparseable: %w", perr)
	}
	version := snap.Version + 1
	if err := r.store.SavePolicySnapshot(version, newETag, string(raw)); err != nil {
		return fmt.Errorf("save policy snapshot: %w", err)
	}
	slog.Info("Policy updated", "version", version, "etag", newETag)
	r.notify()
	return nil
}

// ApplyPush stores a policy document delivered over the control channel.
// Applied identically to a pull: snapshot written, dependents re-armed.
func (r *Repository) ApplyPush(version int64, config json.RawMessage) error {
	if _, perr := Parse(config); perr != nil {
		return fmt.Errorf("pushed policy unparseable: %w", perr)
	}
	snap, _, err := r.store.LatestPolicySnapshot()
	if err != nil {
		return fmt.Errorf("load policy snapshot: %w", err)
	}
	if version <= snap.Version {
		version = snap.Version + 1
	}
	if err := r.store.SavePolicySnapshot(version, "", string(config)); err != nil {
		return fmt.Errorf("save pushed policy: %w", err)
	}
	slog.Info("Policy updated via push", "version", version)
	r.notify()
	return nil
}

func (r *Repository) notify() {
	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.EventPolicyChanged})
	}
}
