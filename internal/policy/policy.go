// Package policy manages the remotely pushed operating parameters: parsing
// raw policy documents, clamping intervals, applying allow-listed local
// overrides, and refreshing snapshots from the backend.
package policy

import (
	"encoding/json"
	"time"
)

// Policy is the effective set of operating parameters every worker reads.
type Policy struct {
	Version int64  `json:"version"`
	ETag    string `json:"etag,omitempty"`

	RealtimeMode string `json:"realtimeMode"`

	SyncInterval          time.Duration `json:"syncInterval"`
	HeartbeatInterval     time.Duration `json:"heartbeatInterval"`
	InventoryPollInterval time.Duration `json:"inventoryPollInterval"`
	ContactsSyncInterval  time.Duration `json:"contactsSyncInterval"`

	ReconcileEnabled  bool          `json:"reconcileEnabled"`
	ReconcileWindow   time.Duration `json:"reconcileWindow"`
	ReconcileInterval time.Duration `json:"reconcileInterval"`
	ReconcileMaxScan  int           `json:"reconcileMaxScan"`

	RetainAcked     time.Duration `json:"retainAcked"`
	RetainHeartbeat time.Duration `json:"retainHeartbeat"`
	RetainInventory time.Duration `json:"retainInventory"`
	RetainLogs      time.Duration `json:"retainLogs"`

	OverridesEnabled  bool     `json:"overridesEnabled"`
	OverrideAllowKeys []string `json:"overrideAllowKeys,omitempty"`

	TLSPinningEnabled bool     `json:"tlsPinningEnabled"`
	TLSPins           []string `json:"tlsPins,omitempty"`
}

// Interval floors. A malformed or hostile policy must not be able to drive
// any worker into a zero-delay loop.
const (
	minSyncInterval      = 5 * time.Second
	minHeartbeat         = 5 * time.Second
	minInventoryPoll     = 10 * time.Second
	minContactsSync      = time.Minute
	minReconcileWindow   = time.Minute
	minReconcileInterval = time.Minute
	maxReconcileScan     = 1000
	minRetainShort       = time.Hour      // acked messages, heartbeat samples
	minRetainLong        = 24 * time.Hour // inventory snapshots, log rows
)

// Default returns the hard-coded policy used when no snapshot exists or the
// stored document cannot be parsed.
func Default() Policy {
	return Policy{
		RealtimeMode:          "foreground",
		SyncInterval:          30 * time.Second,
		HeartbeatInterval:     20 * time.Second,
		InventoryPollInterval: 60 * time.Second,
		ContactsSyncInterval:  time.Hour,
		ReconcileEnabled:      true,
		ReconcileWindow:       10 * time.Minute,
		ReconcileInterval:     2 * time.Minute,
		ReconcileMaxScan:      200,
		RetainAcked:           24 * time.Hour,
		RetainHeartbeat:       24 * time.Hour,
		RetainInventory:       7 * 24 * time.Hour,
		RetainLogs:            7 * 24 * time.Hour,
		OverridesEnabled:      false,
	}
}

// document is the raw wire shape of a policy. Pointer fields distinguish
// absent from zero so each field can fall back independently.
type document struct {
	RealtimeMode         *string `json:"realtimeMode"`
	SyncIntervalSeconds  *int    `json:"syncIntervalSeconds"`
	HeartbeatSeconds     *int    `json:"heartbeatSeconds"`
	InventoryPollSeconds *int    `json:"inventoryPollSeconds"`
	ContactsSyncMinutes  *int    `json:"contactsSyncMinutes"`

	Reconcile *struct {
		Enabled         *bool `json:"enabled"`
		WindowMinutes   *int  `json:"windowMinutes"`
		IntervalMinutes *int  `json:"intervalMinutes"`
		MaxScanCount    *int  `json:"maxScanCount"`
	} `json:"reconcile"`

	Retention *struct {
		AckedHours     *int `json:"ackedHours"`
		HeartbeatHours *int `json:"heartbeatHours"`
		InventoryDays  *int `json:"inventoryDays"`
		LogsDays       *int `json:"logsDays"`
	} `json:"retention"`

	Overrides *struct {
		Enabled   *bool    `json:"enabled"`
		AllowKeys []string `json:"allowKeys"`
	} `json:"overrides"`

	TLS *struct {
		PinningEnabled *bool    `json:"pinningEnabled"`
		Pins           []string `json:"pins"`
	} `json:"tls"`
}

// Parse turns a raw policy document into an effective policy. A document
// that is not valid JSON yields the full defaults and an error; partial
// trust is not allowed. Individual missing or non-positive fields fall back
// to their defaults and every interval is clamped to its floor.
func Parse(raw []byte) (Policy, error) {
	p := Default()
	if len(raw) == 0 {
		return p, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Default(), err
	}

	if doc.RealtimeMode != nil && *doc.RealtimeMode != "" {
		p.RealtimeMode = *doc.RealtimeMode
	}
	setSeconds(&p.SyncInterval, doc.SyncIntervalSeconds)
	setSeconds(&p.HeartbeatInterval, doc.HeartbeatSeconds)
	setSeconds(&p.InventoryPollInterval, doc.InventoryPollSeconds)
	setMinutes(&p.ContactsSyncInterval, doc.ContactsSyncMinutes)

	if doc.Reconcile != nil {
		if doc.Reconcile.Enabled != nil {
			p.ReconcileEnabled = *doc.Reconcile.Enabled
		}
		setMinutes(&p.ReconcileWindow, doc.Reconcile.WindowMinutes)
		setMinutes(&p.ReconcileInterval, doc.Reconcile.IntervalMinutes)
		if doc.Reconcile.MaxScanCount != nil && *doc.Reconcile.MaxScanCount > 0 {
			p.ReconcileMaxScan = *doc.Reconcile.MaxScanCount
		}
	}
	if doc.Retention != nil {
		setHours(&p.RetainAcked, doc.Retention.AckedHours)
		setHours(&p.RetainHeartbeat, doc.Retention.HeartbeatHours)
		setDays(&p.RetainInventory, doc.Retention.InventoryDays)
		setDays(&p.RetainLogs, doc.Retention.LogsDays)
	}
	if doc.Overrides != nil {
		if doc.Overrides.Enabled != nil {
			p.OverridesEnabled = *doc.Overrides.Enabled
		}
		p.OverrideAllowKeys = doc.Overrides.AllowKeys
	}
	if doc.TLS != nil {
		if doc.TLS.PinningEnabled != nil {
			p.TLSPinningEnabled = *doc.TLS.PinningEnabled
		}
		p.TLSPins = doc.TLS.Pins
	}

	p.clamp()
	return p, nil
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil && *v > 0 {
		*dst = time.Duration(*v) * time.Second
	}
}

func setMinutes(dst *time.Duration, v *int) {
	if v != nil && *v > 0 {
		*dst = time.Duration(*v) * time.Minute
	}
}

func setHours(dst *time.Duration, v *int) {
	if v != nil && *v > 0 {
		*dst = time.Duration(*v) * time.Hour
	}
}

func setDays(dst *time.Duration, v *int) {
	if v != nil && *v > 0 {
		*dst = time.Duration(*v) * 24 * time.Hour
	}
}

func (p *Policy) clamp() {
	clampMin(&p.SyncInterval, minSyncInterval)
	clampMin(&p.HeartbeatInterval, minHeartbeat)
	clampMin(&p.InventoryPollInterval, minInventoryPoll)
	clampMin(&p.ContactsSyncInterval, minContactsSync)
	clampMin(&p.ReconcileWindow, minReconcileWindow)
	clampMin(&p.ReconcileInterval, minReconcileInterval)
	if p.ReconcileMaxScan <= 0 {
		p.ReconcileMaxScan = Default().ReconcileMaxScan
	}
	if p.ReconcileMaxScan > maxReconcileScan {
		p.ReconcileMaxScan = maxReconcileScan
	}
	clampMin(&p.RetainAcked, minRetainShort)
	clampMin(&p.RetainHeartbeat, minRetainShort)
	clampMin(&p.RetainInventory, minRetainLong)
	clampMin(&p.RetainLogs, minRetainLong)
}

func clampMin(d *time.Duration, floor time.Duration) {
	if *d < floor {
		*d = floor
	}
}
