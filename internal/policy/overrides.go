package policy

import (
	"encoding/json"
	"time"
)

// Overrides is the device-local blob of operator-entered settings. Values
// are numeric in the unit of the key they shadow; only positive values take
// effect.
type Overrides map[string]float64

// ParseOverrides decodes the stored overrides blob. A malformed blob is
// treated as empty; local state must never break the effective policy.
func ParseOverrides(raw []byte) Overrides {
	if len(raw) == 0 {
		return nil
	}
	var o Overrides
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil
	}
	return o
}

// Apply replaces policy fields with override values key by key. A key not in
// the policy's allow-list is silently ignored so a stale override payload
// cannot widen its own privilege; an empty allow-list admits every key.
// Non-positive values leave the remote value untouched.
func (p *Policy) Apply(o Overrides) {
	if !p.OverridesEnabled || len(o) == 0 {
		return
	}
	for key, val := range o {
		if val <= 0 {
			continue
		}
		if !p.keyAllowed(key) {
			continue
		}
		p.setOverride(key, val)
	}
	p.clamp()
}

func (p *Policy) keyAllowed(key string) bool {
	if len(p.OverrideAllowKeys) == 0 {
		return true
	}
	for _, allowed := range p.OverrideAllowKeys {
		if allowed == key {
			return true
		}
	}
	return false
}

func (p *Policy) setOverride(key string, val float64) {
	switch key {
	case "syncIntervalSeconds":
		p.SyncInterval = time.Duration(val * float64(time.Second))
	case "heartbeatSeconds":
		p.HeartbeatInterval = time.Duration(val * float64(time.Second))
	case "inventoryPollSeconds":
		p.InventoryPollInterval = time.Duration(val * float64(time.Second))
	case "contactsSyncMinutes":
		p.ContactsSyncInterval = time.Duration(val * float64(time.Minute))
	case "reconcile.windowMinutes":
		p.ReconcileWindow = time.Duration(val * float64(time.Minute))
	case "reconcile.intervalMinutes":
		p.ReconcileInterval = time.Duration(val * float64(time.Minute))
	case "reconcile.maxScanCount":
		p.ReconcileMaxScan = int(val)
	case "retention.ackedHours":
		p.RetainAcked = time.Duration(val * float64(time.Hour))
	case "retention.heartbeatHours":
		p.RetainHeartbeat = time.Duration(val * float64(time.Hour))
	case "retention.inventoryDays":
		p.RetainInventory = time.Duration(val * 24 * float64(time.Hour))
	case "retention.logsDays":
		p.RetainLogs = time.Duration(val * 24 * float64(time.Hour))
	}
}
