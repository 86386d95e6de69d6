// Package worker holds the engine's periodic tasks: delivery sync,
// reconciliation, heartbeat, inventory, and retention. Workers never call
// each other; they communicate through the store and the scheduler.
package worker

import (
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/policy"
)

// Task names as registered with the scheduler.
const (
	TaskSync      = "sync"
	TaskReconcile = "reconcile"
	TaskHeartbeat = "heartbeat"
	TaskInventory = "inventory"
	TaskRetention = "retention"
	TaskPolicy    = "policy"
)

// Rearmer is the scheduling surface workers use to arm their next run.
type Rearmer interface {
	ScheduleAfter(name string, delay time.Duration)
	RunNow(name string)
}

// PolicySource yields the current effective policy. Workers read it at the
// start of every run so a policy change takes effect on the next pass.
type PolicySource interface {
	Effective() policy.Policy
}
