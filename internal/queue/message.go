// Package queue defines the outbound message lifecycle: the pure state
// machine for send attempts, the retry backoff calculator, and the content
// fingerprint used to deduplicate capture paths.
package queue

import "time"

// Status is the lifecycle state of an outbound message.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusAcked   Status = "acked"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions are valid from s.
func (s Status) Terminal() bool {
	return s == StatusAcked || s == StatusFailed
}

// Provenance records which capture path produced a queued message.
type Provenance string

const (
	ProvenancePrimary   Provenance = "primary"
	ProvenanceBoot      Provenance = "boot"
	ProvenanceReconcile Provenance = "reconciliation"
)

// Message is one captured SMS awaiting or having completed delivery.
type Message struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"device_id"`
	Seq            int64      `json:"seq"`
	CreatedAt      time.Time  `json:"created_at"`
	ReceivedAt     time.Time  `json:"received_at"` // source-reported receive time
	Sender         string     `json:"sender"`
	Body           string     `json:"body"`
	Fingerprint    string     `json:"fingerprint"`
	LineID         string     `json:"line_id,omitempty"` // SIM/line identifier, empty if unknown
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Status         Status     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	Provenance     Provenance `json:"provenance"`
}
