// Package runtime holds the small shared status struct the workers update
// and the heartbeat and status surfaces read. Atomic fields, no locks.
package runtime

import (
	"sync/atomic"
	"time"
)

// Connection states reported upstream.
const (
	ConnOffline = "offline"
	ConnOnline  = "online"
)

// Status is the engine's shared in-process state.
type Status struct {
	queueDepth  atomic.Int64
	lastSuccess atomic.Int64 // unix seconds, 0 = never
	online      atomic.Bool
	networkType atomic.Pointer[string]
}

// NewStatus creates an empty status.
func NewStatus() *Status {
	s := &Status{}
	empty := ""
	s.networkType.Store(&empty)
	return s
}

// SetQueueDepth records the number of undelivered messages.
func (s *Status) SetQueueDepth(n int) { s.queueDepth.Store(int64(n)) }

// QueueDepth returns the last recorded queue depth.
func (s *Status) QueueDepth() int { return int(s.queueDepth.Load()) }

// MarkSendSuccess records a successful delivery and flips the engine online.
func (s *Status) MarkSendSuccess(at time.Time) {
	s.lastSuccess.Store(at.Unix())
	s.online.Store(true)
}

// LastSuccess returns the time of the last successful delivery.
func (s *Status) LastSuccess() (time.Time, bool) {
	unix := s.lastSuccess.Load()
	if unix == 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

// SetOnline records connectivity as observed by the workers.
func (s *Status) SetOnline(online bool) { s.online.Store(online) }

// Connection returns the current connection state string.
func (s *Status) Connection() string {
	if s.online.Load() {
		return ConnOnline
	}
	return ConnOffline
}

// SetNetworkType records the active network type (e.g. "wifi", "cellular").
func (s *Status) SetNetworkType(t string) { s.networkType.Store(&t) }

// NetworkType returns the last recorded network type.
func (s *Status) NetworkType() string { return *s.networkType.Load() }
