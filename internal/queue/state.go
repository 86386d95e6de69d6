package queue

import (
	"fmt"
	"time"
)

// MaxAttempts is the number of send failures after which a message is
// marked failed for good.
const MaxAttempts = 5

// OnSendStart transitions a queued message to sending and stamps the
// attempt time. The sending state must always be observed before acked so
// that a crash mid-send leaves a recognizable row behind.
func OnSendStart(m *Message, now time.Time) error {
	if m.Status != StatusQueued {
		return fmt.Errorf("send start: message %s is %s, want %s", m.ID, m.Status, StatusQueued)
	}
	m.Status = StatusSending
	t := now
	m.LastAttemptAt = &t
	return nil
}

// OnSendSuccess transitions a sending message to acked.
func OnSendSuccess(m *Message) error {
	if m.Status != StatusSending {
		return fmt.Errorf("send success: message %s is %s, want %s", m.ID, m.Status, StatusSending)
	}
	m.Status = StatusAcked
	return nil
}

// OnSendFailure records a failed attempt. The retry count only ever grows
// here; batch-level retries must not touch it. Once MaxAttempts is reached
// the message is failed terminally, otherwise it goes back to queued and the
// returned delay says how long to wait before the next attempt.
func OnSendFailure(m *Message) (time.Duration, error) {
	if m.Status != StatusSending {
		return 0, fmt.Errorf("send failure: message %s is %s, want %s", m.ID, m.Status, StatusSending)
	}
	m.RetryCount++
	if m.RetryCount >= MaxAttempts {
		m.Status = StatusFailed
		return 0, nil
	}
	m.Status = StatusQueued
	return RetryDelay(m.RetryCount), nil
}
