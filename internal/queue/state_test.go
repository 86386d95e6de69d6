package queue

import (
	"testing"
	"time"
)

func newTestMessage() *Message {
	return &Message{
		ID:         "m1",
		DeviceID:   "dev1",
		Sender:     "+15550001111",
		Body:       "hello",
		Status:     StatusQueued,
		Provenance: ProvenancePrimary,
	}
}

func TestSendStartStampsAttempt(t *testing.T) {
	m := newTestMessage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := OnSendStart(m, now); err != nil {
		t.Fatalf("send start: %v", err)
	}
	if m.Status != StatusSending {
		t.Errorf("status = %s, want %s", m.Status, StatusSending)
	}
	if m.LastAttemptAt == nil || !m.LastAttemptAt.Equal(now) {
		t.Errorf("last attempt = %v, want %v", m.LastAttemptAt, now)
	}
}

func TestSendStartRejectsNonQueued(t *testing.T) {
	for _, status := range []Status{StatusSending, StatusAcked, StatusFailed} {
		m := newTestMessage()
		m.Status = status
		if err := OnSendStart(m, time.Now()); err == nil {
			t.Errorf("send start from %s should fail", status)
		}
	}
}

func TestSendSuccessRequiresSending(t *testing.T) {
	m := newTestMessage()
	if err := OnSendSuccess(m); err == nil {
		t.Error("queued -> acked without sending should fail")
	}

	if err := OnSendStart(m, time.Now()); err != nil {
		t.Fatalf("send start: %v", err)
	}
	if err := OnSendSuccess(m); err != nil {
		t.Fatalf("send success: %v", err)
	}
	if m.Status != StatusAcked {
		t.Errorf("status = %s, want %s", m.Status, StatusAcked)
	}

	// Terminal: nothing moves an acked message back.
	if err := OnSendStart(m, time.Now()); err == nil {
		t.Error("send start after ack should fail")
	}
}

func TestSendFailureRequeuesUntilMaxAttempts(t *testing.T) {
	m := newTestMessage()

	for attempt := 1; attempt < MaxAttempts; attempt++ {
		if err := OnSendStart(m, time.Now()); err != nil {
			t.Fatalf("attempt %d send start: %v", attempt, err)
		}
		delay, err := OnSendFailure(m)
		if err != nil {
			t.Fatalf("attempt %d send failure: %v", attempt, err)
		}
		if m.Status != StatusQueued {
			t.Fatalf("attempt %d: status = %s, want %s", attempt, m.Status, StatusQueued)
		}
		if m.RetryCount != attempt {
			t.Fatalf("attempt %d: retry count = %d", attempt, m.RetryCount)
		}
		if delay < 0 {
			t.Fatalf("attempt %d: negative delay %v", attempt, delay)
		}
	}

	// Fifth failure is terminal.
	if err := OnSendStart(m, time.Now()); err != nil {
		t.Fatalf("final send start: %v", err)
	}
	if _, err := OnSendFailure(m); err != nil {
		t.Fatalf("final send failure: %v", err)
	}
	if m.Status != StatusFailed {
		t.Errorf("status = %s, want %s", m.Status, StatusFailed)
	}
	if m.RetryCount != MaxAttempts {
		t.Errorf("retry count = %d, want %d", m.RetryCount, MaxAttempts)
	}

	if err := OnSendStart(m, time.Now()); err == nil {
		t.Error("send start after terminal failure should fail")
	}
}

func TestRetryCountNeverDecreases(t *testing.T) {
	m := newTestMessage()
	prev := 0
	for i := 0; i < MaxAttempts; i++ {
		if m.Status.Terminal() {
			break
		}
		_ = OnSendStart(m, time.Now())
		_, _ = OnSendFailure(m)
		if m.RetryCount < prev {
			t.Fatalf("retry count decreased: %d -> %d", prev, m.RetryCount)
		}
		prev = m.RetryCount
	}
}
