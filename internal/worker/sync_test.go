package worker

import (
	"context"
	"testing"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/runtime"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
)

func TestSyncPartialFailure(t *testing.T) {
	s := newWorkerStore(t)
	now := time.Now().UTC()
	insertQueued(t, s, "m1", "+100", "first", now.Add(-3*time.Minute))
	insertQueued(t, s, "m2", "+200", "second", now.Add(-2*time.Minute))
	insertQueued(t, s, "m3", "+300", "third", now.Add(-time.Minute))

	ing := &fakeIngester{failSenders: map[string]bool{"+200": true}}
	sched := newFakeSched()
	w := NewSync(s, ing, defaultPolicies(), sched, runtime.NewStatus())

	if got := w.Run(context.Background()); got != scheduler.OutcomeRetry {
		t.Errorf("outcome = %v, want retry", got)
	}

	for id, want := range map[string]queue.Status{
		"m1": queue.StatusAcked, "m2": queue.StatusQueued, "m3": queue.StatusAcked,
	} {
		m, err := s.GetMessage(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if m.Status != want {
			t.Errorf("%s status = %s, want %s", id, m.Status, want)
		}
	}
	m2, _ := s.GetMessage("m2")
	if m2.RetryCount != 1 {
		t.Errorf("m2 retryCount = %d, want 1", m2.RetryCount)
	}
	if _, ok := sched.armedDelay(TaskSync); ok {
		t.Error("failing pass self-armed; rearm belongs to the retry backoff")
	}
}

func TestSyncCleanPassRearmsAtPolicyInterval(t *testing.T) {
	s := newWorkerStore(t)
	insertQueued(t, s, "m1", "+100", "hello", time.Now().UTC())

	sched := newFakeSched()
	status := runtime.NewStatus()
	pols := defaultPolicies()
	w := NewSync(s, &fakeIngester{}, pols, sched, status)

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Errorf("outcome = %v, want success", got)
	}
	if d, ok := sched.armedDelay(TaskSync); !ok || d != pols.p.SyncInterval {
		t.Errorf("rearm = %v/%v, want policy sync interval %v", d, ok, pols.p.SyncInterval)
	}
	if status.QueueDepth() != 0 {
		t.Errorf("queue depth = %d, want 0", status.QueueDepth())
	}
	if _, ok := status.LastSuccess(); !ok {
		t.Error("last success not recorded")
	}
}

func TestSyncFifthFailureIsTerminal(t *testing.T) {
	s := newWorkerStore(t)
	m := insertQueued(t, s, "m1", "+100", "doomed", time.Now().UTC().Add(-time.Hour))
	m.RetryCount = queue.MaxAttempts - 1
	past := time.Now().UTC().Add(-time.Hour)
	m.LastAttemptAt = &past
	if err := s.UpdateMessage(m); err != nil {
		t.Fatal(err)
	}

	ing := &fakeIngester{failSenders: map[string]bool{"+100": true}}
	w := NewSync(s, ing, defaultPolicies(), newFakeSched(), runtime.NewStatus())
	w.Run(context.Background())

	got, _ := s.GetMessage("m1")
	if got.Status != queue.StatusFailed || got.RetryCount != queue.MaxAttempts {
		t.Errorf("message = %s/%d, want failed/%d", got.Status, got.RetryCount, queue.MaxAttempts)
	}
}

func TestSyncSkipsMessagesInBackoff(t *testing.T) {
	s := newWorkerStore(t)
	m := insertQueued(t, s, "m1", "+100", "cooling off", time.Now().UTC())
	m.RetryCount = 3
	justNow := time.Now().UTC()
	m.LastAttemptAt = &justNow
	if err := s.UpdateMessage(m); err != nil {
		t.Fatal(err)
	}

	ing := &fakeIngester{}
	w := NewSync(s, ing, defaultPolicies(), newFakeSched(), runtime.NewStatus())

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Errorf("outcome = %v, want success", got)
	}
	if len(ing.sent) != 0 {
		t.Errorf("sent %d messages during backoff, want 0", len(ing.sent))
	}
	after, _ := s.GetMessage("m1")
	if after.Status != queue.StatusQueued || after.RetryCount != 3 {
		t.Errorf("message = %s/%d, want untouched queued/3", after.Status, after.RetryCount)
	}
}

func TestSyncUnpairedDoesNotBurnAttempts(t *testing.T) {
	s := newWorkerStore(t)
	insertQueued(t, s, "m1", "+100", "waiting", time.Now().UTC())

	ing := &fakeIngester{err: creds.ErrNotPaired}
	w := NewSync(s, ing, defaultPolicies(), newFakeSched(), runtime.NewStatus())

	if got := w.Run(context.Background()); got != scheduler.OutcomeRetry {
		t.Errorf("outcome = %v, want retry", got)
	}
	m, _ := s.GetMessage("m1")
	if m.Status != queue.StatusQueued || m.RetryCount != 0 {
		t.Errorf("message = %s/%d, want queued/0", m.Status, m.RetryCount)
	}
}

func TestSyncStartupRequeuesStaleSending(t *testing.T) {
	s := newWorkerStore(t)
	m := insertQueued(t, s, "m1", "+100", "mid-flight", time.Now().UTC())
	m.Status = queue.StatusSending
	if err := s.UpdateMessage(m); err != nil {
		t.Fatal(err)
	}

	w := NewSync(s, &fakeIngester{}, defaultPolicies(), newFakeSched(), runtime.NewStatus())
	if err := w.Startup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	got, _ := s.GetMessage("m1")
	if got.Status != queue.StatusQueued {
		t.Errorf("status = %s, want queued after crash recovery", got.Status)
	}
}
