package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/bus"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/runtime"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
)

type fakeHeartbeatSender struct {
	err  error
	sent []api.HeartbeatPayload
}

func (f *fakeHeartbeatSender) SendHeartbeat(_ context.Context, hb api.HeartbeatPayload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, hb)
	return nil
}

func TestHeartbeatDeliversAndRecords(t *testing.T) {
	s := newWorkerStore(t)
	insertQueued(t, s, "m1", "+100", "pending", time.Now().UTC())

	sender := &fakeHeartbeatSender{}
	sched := newFakeSched()
	status := runtime.NewStatus()
	status.SetNetworkType("wifi")
	pols := defaultPolicies()
	w := NewHeartbeat(s, sender, pols, sched, status, pairedCreds(), nil)

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", got)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	hb := sender.sent[0]
	if hb.DeviceID != "dev-1" || hb.QueueDepth != 1 || hb.NetworkType != "wifi" {
		t.Errorf("payload = %+v", hb)
	}

	sample, ok, err := s.LatestHeartbeatSample()
	if err != nil || !ok {
		t.Fatalf("sample = %v, %v", ok, err)
	}
	if !sample.Delivered || sample.QueueDepth != 1 {
		t.Errorf("sample = %+v, want delivered with depth 1", sample)
	}
	if d, armed := sched.armedDelay(TaskHeartbeat); !armed || d != pols.p.HeartbeatInterval {
		t.Errorf("rearm = %v/%v, want heartbeat interval", d, armed)
	}
}

func TestHeartbeatRecordsSampleWhenNetworkFails(t *testing.T) {
	s := newWorkerStore(t)
	sender := &fakeHeartbeatSender{err: errors.New("connection refused")}
	sched := newFakeSched()
	status := runtime.NewStatus()
	status.SetOnline(true)
	w := NewHeartbeat(s, sender, defaultPolicies(), sched, status, pairedCreds(), nil)

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success (cadence stays fixed)", got)
	}

	sample, ok, _ := s.LatestHeartbeatSample()
	if !ok || sample.Delivered {
		t.Errorf("sample = %+v/%v, want undelivered row", sample, ok)
	}
	if status.Connection() != runtime.ConnOffline {
		t.Errorf("connection = %s, want offline after failed push", status.Connection())
	}
	if _, armed := sched.armedDelay(TaskHeartbeat); !armed {
		t.Error("heartbeat not re-armed after failure")
	}
}

func TestHeartbeatPublishesConnectivityRestored(t *testing.T) {
	s := newWorkerStore(t)
	sender := &fakeHeartbeatSender{}
	status := runtime.NewStatus()
	status.SetOnline(false)
	b := bus.New()
	w := NewHeartbeat(s, sender, defaultPolicies(), newFakeSched(), status, pairedCreds(), b)

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", got)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending events = %d, want 1 after offline -> online", b.Pending())
	}

	// A second successful pass is not a transition and stays quiet.
	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", got)
	}
	if b.Pending() != 1 {
		t.Errorf("pending events = %d, want 1 (no event while already online)", b.Pending())
	}
}

func TestHeartbeatUnpairedRecordsLocally(t *testing.T) {
	s := newWorkerStore(t)
	sender := &fakeHeartbeatSender{}
	w := NewHeartbeat(s, sender, defaultPolicies(), newFakeSched(), runtime.NewStatus(), creds.Memory{}, nil)

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", got)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0 while unpaired", len(sender.sent))
	}
	if _, ok, _ := s.LatestHeartbeatSample(); !ok {
		t.Error("no local sample recorded while unpaired")
	}
}
