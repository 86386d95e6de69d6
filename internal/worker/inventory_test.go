package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/scheduler"
)

type fakeUploader struct {
	err     error
	uploads []api.InventoryPayload
}

func (f *fakeUploader) UploadInventory(_ context.Context, inv api.InventoryPayload) error {
	if f.err != nil {
		return f.err
	}
	f.uploads = append(f.uploads, inv)
	return nil
}

func testLines() StaticLines {
	return StaticLines{{Slot: 0, Carrier: "ExampleCell", Number: "+15550001111", ICCID: "8901"}}
}

func TestInventoryUploadsOnceWhileUnchanged(t *testing.T) {
	s := newWorkerStore(t)
	up := &fakeUploader{}
	w := NewInventory(s, testLines(), up, defaultPolicies(), newFakeSched(), pairedCreds())

	for i := 0; i < 3; i++ {
		if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
			t.Fatalf("run %d outcome = %v, want success", i, got)
		}
	}

	if len(up.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1 (hash unchanged)", len(up.uploads))
	}
	snap, ok, _ := s.LatestInventorySnapshot()
	if !ok || !snap.Uploaded || snap.SummaryHash == "" {
		t.Errorf("snapshot = %+v/%v", snap, ok)
	}
}

func TestInventoryRetriesFailedUploadNextPass(t *testing.T) {
	s := newWorkerStore(t)
	up := &fakeUploader{err: errors.New("connection refused")}
	w := NewInventory(s, testLines(), up, defaultPolicies(), newFakeSched(), pairedCreds())

	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", got)
	}
	if snap, ok, _ := s.LatestInventorySnapshot(); !ok || snap.Uploaded {
		t.Fatalf("snapshot = %+v/%v, want undelivered row", snap, ok)
	}

	up.err = nil
	if got := w.Run(context.Background()); got != scheduler.OutcomeSuccess {
		t.Fatalf("second outcome = %v, want success", got)
	}
	if len(up.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1 after recovery", len(up.uploads))
	}
	if snap, _, _ := s.LatestInventorySnapshot(); !snap.Uploaded {
		t.Error("snapshot still marked undelivered after successful upload")
	}
}

func TestInventoryRearmsAtPolicyInterval(t *testing.T) {
	sched := newFakeSched()
	pols := defaultPolicies()
	w := NewInventory(newWorkerStore(t), testLines(), &fakeUploader{}, pols, sched, pairedCreds())

	w.Run(context.Background())
	if d, ok := sched.armedDelay(TaskInventory); !ok || d != pols.p.InventoryPollInterval {
		t.Errorf("rearm = %v/%v, want inventory poll interval", d, ok)
	}
}
