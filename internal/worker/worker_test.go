package worker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/api"
	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/policy"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
	"github.com/supermarsx/smsgate-sub000/internal/store"
)

func newWorkerStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pairedCreds() creds.Memory {
	return creds.Memory{creds.KeyDeviceID: "dev-1", creds.KeyDeviceToken: "tok"}
}

type fixedPolicies struct {
	p policy.Policy
}

func (f fixedPolicies) Effective() policy.Policy { return f.p }

func defaultPolicies() fixedPolicies {
	return fixedPolicies{p: policy.Default()}
}

// fakeSched records arms and run-now triggers without running anything.
type fakeSched struct {
	mu     sync.Mutex
	armed  map[string]time.Duration
	runNow []string
}

func newFakeSched() *fakeSched {
	return &fakeSched{armed: make(map[string]time.Duration)}
}

func (f *fakeSched) ScheduleAfter(name string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[name] = delay
}

func (f *fakeSched) RunNow(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runNow = append(f.runNow, name)
}

func (f *fakeSched) armedDelay(name string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.armed[name]
	return d, ok
}

func (f *fakeSched) runNowCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, got := range f.runNow {
		if got == name {
			n++
		}
	}
	return n
}

// fakeIngester accepts or rejects sends per sender address.
type fakeIngester struct {
	failSenders map[string]bool
	err         error
	sent        []string
}

func (f *fakeIngester) IngestMessage(_ context.Context, m *queue.Message) error {
	if f.err != nil {
		return f.err
	}
	if f.failSenders[m.Sender] {
		return &api.StatusError{Code: 500, Body: "ingest unavailable"}
	}
	f.sent = append(f.sent, m.ID)
	return nil
}

func insertQueued(t *testing.T, s *store.Store, id, sender, body string, receivedAt time.Time) *queue.Message {
	t.Helper()
	m := &queue.Message{
		ID:          id,
		DeviceID:    "dev-1",
		ReceivedAt:  receivedAt,
		Sender:      sender,
		Body:        body,
		Fingerprint: queue.Fingerprint(sender, body, receivedAt, ""),
		Status:      queue.StatusQueued,
		Provenance:  queue.ProvenancePrimary,
	}
	if err := s.InsertMessage(m); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return m
}
