package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
)

func testCreds() creds.Memory {
	return creds.Memory{
		creds.KeyDeviceID:    "dev-1",
		creds.KeyDeviceToken: "tok-1",
	}
}

func TestIngestMessageSendsPayloadAndAuth(t *testing.T) {
	var got ingestPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "/api/messages", time.Second, testCreds(), DeviceMeta{Model: "pixel"})
	m := &queue.Message{
		ID: "m1", DeviceID: "dev-1", Seq: 7,
		ReceivedAt: time.Now().UTC(), Sender: "+1555", Body: "hi",
		Fingerprint: "fp", Provenance: queue.ProvenancePrimary,
	}
	if err := c.IngestMessage(context.Background(), m); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if auth != "Bearer tok-1" {
		t.Errorf("auth header = %q", auth)
	}
	if got.Seq != 7 || got.Sender != "+1555" || got.ContentHash != "fp" || got.Provenance != "primary" {
		t.Errorf("payload = %+v", got)
	}
	if got.Device.Model != "pixel" {
		t.Errorf("device meta = %+v", got.Device)
	}
}

func TestIngestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, testCreds(), DeviceMeta{})
	err := c.IngestMessage(context.Background(), &queue.Message{ID: "m1"})
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Code != http.StatusBadGateway {
		t.Errorf("code = %d", se.Code)
	}
}

func TestUnpairedClientRefusesCalls(t *testing.T) {
	c := New("http://localhost:0", "", time.Second, creds.Memory{}, DeviceMeta{})
	err := c.IngestMessage(context.Background(), &queue.Message{ID: "m1"})
	if err != creds.ErrNotPaired {
		t.Errorf("err = %v, want ErrNotPaired", err)
	}
}

func TestFetchPolicyConditional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/config" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("If-None-Match") == `"v2"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v2"`)
		w.Write([]byte(`{"heartbeatSeconds":40}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, testCreds(), DeviceMeta{})

	raw, etag, notModified, err := c.FetchPolicy(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if notModified || etag != `"v2"` || string(raw) != `{"heartbeatSeconds":40}` {
		t.Errorf("fetch = %q etag=%q notModified=%v", raw, etag, notModified)
	}

	raw, etag, notModified, err = c.FetchPolicy(context.Background(), `"v2"`)
	if err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	if !notModified || raw != nil || etag != `"v2"` {
		t.Errorf("conditional fetch = %q etag=%q notModified=%v", raw, etag, notModified)
	}
}

func TestSendHeartbeatAndInventory(t *testing.T) {
	paths := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, testCreds(), DeviceMeta{})
	if err := c.SendHeartbeat(context.Background(), HeartbeatPayload{DeviceID: "dev-1", ClientTime: time.Now()}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := c.UploadInventory(context.Background(), InventoryPayload{DeviceID: "dev-1", CapturedAt: time.Now()}); err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if p := <-paths; p != "/presence/heartbeat" {
		t.Errorf("heartbeat path = %s", p)
	}
	if p := <-paths; p != "/device/inventory" {
		t.Errorf("inventory path = %s", p)
	}
}

func TestPairExchangesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/pair" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("pairing must be unauthenticated")
		}
		var req pairRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			t.Errorf("code = %s", req.Code)
		}
		json.NewEncoder(w).Encode(pairResponse{DeviceID: "dev-9", Token: "tok-9"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, creds.Memory{}, DeviceMeta{})
	id, tok, err := c.Pair(context.Background(), "123456")
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if id != "dev-9" || tok != "tok-9" {
		t.Errorf("pair = %s/%s", id, tok)
	}
}
