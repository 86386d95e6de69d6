// Package api is the HTTP client for the backend: message ingest, presence
// heartbeat, inventory upload, conditional policy fetch, and pairing. Every
// call carries its own timeout and bearer auth from the credential store.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
)

// DeviceMeta is the static device description attached to ingest calls.
type DeviceMeta struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	AppVersion   string `json:"app_version,omitempty"`
}

// Client talks to one backend on behalf of one device.
type Client struct {
	base       string
	ingestPath string
	http       *http.Client
	creds      creds.Store
	meta       DeviceMeta
}

// New creates a backend client. ingestPath defaults to /messages.
func New(base, ingestPath string, timeout time.Duration, credStore creds.Store, meta DeviceMeta) *Client {
	if ingestPath == "" {
		ingestPath = "/messages"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:       strings.TrimRight(base, "/"),
		ingestPath: ingestPath,
		http:       &http.Client{Timeout: timeout},
		creds:      credStore,
		meta:       meta,
	}
}

// Base returns the backend base URL.
func (c *Client) Base() string { return c.base }

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

type ingestPayload struct {
	DeviceID       string     `json:"device_id"`
	Seq            int64      `json:"seq"`
	ReceivedAt     time.Time  `json:"received_at"`
	Sender         string     `json:"sender"`
	Content        string     `json:"content"`
	ContentHash    string     `json:"content_hash"`
	LineID         string     `json:"line_id,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Provenance     string     `json:"provenance"`
	Device         DeviceMeta `json:"device"`
}

// IngestMessage delivers one queued message. A 2xx response means the
// backend has it; anything else is a failure for the retry machinery.
func (c *Client) IngestMessage(ctx context.Context, m *queue.Message) error {
	payload := ingestPayload{
		DeviceID:       m.DeviceID,
		Seq:            m.Seq,
		ReceivedAt:     m.ReceivedAt,
		Sender:         m.Sender,
		Content:        m.Body,
		ContentHash:    m.Fingerprint,
		LineID:         m.LineID,
		SubscriptionID: m.SubscriptionID,
		Provenance:     string(m.Provenance),
		Device:         c.meta,
	}
	return c.post(ctx, c.ingestPath, payload)
}

// HeartbeatPayload is the periodic liveness report.
type HeartbeatPayload struct {
	DeviceID      string     `json:"device_id"`
	ClientTime    time.Time  `json:"client_time"`
	QueueDepth    int        `json:"queue_depth"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	Connection    string     `json:"connection_state"`
	NetworkType   string     `json:"network_type,omitempty"`
	InventoryHash string     `json:"inventory_hash,omitempty"`
}

// SendHeartbeat posts a presence heartbeat.
func (c *Client) SendHeartbeat(ctx context.Context, hb HeartbeatPayload) error {
	return c.post(ctx, "/presence/heartbeat", hb)
}

// LineFact describes one active communication line.
type LineFact struct {
	Slot    int    `json:"slot"`
	Carrier string `json:"carrier,omitempty"`
	Number  string `json:"number,omitempty"`
	ICCID   string `json:"iccid,omitempty"`
}

// InventoryPayload is the uploaded device inventory snapshot.
type InventoryPayload struct {
	DeviceID   string     `json:"device_id"`
	CapturedAt time.Time  `json:"captured_at"`
	Lines      []LineFact `json:"lines"`
}

// UploadInventory posts the device inventory.
func (c *Client) UploadInventory(ctx context.Context, inv InventoryPayload) error {
	return c.post(ctx, "/device/inventory", inv)
}

// FetchPolicy performs a conditional GET of the policy document. When the
// backend answers 304 the returned notModified flag is set and raw is nil.
func (c *Client) FetchPolicy(ctx context.Context, etag string) (raw []byte, newETag string, notModified bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/device/config", nil)
	if err != nil {
		return nil, "", false, err
	}
	if err := c.authorize(req); err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, etag, true, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, "", false, err
		}
		return body, resp.Header.Get("ETag"), false, nil
	default:
		return nil, "", false, readStatusError(resp)
	}
}

type pairRequest struct {
	Code string `json:"code"`
}

type pairResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

// Pair exchanges a one-time code for a device identity and bearer token.
// Unlike the other calls it is unauthenticated.
func (c *Client) Pair(ctx context.Context, code string) (deviceID, token string, err error) {
	body, _ := json.Marshal(pairRequest{Code: code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/device/pair", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", readStatusError(resp)
	}

	var out pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("parse pair response: %w", err)
	}
	if out.DeviceID == "" || out.Token == "" {
		return "", "", fmt.Errorf("pair response missing credentials")
	}
	return out.DeviceID, out.Token, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := creds.DeviceToken(c.creds)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
