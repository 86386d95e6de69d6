package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/supermarsx/smsgate-sub000/internal/creds"
	"github.com/supermarsx/smsgate-sub000/internal/queue"
)

// Push message types delivered over the control channel.
const (
	PushTypeConfigUpdate = "CONFIG_UPDATE"
)

// PushMessage is one frame from the always-open control channel.
type PushMessage struct {
	Type    string          `json:"type"`
	Version int64           `json:"version"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// PushChannel keeps a websocket open to the backend so policy updates can
// be applied without waiting for the next pull.
type PushChannel struct {
	url     string
	creds   creds.Store
	handler func(PushMessage)
}

// NewPushChannel creates a control channel client. handler is invoked for
// every decoded frame.
func NewPushChannel(base string, credStore creds.Store, handler func(PushMessage)) *PushChannel {
	url := strings.TrimRight(base, "/") + "/device/events"
	if strings.HasPrefix(url, "https://") {
		url = "wss://" + strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return &PushChannel{url: url, creds: credStore, handler: handler}
}

// Run connects and reads frames until the context is cancelled, redialing
// with backoff after every disconnect. Missing credentials are not fatal;
// the loop just waits and tries again once pairing has happened.
func (p *PushChannel) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		connected, err := p.connectAndRead(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("Push channel disconnected", "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			// A completed dial ends the outage; the next redial starts
			// from the base delay again.
			attempt = 0
		}

		attempt++
		delay := queue.TaskDelay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (p *PushChannel) connectAndRead(ctx context.Context) (connected bool, _ error) {
	token, err := creds.DeviceToken(p.creds)
	if err != nil {
		return false, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.url, header)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	slog.Info("Push channel connected", "url", p.url)

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var msg PushMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Push channel frame not parseable", "error", err)
			continue
		}
		p.handler(msg)
	}
}
