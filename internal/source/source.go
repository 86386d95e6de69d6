// Package source abstracts the external message provider the engine
// captures from and reconciles against.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized means the engine lacks permission to read the provider.
// Callers treat it as a soft disable, not a failure; permission may be
// granted later.
var ErrUnauthorized = errors.New("message source read not authorized")

// Entry is one raw message as reported by the provider.
type Entry struct {
	Sender         string    `json:"sender"`
	Body           string    `json:"body"`
	ReceivedAt     time.Time `json:"received_at"`
	LineID         string    `json:"line_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
}

// Provider is the read interface over the external source. Scan returns up
// to max entries received at or after since, oldest first; implementations
// must bound the work they do per call.
type Provider interface {
	Scan(ctx context.Context, since time.Time, max int) ([]Entry, error)
}
