// Package creds manages the device credentials handed over by the pairing
// flow. Values are stored as an AES-256-GCM encrypted blob on disk; the
// engine only ever consumes them through the Store interface.
package creds

import (
	"errors"
	"strings"
)

// Well-known credential keys.
const (
	KeyDeviceID    = "device.id"
	KeyDeviceToken = "device.token"
)

// ErrNotPaired is returned when no device identity has been stored yet.
var ErrNotPaired = errors.New("device not paired")

// Store is the secure local key-value capability the engine consumes.
// Implementations must keep sensitive values encrypted at rest.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// DeviceID returns the paired device identity from the store.
func DeviceID(s Store) (string, error) {
	id, err := s.Get(KeyDeviceID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrNotPaired
	}
	return id, nil
}

// DeviceToken returns the bearer token from the store.
func DeviceToken(s Store) (string, error) {
	tok, err := s.Get(KeyDeviceToken)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tok) == "" {
		return "", ErrNotPaired
	}
	return tok, nil
}

// Memory is an in-memory Store for tests.
type Memory map[string]string

func (m Memory) Get(key string) (string, error) { return m[key], nil }
func (m Memory) Set(key, value string) error    { m[key] = value; return nil }
