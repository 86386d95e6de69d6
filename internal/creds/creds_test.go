package creds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := s.Set(KeyDeviceID, "dev-123"); err != nil {
		t.Fatalf("set device id: %v", err)
	}
	if err := s.Set(KeyDeviceToken, "tok-abc"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	id, err := DeviceID(s)
	if err != nil || id != "dev-123" {
		t.Errorf("device id = %q err=%v", id, err)
	}
	tok, err := DeviceToken(s)
	if err != nil || tok != "tok-abc" {
		t.Errorf("token = %q err=%v", tok, err)
	}

	// A fresh store over the same dir reads the same values.
	again := NewFileStore(dir)
	id, err = DeviceID(again)
	if err != nil || id != "dev-123" {
		t.Errorf("reloaded device id = %q err=%v", id, err)
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.Set(KeyDeviceToken, "super-secret-token"); err != nil {
		t.Fatalf("set: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, credsFileName))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if strings.Contains(string(raw), "super-secret-token") {
		t.Error("token stored in plaintext")
	}
}

func TestUnpairedStoreReportsErrNotPaired(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if _, err := DeviceID(s); err != ErrNotPaired {
		t.Errorf("device id err = %v, want ErrNotPaired", err)
	}
	if _, err := DeviceToken(s); err != ErrNotPaired {
		t.Errorf("token err = %v, want ErrNotPaired", err)
	}
}
