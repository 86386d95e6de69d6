package store

import (
	"database/sql"
	"errors"
	"time"
)

// PolicySnapshot is one stored raw policy document.
type PolicySnapshot struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	ETag      string    `json:"etag,omitempty"`
	Raw       string    `json:"raw"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SavePolicySnapshot appends a new policy row. The latest row (highest id)
// is the authoritative one.
func (s *Store) SavePolicySnapshot(version int64, etag, raw string) error {
	_, err := s.db.Exec(`
		INSERT INTO policy_snapshots (version, etag, raw, fetched_at)
		VALUES (?, ?, ?, ?)`,
		version, etag, raw, time.Now().UTC())
	return err
}

// LatestPolicySnapshot returns the most recent policy row, or ok=false when
// none has been stored yet.
func (s *Store) LatestPolicySnapshot() (PolicySnapshot, bool, error) {
	var snap PolicySnapshot
	err := s.db.QueryRow(`
		SELECT id, version, COALESCE(etag, ''), raw, fetched_at
		FROM policy_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.Version, &snap.ETag, &snap.Raw, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PolicySnapshot{}, false, nil
	}
	if err != nil {
		return PolicySnapshot{}, false, err
	}
	return snap, true, nil
}

// DeletePolicySnapshotsBefore prunes superseded policy rows, always keeping
// the latest one.
func (s *Store) DeletePolicySnapshotsBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM policy_snapshots
		WHERE fetched_at < ? AND id != (SELECT MAX(id) FROM policy_snapshots)`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// SaveOverrides replaces the single local overrides blob.
func (s *Store) SaveOverrides(raw string) error {
	_, err := s.db.Exec(`
		INSERT INTO local_overrides (id, raw, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET raw = excluded.raw, updated_at = excluded.updated_at`,
		raw, time.Now().UTC())
	return err
}

// LatestOverrides returns the stored overrides blob, empty when unset.
func (s *Store) LatestOverrides() (string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT raw FROM local_overrides WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return raw, err
}
