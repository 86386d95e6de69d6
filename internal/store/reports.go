package store

import (
	"database/sql"
	"errors"
	"time"
)

// HeartbeatSample is one recorded liveness push, kept whether or not the
// network call succeeded.
type HeartbeatSample struct {
	ID            int64      `json:"id"`
	SentAt        time.Time  `json:"sent_at"`
	QueueDepth    int        `json:"queue_depth"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	NetworkType   string     `json:"network_type,omitempty"`
	InventoryHash string     `json:"inventory_hash,omitempty"`
	Delivered     bool       `json:"delivered"`
}

// AddHeartbeatSample appends a heartbeat history row.
func (s *Store) AddHeartbeatSample(h *HeartbeatSample) error {
	if h.SentAt.IsZero() {
		h.SentAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO heartbeat_samples (sent_at, queue_depth, last_success_at, network_type, inventory_hash, delivered)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.SentAt, h.QueueDepth, h.LastSuccessAt, h.NetworkType, h.InventoryHash, h.Delivered)
	return err
}

// LatestHeartbeatSample returns the most recent heartbeat row.
func (s *Store) LatestHeartbeatSample() (HeartbeatSample, bool, error) {
	var h HeartbeatSample
	var lastSuccess sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, sent_at, queue_depth, last_success_at, COALESCE(network_type, ''), COALESCE(inventory_hash, ''), delivered
		FROM heartbeat_samples ORDER BY id DESC LIMIT 1`).
		Scan(&h.ID, &h.SentAt, &h.QueueDepth, &lastSuccess, &h.NetworkType, &h.InventoryHash, &h.Delivered)
	if errors.Is(err, sql.ErrNoRows) {
		return HeartbeatSample{}, false, nil
	}
	if err != nil {
		return HeartbeatSample{}, false, err
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		h.LastSuccessAt = &t
	}
	return h, true, nil
}

// DeleteHeartbeatsBefore prunes heartbeat rows older than the cutoff.
func (s *Store) DeleteHeartbeatsBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM heartbeat_samples WHERE sent_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// InventorySnapshot is one captured set of device line facts.
type InventorySnapshot struct {
	ID          int64     `json:"id"`
	CapturedAt  time.Time `json:"captured_at"`
	SummaryHash string    `json:"summary_hash"`
	Lines       string    `json:"lines"` // JSON array of per-line facts
	Uploaded    bool      `json:"uploaded"`
}

// AddInventorySnapshot appends an inventory history row.
func (s *Store) AddInventorySnapshot(snap *InventorySnapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO inventory_snapshots (captured_at, summary_hash, lines, uploaded)
		VALUES (?, ?, ?, ?)`,
		snap.CapturedAt, snap.SummaryHash, snap.Lines, snap.Uploaded)
	return err
}

// LatestInventorySnapshot returns the most recent inventory row.
func (s *Store) LatestInventorySnapshot() (InventorySnapshot, bool, error) {
	var snap InventorySnapshot
	err := s.db.QueryRow(`
		SELECT id, captured_at, summary_hash, lines, uploaded
		FROM inventory_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.CapturedAt, &snap.SummaryHash, &snap.Lines, &snap.Uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return InventorySnapshot{}, false, nil
	}
	if err != nil {
		return InventorySnapshot{}, false, err
	}
	return snap, true, nil
}

// DeleteInventoryBefore prunes inventory rows older than the cutoff.
func (s *Store) DeleteInventoryBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM inventory_snapshots WHERE captured_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpsertTaskRun persists the latest outcome for a named task (best-effort
// bookkeeping for the status command).
func (s *Store) UpsertTaskRun(name, status string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO task_runs (task_name, last_status, last_run_at, run_count, updated_at)
		VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(task_name) DO UPDATE SET
			last_status = excluded.last_status,
			last_run_at = excluded.last_run_at,
			run_count = task_runs.run_count + 1,
			updated_at = CURRENT_TIMESTAMP`,
		name, status, at)
	return err
}

// TaskRun reports the last recorded outcome for a named task.
func (s *Store) TaskRun(name string) (status string, lastRun time.Time, ok bool, err error) {
	var at sql.NullTime
	err = s.db.QueryRow(`SELECT COALESCE(last_status, ''), last_run_at FROM task_runs WHERE task_name = ?`, name).
		Scan(&status, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	if at.Valid {
		lastRun = at.Time
	}
	return status, lastRun, true, nil
}

// AddLog appends a log row for diagnostics.
func (s *Store) AddLog(component, level, message string) error {
	_, err := s.db.Exec(`INSERT INTO logs (component, level, message) VALUES (?, ?, ?)`,
		component, level, message)
	return err
}

// DeleteLogsBefore prunes log rows older than the cutoff.
func (s *Store) DeleteLogsBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
