package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/supermarsx/smsgate-sub000/internal/queue"
)

// InsertMessage persists a new outbound message, assigning the next
// per-device sequence number inside the same transaction.
func (s *Store) InsertMessage(m *queue.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE device_id = ?`, m.DeviceID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next seq for device %s: %w", m.DeviceID, err)
	}
	m.Seq = seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO messages (id, device_id, seq, created_at, received_at, sender, body, fingerprint, line_id, subscription_id, status, retry_count, last_attempt_at, provenance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.DeviceID, m.Seq, m.CreatedAt, m.ReceivedAt, m.Sender, m.Body,
		m.Fingerprint, m.LineID, m.SubscriptionID, string(m.Status), m.RetryCount,
		m.LastAttemptAt, string(m.Provenance),
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return tx.Commit()
}

// UpdateMessage persists the mutable message fields after a state machine
// transition. A single-row write so a crash leaves the store consistent.
func (s *Store) UpdateMessage(m *queue.Message) error {
	res, err := s.db.Exec(`
		UPDATE messages SET status = ?, retry_count = ?, last_attempt_at = ?
		WHERE id = ?`,
		string(m.Status), m.RetryCount, m.LastAttemptAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update message %s: %w", m.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update message %s: no such row", m.ID)
	}
	return nil
}

// GetMessage loads one message by id.
func (s *Store) GetMessage(id string) (*queue.Message, error) {
	row := s.db.QueryRow(messageSelect+` WHERE id = ?`, id)
	return scanMessage(row)
}

// MessagesByStatus returns up to limit messages in the given status, oldest
// first.
func (s *Store) MessagesByStatus(status queue.Status, limit int) ([]*queue.Message, error) {
	rows, err := s.db.Query(messageSelect+` WHERE status = ? ORDER BY created_at ASC, seq ASC LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountByStatus returns row counts keyed by status.
func (s *Store) CountByStatus() (map[queue.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM messages GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[queue.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[queue.Status(status)] = n
	}
	return counts, rows.Err()
}

// QueueDepth returns the number of messages still awaiting delivery.
func (s *Store) QueueDepth() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE status IN (?, ?)`,
		string(queue.StatusQueued), string(queue.StatusSending)).Scan(&n)
	return n, err
}

// CountFingerprint reports how many rows carry the fingerprint within the
// receive-time range. Used by reconciliation as its dedup check.
func (s *Store) CountFingerprint(fingerprint string, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE fingerprint = ? AND received_at >= ? AND received_at <= ?`,
		fingerprint, from, to).Scan(&n)
	return n, err
}

// RequeueStaleSending resets every row left in sending back to queued.
// Called once on startup: a row stuck in sending means a previous run died
// mid-flight, and at-least-once delivery wants it retried.
func (s *Store) RequeueStaleSending() (int, error) {
	res, err := s.db.Exec(`UPDATE messages SET status = ? WHERE status = ?`,
		string(queue.StatusQueued), string(queue.StatusSending))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteTerminalBefore removes acked and failed messages created before the
// cutoff. Returns the number of rows pruned.
func (s *Store) DeleteTerminalBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM messages
		WHERE status IN (?, ?) AND created_at < ?`,
		string(queue.StatusAcked), string(queue.StatusFailed), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const messageSelect = `
	SELECT id, device_id, seq, created_at, received_at, sender, body, fingerprint,
	       COALESCE(line_id, ''), COALESCE(subscription_id, ''), status, retry_count,
	       last_attempt_at, provenance
	FROM messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*queue.Message, error) {
	var m queue.Message
	var status, provenance string
	var lastAttempt sql.NullTime
	err := row.Scan(
		&m.ID, &m.DeviceID, &m.Seq, &m.CreatedAt, &m.ReceivedAt, &m.Sender,
		&m.Body, &m.Fingerprint, &m.LineID, &m.SubscriptionID, &status,
		&m.RetryCount, &lastAttempt, &provenance,
	)
	if err != nil {
		return nil, err
	}
	m.Status = queue.Status(status)
	m.Provenance = queue.Provenance(provenance)
	if lastAttempt.Valid {
		t := lastAttempt.Time
		m.LastAttemptAt = &t
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*queue.Message, error) {
	var out []*queue.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
