package store

// Schema creates the engine tables. All statements are idempotent so the
// schema can be re-applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	received_at DATETIME NOT NULL,
	sender TEXT NOT NULL,
	body TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	line_id TEXT DEFAULT '',
	subscription_id TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'queued',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_attempt_at DATETIME,
	provenance TEXT NOT NULL DEFAULT 'primary'
);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_fingerprint ON messages(fingerprint, received_at);
CREATE INDEX IF NOT EXISTS idx_messages_device_seq ON messages(device_id, seq);

CREATE TABLE IF NOT EXISTS policy_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version INTEGER NOT NULL,
	etag TEXT DEFAULT '',
	raw TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_policy_version ON policy_snapshots(version);

CREATE TABLE IF NOT EXISTS local_overrides (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	raw TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS heartbeat_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	queue_depth INTEGER NOT NULL DEFAULT 0,
	last_success_at DATETIME,
	network_type TEXT DEFAULT '',
	inventory_hash TEXT DEFAULT '',
	delivered BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_heartbeat_sent ON heartbeat_samples(sent_at);

CREATE TABLE IF NOT EXISTS inventory_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	summary_hash TEXT NOT NULL,
	lines TEXT NOT NULL DEFAULT '[]',
	uploaded BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_inventory_captured ON inventory_snapshots(captured_at);

CREATE TABLE IF NOT EXISTS task_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_name TEXT UNIQUE NOT NULL,
	last_status TEXT DEFAULT '',
	last_run_at DATETIME,
	run_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	component TEXT NOT NULL,
	level TEXT NOT NULL DEFAULT 'info',
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_logs_created ON logs(created_at);
`
