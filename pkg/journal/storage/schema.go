package storage

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Timestamps are stored as Unix nanoseconds and durations as nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    status INTEGER NOT NULL,
    pages INTEGER NOT NULL DEFAULT 0,
    entities INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0,
    renewals INTEGER NOT NULL DEFAULT 0,
    duration INTEGER NOT NULL DEFAULT 0,
    truncated BOOLEAN NOT NULL DEFAULT 0,
    error TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
CREATE INDEX IF NOT EXISTS idx_requests_path ON requests(path);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const selectSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`

const insertRecord = `
INSERT INTO requests (
    id, request_id, timestamp, method, path, kind, status,
    pages, entities, bytes, renewals, duration, truncated, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const recordColumns = `id, request_id, timestamp, method, path, kind, status,
    pages, entities, bytes, renewals, duration, truncated, error`
