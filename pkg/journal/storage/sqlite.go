package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
)

const backendSQLite = "sqlite"

// SQLiteStorage persists records in a SQLite database.
type SQLiteStorage struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	path       string
	logger     *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path and
// applies the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, journal.NewStorageError(backendSQLite, "open", errors.New("path cannot be empty"))
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, journal.NewStorageError(backendSQLite, "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, journal.NewStorageError(backendSQLite, "open", err)
	}

	// One connection: SQLite has a single writer and the pragmas below are
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "journal.storage.sqlite"),
	}

	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	s.insertStmt, err = db.Prepare(insertRecord)
	if err != nil {
		db.Close()
		return nil, journal.NewStorageError(backendSQLite, "prepare", err)
	}

	s.logger.Info("SQLite journal opened",
		"path", cfg.Path,
		"wal_mode", cfg.WALEnabled(),
	)

	return s, nil
}

func (s *SQLiteStorage) initialize(cfg config.SQLiteConfig) error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		return journal.NewStorageError(backendSQLite, "set_busy_timeout", err)
	}

	if cfg.WALEnabled() {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return journal.NewStorageError(backendSQLite, "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return journal.NewStorageError(backendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return journal.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(selectSchemaVersion).Scan(&version); err != nil {
		return journal.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return journal.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store inserts a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *journal.Record) error {
	var errVal any
	if record.Error != "" {
		errVal = record.Error
	}

	_, err := s.insertStmt.ExecContext(ctx,
		record.ID, record.RequestID, record.Timestamp.UnixNano(),
		record.Method, record.Path, record.Kind, record.Status,
		record.Pages, record.Entities, record.Bytes, record.Renewals,
		int64(record.Duration), record.Truncated, errVal,
	)
	if err != nil {
		return journal.NewStorageError(backendSQLite, "store", err)
	}
	return nil
}

// Query returns the matching records, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.Record, error) {
	stmt, args := selectQuery(query)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, journal.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*journal.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, journal.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError(backendSQLite, "query", err)
	}

	return records, nil
}

// QueryStream sends the matching records over a channel, newest first.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *journal.Query) (<-chan *journal.Record, <-chan error, error) {
	stmt, args := selectQuery(query)

	recordsCh := make(chan *journal.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			errCh <- journal.NewStorageError(backendSQLite, "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				errCh <- journal.NewStorageError(backendSQLite, "scan", err)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}

		if err := rows.Err(); err != nil {
			errCh <- journal.NewStorageError(backendSQLite, "query_stream", err)
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	stmt := "SELECT COUNT(*) FROM requests"
	where, args := whereClause(query)
	if where != "" {
		stmt += " WHERE " + where
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, journal.NewStorageError(backendSQLite, "count", err)
	}
	return n, nil
}

// Delete removes the matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	stmt := "DELETE FROM requests"
	where, args := whereClause(query)
	if where != "" {
		stmt += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, journal.NewStorageError(backendSQLite, "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError(backendSQLite, "delete", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	if err := s.db.Close(); err != nil {
		return journal.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("SQLite journal closed", "path", s.path)
	return nil
}

func selectQuery(query *journal.Query) (string, []any) {
	stmt := "SELECT " + recordColumns + " FROM requests"
	where, args := whereClause(query)
	if where != "" {
		stmt += " WHERE " + where
	}
	stmt += " ORDER BY timestamp DESC, id DESC"

	switch {
	case query.Limit > 0:
		stmt += fmt.Sprintf(" LIMIT %d", query.Limit)
	case query.Offset > 0:
		stmt += " LIMIT -1"
	}
	if query.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", query.Offset)
	}
	return stmt, args
}

// whereClause renders the filters of query without the WHERE keyword.
func whereClause(query *journal.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.Since.UnixNano())
	}
	if query.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.Until.UnixNano())
	}
	if query.Method != "" {
		conditions = append(conditions, "method = ?")
		args = append(args, query.Method)
	}
	if query.PathPrefix != "" {
		// instr is case sensitive, unlike LIKE.
		conditions = append(conditions, "instr(path, ?) = 1")
		args = append(args, query.PathPrefix)
	}
	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, query.Kind)
	}
	if query.MinStatus > 0 {
		conditions = append(conditions, "status >= ?")
		args = append(args, query.MinStatus)
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*journal.Record, error) {
	var (
		record   journal.Record
		ts       int64
		duration int64
		errVal   sql.NullString
	)

	err := rows.Scan(
		&record.ID, &record.RequestID, &ts,
		&record.Method, &record.Path, &record.Kind, &record.Status,
		&record.Pages, &record.Entities, &record.Bytes, &record.Renewals,
		&duration, &record.Truncated, &errVal,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = time.Unix(0, ts)
	record.Duration = time.Duration(duration)
	if errVal.Valid {
		record.Error = errVal.String
	}
	return &record, nil
}
