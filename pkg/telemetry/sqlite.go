package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteTelemetrySchemaV1 = `
CREATE TABLE IF NOT EXISTS telemetry_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    at_ms INTEGER NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    turn_id TEXT NOT NULL DEFAULT '',
    alias TEXT NOT NULL DEFAULT '',
    payload_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_records_name ON telemetry_records(name);
`

// SQLiteTracker stores records in a SQLite database, one JSON payload per row.
type SQLiteTracker struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ Tracker = (*SQLiteTracker)(nil)

func NewSQLiteTracker(dsn string) (*SQLiteTracker, error) {
	if dsn == "" {
		return nil, errors.New("sqlite telemetry: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open telemetry database")
	}
	if _, err := db.Exec(sqliteTelemetrySchemaV1); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not migrate telemetry database")
	}
	return &SQLiteTracker{db: db}, nil
}

func (s *SQLiteTracker) Track(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sqlite telemetry: tracker is closed")
	}

	b, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "could not marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO telemetry_records (name, at_ms, session_id, turn_id, alias, payload_json) VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.Name), r.At.UnixMilli(), r.SessionID, r.TurnID, r.Alias, string(b))
	if err != nil {
		return errors.Wrap(err, "could not insert record")
	}
	return nil
}

// Records returns the stored records, oldest first. An empty name returns
// records of every name. limit <= 0 means no limit.
func (s *SQLiteTracker) Records(ctx context.Context, name Name, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("sqlite telemetry: tracker is closed")
	}

	q := `SELECT payload_json FROM telemetry_records`
	args := []interface{}{}
	if name != "" {
		q += ` WHERE name = ?`
		args = append(args, string(name))
	}
	q += ` ORDER BY id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not query records")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []*Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "could not scan record")
		}
		r := &Record{}
		if err := json.Unmarshal([]byte(payload), r); err != nil {
			return nil, errors.Wrap(err, "could not decode record")
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

// Prune deletes records older than d.
func (s *SQLiteTracker) Prune(ctx context.Context, d time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("sqlite telemetry: tracker is closed")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM telemetry_records WHERE at_ms < ?`, time.Now().Add(-d).UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "could not prune records")
	}
	return res.RowsAffected()
}

func (s *SQLiteTracker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
