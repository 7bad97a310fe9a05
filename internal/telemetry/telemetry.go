// Package telemetry is the optional SQLite key/value sink, keyed by
// (program, run-id, phase), grounded on scaffold.cc's
// `DB db; addToDb(db, key, val)` calls scattered through every cleanup
// pass there. The no-op Sink returned by Open("") does nothing, matching
// scaffold.cc's "if (!opt::db.empty())" guard.
package telemetry

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Sink writes run telemetry to a SQLite database. The zero value (and a
// Sink returned for an empty path) is safe to call and does nothing.
type Sink struct {
	db    *sql.DB
	runID string
}

const schema = `
CREATE TABLE IF NOT EXISTS telemetry (
	run_id  TEXT NOT NULL,
	program TEXT NOT NULL,
	phase   TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL
);`

// Open opens (creating if needed) the SQLite database at path and returns a
// Sink bound to runID. An empty path yields a no-op Sink.
func Open(path, runID string) (*Sink, error) {
	if path == "" {
		return &Sink{}, nil
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "telemetry: opening %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "telemetry: creating schema")
	}
	return &Sink{db: db, runID: runID}, nil
}

// Add records one key/value row for program/phase. A no-op Sink silently
// drops the row.
func (s *Sink) Add(program, phase, key, value string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO telemetry (run_id, program, phase, key, value) VALUES (?, ?, ?, ?, ?)`,
		s.runID, program, phase, key, value,
	)
	if err != nil {
		return errors.Wrap(err, "telemetry: insert")
	}
	return nil
}

// Close releases the underlying database handle, if any.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
