// Package catalog records the metadata of every timeline the service builds.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/mager/chromamind/chromamind"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrDisabled is returned by reads when no database is configured.
var ErrDisabled = errors.New("timeline catalog disabled")

const schema = `
	CREATE TABLE IF NOT EXISTS timelines (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL DEFAULT '',
		total_frames INTEGER NOT NULL,
		duration_ms  BIGINT NOT NULL,
		tempo_bpm    DOUBLE PRECISION NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		version      TEXT NOT NULL
	)
`

// Entry is one catalog row.
type Entry struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	TotalFrames int       `json:"total_frames"`
	DurationMs  int64     `json:"duration_ms"`
	TempoBPM    float64   `json:"tempo_bpm"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
}

// Store is the Postgres-backed catalog. A Store over a nil database is
// disabled: writes are dropped and reads fail with ErrDisabled.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// ProvideStore builds the catalog and creates its table when a database is present.
func ProvideStore(db *sql.DB, log *zap.SugaredLogger) (*Store, error) {
	s := &Store{db: db, log: log}
	if db == nil {
		return s, nil
	}
	if _, err := db.Exec(schema); err != nil {
		log.Errorw("Failed to create timelines table", "error", err)
		return nil, errors.Wrap(err, "create timelines table")
	}
	return s, nil
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// Record inserts a row for the document's metadata and returns its id.
// A disabled store returns 0 and no error.
func (s *Store) Record(ctx context.Context, m chromamind.Metadata, source string) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	query := `
		INSERT INTO timelines (name, description, source, total_frames, duration_ms, tempo_bpm, generated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		m.Name, m.Description, source, m.TotalFrames, m.DurationMs, m.TempoBPM, m.GeneratedAt, m.Version,
	).Scan(&id)
	if err != nil {
		s.log.Errorw("Failed to record timeline", "name", m.Name, "error", err)
		return 0, errors.Wrap(err, "record timeline")
	}
	return id, nil
}

// List returns the most recent entries first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, name, description, source, total_frames, duration_ms, tempo_bpm, generated_at, version
		FROM timelines
		ORDER BY generated_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list timelines")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Source,
			&e.TotalFrames, &e.DurationMs, &e.TempoBPM, &e.GeneratedAt, &e.Version); err != nil {
			return nil, errors.Wrap(err, "scan timeline")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "list timelines")
}

var Options = ProvideStore
