// Package storage persists the run log to SQLite: run metadata plus the
// serialized trajectory or ensemble record for each run.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tlazar/geoflux/internal/export"
)

// Store wraps a SQLite connection for the run log.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates the run-log database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate run log: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		members INTEGER NOT NULL,
		invalid INTEGER NOT NULL,
		config_yaml TEXT NOT NULL,
		record_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// RunMeta is one run-log row without its record payload.
type RunMeta struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"` // "run" or "ensemble"
	CreatedAt time.Time `db:"created_at"`
	Seed      int64     `db:"seed"`
	Steps     int       `db:"steps"`
	Members   int       `db:"members"`
	Invalid   int       `db:"invalid"`
}

// SaveTrajectory stores a single-run record and returns its run ID.
func (s *Store) SaveTrajectory(rec export.TrajectoryRecord, seed int64, steps int, configYAML string) (string, error) {
	invalid := 0
	if !rec.Valid {
		invalid = 1
	}
	return s.save("run", seed, steps, 1, invalid, configYAML, rec)
}

// SaveEnsemble stores an aggregated ensemble record and returns its run ID.
func (s *Store) SaveEnsemble(rec export.EnsembleRecord, seed int64, steps int, configYAML string) (string, error) {
	return s.save("ensemble", seed, steps, rec.Members, rec.Invalid, configYAML, rec)
}

func (s *Store) save(kind string, seed int64, steps, members, invalid int, configYAML string, record any) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	id := uuid.NewString()
	_, err = s.conn.Exec(
		`INSERT INTO runs (id, kind, created_at, seed, steps, members, invalid, config_yaml, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, time.Now().UTC(), seed, steps, members, invalid, configYAML, string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// List returns run metadata, newest first.
func (s *Store) List() ([]RunMeta, error) {
	var runs []RunMeta
	err := s.conn.Select(&runs,
		`SELECT id, kind, created_at, seed, steps, members, invalid
		 FROM runs ORDER BY created_at DESC`)
	return runs, err
}

// LoadTrajectory fetches a stored single-run record.
func (s *Store) LoadTrajectory(id string) (export.TrajectoryRecord, error) {
	var rec export.TrajectoryRecord
	raw, err := s.loadRecord(id, "run")
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(raw, &rec)
	return rec, err
}

// LoadEnsemble fetches a stored ensemble record.
func (s *Store) LoadEnsemble(id string) (export.EnsembleRecord, error) {
	var rec export.EnsembleRecord
	raw, err := s.loadRecord(id, "ensemble")
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(raw, &rec)
	return rec, err
}

// LoadConfigYAML fetches the config a run was executed with.
func (s *Store) LoadConfigYAML(id string) (string, error) {
	var cfg string
	err := s.conn.Get(&cfg, `SELECT config_yaml FROM runs WHERE id = ?`, id)
	if err != nil {
		return "", fmt.Errorf("load config for %s: %w", id, err)
	}
	return cfg, nil
}

// Kind reports whether a stored run is a single run or an ensemble.
func (s *Store) Kind(id string) (string, error) {
	var kind string
	err := s.conn.Get(&kind, `SELECT kind FROM runs WHERE id = ?`, id)
	if err != nil {
		return "", fmt.Errorf("lookup run %s: %w", id, err)
	}
	return kind, nil
}

func (s *Store) loadRecord(id, kind string) ([]byte, error) {
	var payload string
	err := s.conn.Get(&payload, `SELECT record_json FROM runs WHERE id = ? AND kind = ?`, id, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return []byte(payload), nil
}
