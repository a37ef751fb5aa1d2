// Package cmdlog persists command recordings in SQLite so a desync can be
// replayed long after the processes that produced it are gone.
package cmdlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/replay"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a recording id is unknown.
var ErrNotFound = errors.New("recording not found")

// Store holds recordings in a SQLite database.
type Store struct {
	db *sql.DB
}

// Summary describes a stored recording without its steps.
type Summary struct {
	ID       string
	Scenario string
	Steps    int
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes rec in one transaction. Saving an id twice is an error.
func (s *Store) Save(ctx context.Context, rec *replay.Recording) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (id, scenario) VALUES (?, ?)`, rec.ID, rec.Scenario); err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (recording_id, seq, kind, command, checksum, description, rejected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}
	defer stmt.Close()

	for _, step := range rec.Steps {
		cmd, err := yaml.Marshal(step.Command)
		if err != nil {
			return fmt.Errorf("save recording %s: encoding command %d: %w", rec.ID, step.Command.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			int64(step.Command.Seq),
			string(step.Command.Kind),
			string(cmd),
			step.Fingerprint.Sum,
			step.Fingerprint.Description,
			step.Rejected,
		); err != nil {
			return fmt.Errorf("save recording %s: step %d: %w", rec.ID, step.Command.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads the recording with id, steps ordered by sequence number.
func (s *Store) Load(ctx context.Context, id string) (*replay.Recording, error) {
	rec := &replay.Recording{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT scenario FROM recordings WHERE id = ?`, id).Scan(&rec.Scenario)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load recording %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT command, checksum, description, rejected
		FROM steps
		WHERE recording_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raw  string
			step replay.Step
			fp   checksum.Fingerprint
		)
		if err := rows.Scan(&raw, &fp.Sum, &fp.Description, &step.Rejected); err != nil {
			return nil, fmt.Errorf("load recording %s: %w", id, err)
		}
		var cmd command.Command
		if err := yaml.Unmarshal([]byte(raw), &cmd); err != nil {
			return nil, fmt.Errorf("load recording %s: decoding command: %w", id, err)
		}
		step.Command, step.Fingerprint = cmd, fp
		rec.Steps = append(rec.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load recording %s: %w", id, err)
	}
	return rec, nil
}

// List summarises the recordings of scenario, or of every scenario when
// scenario is empty.
func (s *Store) List(ctx context.Context, scenario string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, COUNT(st.seq)
		FROM recordings r
		LEFT JOIN steps st ON st.recording_id = r.id
		WHERE ? = '' OR r.scenario = ?
		GROUP BY r.id, r.scenario
		ORDER BY r.rowid ASC
	`, scenario, scenario)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Scenario, &sum.Steps); err != nil {
			return nil, fmt.Errorf("list recordings: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

// Delete removes a recording and its steps.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete recording %s: %w", id, ErrNotFound)
	}
	return nil
}
