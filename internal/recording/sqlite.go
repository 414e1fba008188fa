package recording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// SQLiteStore persists runs to a SQLite database. One process writes
// at a time; readers can inspect finished runs with any SQLite client.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the result database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create result directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) NewRun(ctx context.Context, label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, label) VALUES (?, datetime('now'), ?)
	`, id, nullString(label))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) WriteSpikes(ctx context.Context, runID string, records []SpikeRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spikes (run_id, step, source, multiplicity) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, int64(r.Step), int64(r.Source), r.Multiplicity); err != nil {
			return fmt.Errorf("failed to insert spike: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) WriteSamples(ctx context.Context, runID string, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, step, node, name, value) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, runID, int64(smp.Step), int64(smp.Node), smp.Name, smp.Value); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Spikes(ctx context.Context, runID string) ([]SpikeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, source, multiplicity FROM spikes
		WHERE run_id = ? ORDER BY step, source
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	var out []SpikeRecord
	for rows.Next() {
		var step, source int64
		var mult int
		if err := rows.Scan(&step, &source, &mult); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		out = append(out, SpikeRecord{
			Step:         simtime.Step(step),
			Source:       event.NodeID(source),
			Multiplicity: mult,
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Samples(ctx context.Context, runID string) ([]Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, node, name, value FROM samples
		WHERE run_id = ? ORDER BY step, node, name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var step, nodeID int64
		var name string
		var value float64
		if err := rows.Scan(&step, &nodeID, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, Sample{
			Step:  simtime.Step(step),
			Node:  event.NodeID(nodeID),
			Name:  name,
			Value: value,
		})
	}
	return out, rows.Err()
}

// Runs returns all run IDs with their labels, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, label FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id string
		var label sql.NullString
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out[id] = label.String
	}
	return out, rows.Err()
}

func (s *SQLiteStore) checkRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("unknown run %q", runID)
	}
	if err != nil {
		return fmt.Errorf("failed to check run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*SQLiteStore)(nil)
