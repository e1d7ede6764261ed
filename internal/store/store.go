// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps a history of analysis runs in SQLite so ranking drift
// between sweep campaigns can be reviewed later.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/range_analyzer/internal/analyzer"
)

// Store manages the run-history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the run-history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		eval_min_mm REAL NOT NULL,
		eval_max_mm REAL NOT NULL,
		sensors INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metrics (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		sensor TEXT NOT NULL,
		scenario TEXT NOT NULL,
		rms_mm REAL NOT NULL,
		r_squared REAL NOT NULL,
		samples INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id);

	CREATE TABLE IF NOT EXISTS rankings (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		rank INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		mean_rms_mm REAL NOT NULL,
		std_rms_mm REAL NOT NULL,
		improvement_pct REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a run with its metrics and rankings, returning the run
// id.
func (s *Store) SaveReport(rep *analyzer.Report) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (dataset, created_at, eval_min_mm, eval_max_mm, sensors) VALUES (?, ?, ?, ?, ?)`,
		rep.Dataset, rep.CreatedAt.UTC(), rep.EvalRange.Min, rep.EvalRange.Max, len(rep.Sensors),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, m := range rep.Metrics {
		if _, err := tx.Exec(
			`INSERT INTO metrics (run_id, sensor, scenario, rms_mm, r_squared, samples) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, m.Sensor, m.Scenario, m.RMSError, m.RSquared, m.Samples,
		); err != nil {
			return 0, fmt.Errorf("failed to insert metric: %w", err)
		}
	}

	for _, r := range rep.Rankings {
		if _, err := tx.Exec(
			`INSERT INTO rankings (run_id, rank, scenario, mean_rms_mm, std_rms_mm, improvement_pct) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, r.Rank, r.Scenario, r.MeanRMS, r.StdRMS, r.Improvement,
		); err != nil {
			return 0, fmt.Errorf("failed to insert ranking: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID        int64
	Dataset   string
	CreatedAt time.Time
	Sensors   int
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]RunSummary, error) {
	rows, err := s.db.Query(`SELECT id, dataset, created_at, sensors FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Dataset, &r.CreatedAt, &r.Sensors); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rankings loads the stored ranking for a run, in rank order.
func (s *Store) Rankings(runID int64) ([]analyzer.RankedResult, error) {
	rows, err := s.db.Query(
		`SELECT rank, scenario, mean_rms_mm, std_rms_mm, improvement_pct FROM rankings WHERE run_id = ? ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analyzer.RankedResult
	for rows.Next() {
		var r analyzer.RankedResult
		if err := rows.Scan(&r.Rank, &r.Scenario, &r.MeanRMS, &r.StdRMS, &r.Improvement); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
