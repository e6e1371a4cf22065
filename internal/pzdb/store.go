package pzdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted training or estimation run. Model holds the
// serialized trained model for training runs and is empty otherwise;
// the store treats it as an opaque blob.
type Run struct {
	RunID     string          `json:"run_id"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config,omitempty"`
	Model     []byte          `json:"-"`
	CreatedAt int64           `json:"created_at"`
}

// Result is one per-source estimation record.
type Result struct {
	RunID    string  `json:"run_id"`
	RowIndex int     `json:"row_index"`
	ZMode    float64 `json:"zmode"`
	Mu       float64 `json:"mu"`
	Sigma    float64 `json:"sigma"`
}

// InsertRun persists a run. A missing RunID gets a fresh UUID; a
// missing CreatedAt gets the current time.
func (db *DB) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	var cfg any
	if len(run.Config) > 0 {
		cfg = string(run.Config)
	}
	_, err := db.Exec(`
		INSERT INTO pz_runs (run_id, kind, config, model, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Kind, cfg, run.Model, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("pzdb: insert run: %w", err)
	}
	return nil
}

// Run loads a run by ID.
func (db *DB) Run(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, kind, config, model, created_at
		FROM pz_runs WHERE run_id = ?`, runID)

	var run Run
	var cfg sql.NullString
	if err := row.Scan(&run.RunID, &run.Kind, &cfg, &run.Model, &run.CreatedAt); err != nil {
		return nil, fmt.Errorf("pzdb: load run %s: %w", runID, err)
	}
	if cfg.Valid {
		run.Config = json.RawMessage(cfg.String)
	}
	return &run, nil
}

// ListRuns returns runs of the given kind (all kinds when empty),
// newest first.
func (db *DB) ListRuns(kind string) ([]*Run, error) {
	query := `SELECT run_id, kind, config, model, created_at FROM pz_runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("pzdb: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var cfg sql.NullString
		if err := rows.Scan(&run.RunID, &run.Kind, &cfg, &run.Model, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("pzdb: scan run: %w", err)
		}
		if cfg.Valid {
			run.Config = json.RawMessage(cfg.String)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pzdb: list runs: %w", err)
	}
	return runs, nil
}

// InsertResults writes per-source results in one transaction.
func (db *DB) InsertResults(results []Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("pzdb: begin results: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO pz_results (run_id, row_index, zmode, mu, sigma)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("pzdb: prepare results: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(r.RunID, r.RowIndex, r.ZMode, r.Mu, r.Sigma); err != nil {
			tx.Rollback()
			return fmt.Errorf("pzdb: insert result row %d: %w", r.RowIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pzdb: commit results: %w", err)
	}
	return nil
}

// ResultsForRun returns a run's results ordered by row index.
func (db *DB) ResultsForRun(runID string) ([]Result, error) {
	rows, err := db.Query(`
		SELECT run_id, row_index, zmode, mu, sigma
		FROM pz_results WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("pzdb: query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RunID, &r.RowIndex, &r.ZMode, &r.Mu, &r.Sigma); err != nil {
			return nil, fmt.Errorf("pzdb: scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pzdb: read results: %w", err)
	}
	return results, nil
}
