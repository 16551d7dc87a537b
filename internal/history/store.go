package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"videostove/internal/model"
)

// Store keeps a durable record of every batch run on the render box,
// independent of the per-run report files.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished batch. Re-recording the same run id replaces
// the previous rows so retried report writes stay idempotent.
func (s *Store) Record(report model.BatchReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM projects WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("clear previous projects: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO batches (run_id, generated_at, job_path, preset_name, mode, remote, gpu_state, total, published, rendered, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			total = excluded.total,
			published = excluded.published,
			rendered = excluded.rendered,
			skipped = excluded.skipped,
			failed = excluded.failed
	`,
		report.RunID,
		report.GeneratedAt,
		report.JobPath,
		report.PresetName,
		string(report.Mode),
		report.Remote,
		string(report.Gpu.State),
		report.Total,
		report.Published,
		report.Rendered,
		report.Skipped,
		report.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert batch row: %w", err)
	}

	for _, p := range report.Projects {
		_, err := tx.Exec(`
			INSERT INTO projects (run_id, name, status, reason, error_kind, last_error, images, videos, output_path, output_bytes, duration_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			p.Name,
			string(p.Status),
			p.Reason,
			p.ErrorKind,
			p.LastError,
			p.Images,
			p.Videos,
			p.OutputPath,
			p.OutputBytes,
			p.DurationSeconds,
		)
		if err != nil {
			return fmt.Errorf("insert project row for %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// BatchRow is one line of `videostove history`.
type BatchRow struct {
	RunID       string `json:"run_id"`
	GeneratedAt string `json:"generated_at"`
	PresetName  string `json:"preset_name"`
	Mode        string `json:"mode"`
	GpuState    string `json:"gpu_state"`
	Total       int    `json:"total"`
	Published   int    `json:"published"`
	Rendered    int    `json:"rendered"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
}

// ListBatches returns the most recent batches first.
func (s *Store) ListBatches(limit int) ([]BatchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, generated_at, preset_name, mode, gpu_state, total, published, rendered, skipped, failed
		FROM batches
		ORDER BY generated_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		if err := rows.Scan(&b.RunID, &b.GeneratedAt, &b.PresetName, &b.Mode, &b.GpuState, &b.Total, &b.Published, &b.Rendered, &b.Skipped, &b.Failed); err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ProjectRow is one project outcome in `videostove history --project`.
type ProjectRow struct {
	RunID           string  `json:"run_id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	LastError       string  `json:"last_error,omitempty"`
	OutputBytes     int64   `json:"output_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ProjectHistory returns every recorded outcome for one project name,
// newest batch first.
func (s *Store) ProjectHistory(name string, limit int) ([]ProjectRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT p.run_id, p.name, p.status, p.reason, p.error_kind, p.last_error, p.output_bytes, p.duration_seconds
		FROM projects p
		JOIN batches b ON b.run_id = p.run_id
		WHERE p.name = ?
		ORDER BY b.generated_at DESC, p.id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list project history: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.RunID, &p.Name, &p.Status, &p.Reason, &p.ErrorKind, &p.LastError, &p.OutputBytes, &p.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
