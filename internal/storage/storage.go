package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for runs and per-image outcomes.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            input_path TEXT,
            output_path TEXT,
            options_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS run_results (
            run_id TEXT,
            meta_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS run_images (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT,
            source_path TEXT,
            output_path TEXT,
            status TEXT,
            psnr REAL,
            exact_match BOOLEAN DEFAULT FALSE,
            tiles INTEGER,
            duration_ms INTEGER,
            error_message TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_run_images_run_id ON run_images(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures persisted run info.
type JobRecord struct {
	ID          string
	JobType     string
	Status      string
	InputPath   string
	OutputPath  string
	OptionsJSON string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// ImageRecord captures one image's trip through a run. PSNR is only
// meaningful when HasPSNR is set; an exact reconstruction stores no finite
// value and sets Exact instead.
type ImageRecord struct {
	RunID      string
	SourcePath string
	OutputPath string
	Status     string
	PSNR       float64
	HasPSNR    bool
	Exact      bool
	Tiles      int
	DurationMS int64
	Error      string
}

// RecordJobQueued inserts a pending run.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO runs (id, job_type, status, input_path, output_path, options_json) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, rec.Status, rec.InputPath, rec.OutputPath, rec.OptionsJSON)
	return err
}

// RecordJobStart marks a run as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE runs SET status='running', started_at=CURRENT_TIMESTAMP WHERE id=?;`, id)
	return err
}

// RecordJobResult finalizes a run with status and meta.
func (s *Store) RecordJobResult(id string, status string, meta map[string]any, errMsg string) error {
	if s == nil {
		return nil
	}
	metaJSON, _ := json.Marshal(meta)
	_, err := s.DB.Exec(`UPDATE runs SET status=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`, status, errMsg, id)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`INSERT INTO run_results (run_id, meta_json) VALUES (?, ?);`, id, string(metaJSON))
	return err
}

// RecordImage persists one image outcome under its run.
func (s *Store) RecordImage(rec ImageRecord) error {
	if s == nil {
		return nil
	}
	var psnr sql.NullFloat64
	if rec.HasPSNR && !rec.Exact {
		psnr = sql.NullFloat64{Float64: rec.PSNR, Valid: true}
	}
	_, err := s.DB.Exec(`INSERT INTO run_images (run_id, source_path, output_path, status, psnr, exact_match, tiles, duration_ms, error_message)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.RunID, rec.SourcePath, rec.OutputPath, rec.Status, psnr, rec.Exact, rec.Tiles, rec.DurationMS, rec.Error)
	return err
}

// RecentRuns returns the latest runs up to limit.
func (s *Store) RecentRuns(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, input_path, output_path, options_json, created_at, started_at, completed_at, error_message FROM runs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created time.Time
		var started, completed sql.NullTime
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &rec.InputPath, &rec.OutputPath, &rec.OptionsJSON, &created, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RunImages returns the per-image outcomes recorded under a run.
func (s *Store) RunImages(runID string) ([]ImageRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT run_id, source_path, output_path, status, psnr, exact_match, tiles, duration_ms, error_message FROM run_images WHERE run_id=? ORDER BY id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ImageRecord
	for rows.Next() {
		var rec ImageRecord
		var psnr sql.NullFloat64
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.SourcePath, &rec.OutputPath, &rec.Status, &psnr, &rec.Exact, &rec.Tiles, &rec.DurationMS, &errorMsg); err != nil {
			return nil, err
		}
		if psnr.Valid {
			rec.PSNR = psnr.Float64
			rec.HasPSNR = true
		}
		if rec.Exact {
			rec.HasPSNR = true
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RunMeta fetches the last meta blob for a run.
func (s *Store) RunMeta(id string) (map[string]any, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var metaJSON string
	err := s.DB.QueryRow(`SELECT meta_json FROM run_results WHERE run_id=? ORDER BY created_at DESC LIMIT 1;`, id).Scan(&metaJSON)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}
