// Package runstore keeps an append-only ledger of runs: when each one
// started and finished, what it covered and where the document went.
// File-backed JSON by default; CODEBRIEF_RUN_PG_DSN upgrades the backend
// to Postgres.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunRecord describes one invocation.
type RunRecord struct {
	ID               string    `json:"id"`
	Directory        string    `json:"directory"`
	OutputPath       string    `json:"output_path"`
	Status           string    `json:"status"`
	Model            string    `json:"model"`
	TotalFiles       int       `json:"total_files"`
	FilesAnalyzed    int       `json:"files_analyzed"`
	TotalBatches     int       `json:"total_batches"`
	CompletedBatches int       `json:"completed_batches"`
	EstimatedTokens  int       `json:"estimated_tokens"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// NewRunID returns a process-unique run identifier.
func NewRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}

// Store persists run records to a JSON file or, when constructed with a
// DSN, to Postgres with a recent-records LRU in front.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.Mutex
	records  []RunRecord

	schemaOnce sync.Once
	schemaErr  error

	recent *lru.Cache[string, RunRecord]
}

// New returns a file-backed store at path.
func New(path string) *Store {
	return &Store{path: path}
}

// NewPostgres returns a Postgres-backed store for dsn.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	recent, err := lru.New[string, RunRecord](256)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, recent: recent}, nil
}

// NewFromEnv prefers Postgres via CODEBRIEF_RUN_PG_DSN and falls back to
// the file backend at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("CODEBRIEF_RUN_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append adds one record to the ledger.
func (s *Store) Append(rec RunRecord) error {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.appendDB(rec)
	}
	return s.appendFile(rec)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (RunRecord, bool, error) {
	if s == nil {
		return RunRecord{}, false, nil
	}
	if s.db != nil {
		return s.getDB(id)
	}
	return s.getFile(id)
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]RunRecord, error) {
	if s == nil || n <= 0 {
		return nil, nil
	}
	if s.db != nil {
		return s.recentDB(n)
	}
	return s.recentFile(n)
}

// -------- file backend --------

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var records []RunRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return
		}
		s.records = records
	})
}

func (s *Store) appendFile(rec RunRecord) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) getFile(id string) (RunRecord, bool, error) {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID == id {
			return s.records[i], true, nil
		}
	}
	return RunRecord{}, false, nil
}

func (s *Store) recentFile(n int) ([]RunRecord, error) {
	s.ensureLoadedFile()
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]RunRecord, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// -------- Postgres backend --------

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`CREATE TABLE IF NOT EXISTS codebrief_runs (
			id                TEXT PRIMARY KEY,
			directory         TEXT NOT NULL,
			output_path       TEXT NOT NULL,
			status            TEXT NOT NULL,
			model             TEXT NOT NULL,
			total_files       INTEGER NOT NULL,
			files_analyzed    INTEGER NOT NULL,
			total_batches     INTEGER NOT NULL,
			completed_batches INTEGER NOT NULL,
			estimated_tokens  INTEGER NOT NULL,
			started_at        TIMESTAMPTZ NOT NULL,
			finished_at       TIMESTAMPTZ NOT NULL
		)`)
	})
	return s.schemaErr
}

func (s *Store) appendDB(rec RunRecord) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO codebrief_runs
		(id, directory, output_path, status, model, total_files, files_analyzed,
		 total_batches, completed_batches, estimated_tokens, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.Directory, rec.OutputPath, rec.Status, rec.Model,
		rec.TotalFiles, rec.FilesAnalyzed, rec.TotalBatches, rec.CompletedBatches,
		rec.EstimatedTokens, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return err
	}
	s.recent.Add(rec.ID, rec)
	return nil
}

func (s *Store) getDB(id string) (RunRecord, bool, error) {
	if rec, ok := s.recent.Get(id); ok {
		return rec, true, nil
	}
	if err := s.ensureSchema(); err != nil {
		return RunRecord{}, false, err
	}
	row := s.db.QueryRow(`SELECT id, directory, output_path, status, model,
		total_files, files_analyzed, total_batches, completed_batches,
		estimated_tokens, started_at, finished_at
		FROM codebrief_runs WHERE id = $1`, id)
	var rec RunRecord
	err := row.Scan(&rec.ID, &rec.Directory, &rec.OutputPath, &rec.Status, &rec.Model,
		&rec.TotalFiles, &rec.FilesAnalyzed, &rec.TotalBatches, &rec.CompletedBatches,
		&rec.EstimatedTokens, &rec.StartedAt, &rec.FinishedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	s.recent.Add(rec.ID, rec)
	return rec, true, nil
}

func (s *Store) recentDB(n int) ([]RunRecord, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, directory, output_path, status, model,
		total_files, files_analyzed, total_batches, completed_batches,
		estimated_tokens, started_at, finished_at
		FROM codebrief_runs ORDER BY finished_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Directory, &rec.OutputPath, &rec.Status, &rec.Model,
			&rec.TotalFiles, &rec.FilesAnalyzed, &rec.TotalBatches, &rec.CompletedBatches,
			&rec.EstimatedTokens, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
