// Package store keeps the latest recommendation record per user.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/recommend"
	"github.com/spigell/resume-recommender/internal/scoring"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("record not found")

// Record is the persisted outcome of the last successful upload of a user.
type Record struct {
	UserID          string                      `json:"userId"`
	FileName        string                      `json:"fileName"`
	UploadedAt      time.Time                   `json:"uploadedAt"`
	StoragePath     string                      `json:"resumeStoragePath,omitempty"`
	ResumeText      string                      `json:"resumeText"`
	LocalCandidates []scoring.ScoredCandidate   `json:"localCandidates"`
	EnrichedJobs    []ai.EnrichedJob            `json:"enrichedJobs"`
	Recommendations recommend.RecommendationSet `json:"recommendations"`
}

// SQLStore persists records in SQLite or PostgreSQL. Writes are
// last-write-wins per user.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema. For SQLite the dsn is
// a file path whose directory is created when missing.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dir != "" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS resume_results (
		user_id          TEXT PRIMARY KEY,
		file_name        TEXT NOT NULL,
		uploaded_at      TEXT NOT NULL,
		storage_path     TEXT NOT NULL DEFAULT '',
		resume_text      TEXT NOT NULL,
		local_candidates TEXT NOT NULL,
		enriched_jobs    TEXT NOT NULL,
		recommendations  TEXT NOT NULL
	)`)
	return err
}

// Save inserts or replaces the record of rec.UserID.
func (s *SQLStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.UserID) == "" {
		return errors.New("store: user id is required")
	}

	local, err := marshalList(rec.LocalCandidates)
	if err != nil {
		return fmt.Errorf("store: encode local candidates: %w", err)
	}
	enriched, err := marshalList(rec.EnrichedJobs)
	if err != nil {
		return fmt.Errorf("store: encode enriched jobs: %w", err)
	}
	recommendations, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return fmt.Errorf("store: encode recommendations: %w", err)
	}

	uploadedAt := rec.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO resume_results
		(user_id, file_name, uploaded_at, storage_path, resume_text, local_candidates, enriched_jobs, recommendations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			file_name = excluded.file_name,
			uploaded_at = excluded.uploaded_at,
			storage_path = excluded.storage_path,
			resume_text = excluded.resume_text,
			local_candidates = excluded.local_candidates,
			enriched_jobs = excluded.enriched_jobs,
			recommendations = excluded.recommendations`),
		rec.UserID, rec.FileName, uploadedAt.UTC().Format(time.RFC3339Nano), rec.StoragePath,
		rec.ResumeText, local, enriched, string(recommendations),
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.UserID, err)
	}

	return nil
}

// Load returns the record of userID or ErrNotFound.
func (s *SQLStore) Load(ctx context.Context, userID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT
		user_id, file_name, uploaded_at, storage_path, resume_text, local_candidates, enriched_jobs, recommendations
		FROM resume_results WHERE user_id = ?`), userID)

	var (
		rec                                      Record
		uploadedAt, local, enriched, recommended string
	)
	err := row.Scan(&rec.UserID, &rec.FileName, &uploadedAt, &rec.StoragePath, &rec.ResumeText, &local, &enriched, &recommended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", userID, err)
	}

	if rec.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt); err != nil {
		return nil, fmt.Errorf("store: decode uploaded_at: %w", err)
	}
	if err := json.Unmarshal([]byte(local), &rec.LocalCandidates); err != nil {
		return nil, fmt.Errorf("store: decode local candidates: %w", err)
	}
	if err := json.Unmarshal([]byte(enriched), &rec.EnrichedJobs); err != nil {
		return nil, fmt.Errorf("store: decode enriched jobs: %w", err)
	}
	if err := json.Unmarshal([]byte(recommended), &rec.Recommendations); err != nil {
		return nil, fmt.Errorf("store: decode recommendations: %w", err)
	}

	return &rec, nil
}

// Delete removes the record of userID. Deleting a missing record is not an error.
func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM resume_results WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("store: delete %s: %w", userID, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	return string(data), err
}
