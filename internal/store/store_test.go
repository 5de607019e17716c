package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/recommend"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()

	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "nested", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleRecord(userID, fileName string) *Record {
	local := []scoring.ScoredCandidate{{Title: "Data Scientist", Company: "Analytics Co.", MatchFraction: 0.87}}
	return &Record{
		UserID:          userID,
		FileName:        fileName,
		UploadedAt:      time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		StoragePath:     "resumes/" + userID + "/cv.pdf",
		ResumeText:      "resume text",
		LocalCandidates: local,
		EnrichedJobs:    []ai.EnrichedJob{{Title: "Data Scientist", Skills: []string{"Python"}}},
		Recommendations: recommend.Merge(local, nil),
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := sampleRecord("user-1", "cv.pdf")
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, want.FileName, got.FileName)
	assert.True(t, want.UploadedAt.Equal(got.UploadedAt))
	assert.Equal(t, want.StoragePath, got.StoragePath)
	assert.Equal(t, want.LocalCandidates, got.LocalCandidates)
	assert.Equal(t, want.EnrichedJobs[0].Skills, got.EnrichedJobs[0].Skills)
	assert.Equal(t, "87% Match", got.Recommendations.Jobs[0].Match)
}

func TestSaveIsLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRecord("user-1", "first.pdf")))

	second := sampleRecord("user-1", "second.docx")
	second.LocalCandidates = nil
	second.EnrichedJobs = nil
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "second.docx", got.FileName)
	assert.Empty(t, got.LocalCandidates)
	assert.Empty(t, got.EnrichedJobs)
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRecord("user-1", "cv.pdf")))
	require.NoError(t, s.Delete(ctx, "user-1"))
	require.NoError(t, s.Delete(ctx, "user-1"))

	_, err := s.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresUser(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save(context.Background(), &Record{}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
