package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/ai/gemini"
	"github.com/spigell/resume-recommender/internal/extract"
	"github.com/spigell/resume-recommender/internal/notify"
	"github.com/spigell/resume-recommender/internal/recommend"
	"github.com/spigell/resume-recommender/internal/resume"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/spigell/resume-recommender/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	// block holds extraction of the named file until the channel is closed.
	block   map[string]chan struct{}
	started chan string
}

func (f *fakeExtractor) Extract(_ context.Context, doc *resume.Document) (string, error) {
	f.mu.Lock()
	f.calls++
	ch := f.block[doc.FileName]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- doc.FileName
	}
	if ch != nil {
		<-ch
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(doc.Data), nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnricher struct {
	result *ai.Enrichment
	err    error
	calls  int
	local  []scoring.ScoredCandidate
}

func (f *fakeEnricher) Enrich(_ context.Context, _ string, local []scoring.ScoredCandidate) (*ai.Enrichment, error) {
	f.calls++
	f.local = local
	return f.result, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	records []*store.Record
	err     error
}

func (f *fakeStore) Save(_ context.Context, rec *store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) Records() []*store.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.Record{}, f.records...)
}

type fakeObjects struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
	err     error
	// holdNext blocks the next Put until the channel is closed.
	holdNext chan struct{}
	started  chan string
}

func (f *fakeObjects) Put(_ context.Context, userID, objectName, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	ch := f.holdNext
	f.holdNext = nil
	f.mu.Unlock()

	if f.started != nil {
		f.started <- objectName
	}
	if ch != nil {
		<-ch
	}
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := "resumes/" + userID + "/" + objectName
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) States(runID string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []State
	for _, e := range r.events {
		if e.RunID == runID {
			states = append(states, State(e.State))
		}
	}
	return states
}

func (r *recordingNotifier) Finals(runID string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var finals []bool
	for _, e := range r.events {
		if e.RunID == runID {
			finals = append(finals, e.Final)
		}
	}
	return finals
}

func newTestPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	p, err := New(deps, Options{})
	require.NoError(t, err)
	return p
}

func threeEnrichedJobs() *ai.Enrichment {
	return &ai.Enrichment{
		Insights: "Focus on MLOps.",
		Jobs: []ai.EnrichedJob{
			{Title: "Data Scientist", Description: "Models", Skills: []string{"Python", "SQL", "Stats", "ML"},
				LearningPath: []ai.LearningStep{{Title: "ML", Provider: "Coursera", Difficulty: ai.DifficultyIntermediate}}},
			{Title: "Web Developer", Description: "Sites", Skills: []string{"HTML", "CSS", "JS", "React"}},
			{Title: "Frontend Developer", Description: "UIs", Skills: []string{"React", "CSS", "A11y", "Testing"}},
		},
	}
}

func TestRunLocalOnly(t *testing.T) {
	notifier := &recordingNotifier{}
	records := &fakeStore{}
	p := newTestPipeline(t, Deps{
		Extractor: &fakeExtractor{},
		Store:     records,
		Notifier:  notifier,
	})

	res, err := p.Run(context.Background(), Upload{
		UserID:    "user-1",
		FileName:  "cv.txt",
		MediaType: "text/plain",
		Data:      []byte("Experienced with data pipelines"),
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Set.Jobs, 3)
	assert.Equal(t, "Data Scientist", res.Set.Jobs[0].Title)
	assert.Equal(t, "87% Match", res.Set.Jobs[0].Match)
	for _, job := range res.Set.Jobs {
		assert.Empty(t, job.LearningPath)
	}
	assert.Equal(t, recommend.LocalOnlyInsights, res.Set.Insights)

	assert.Equal(t, []State{StateIdle, StateExtracting, StateScoring, StateEnriching, StateMerging, StateDone}, notifier.States(res.RunID))
	assert.Equal(t, []bool{false, false, false, false, false, true}, notifier.Finals(res.RunID))

	saved := records.Records()
	require.Len(t, saved, 1)
	assert.Equal(t, "user-1", saved[0].UserID)
	assert.Equal(t, "cv.txt", saved[0].FileName)
	assert.Nil(t, saved[0].EnrichedJobs)

	latest, ok := p.Latest("user-1")
	require.True(t, ok)
	assert.Equal(t, res.RunID, latest.RunID)
}

func TestRunWithEnrichment(t *testing.T) {
	enricher := &fakeEnricher{result: threeEnrichedJobs()}
	records := &fakeStore{}
	objects := &fakeObjects{}
	p := newTestPipeline(t, Deps{
		Extractor: &fakeExtractor{},
		Enricher:  enricher,
		Store:     records,
		Objects:   objects,
	})

	res, err := p.Run(context.Background(), Upload{UserID: "u", FileName: "cv.txt", Data: []byte("data science")})
	require.NoError(t, err)

	assert.Equal(t, 1, enricher.calls)
	assert.Len(t, enricher.local, 3)
	assert.Equal(t, "Models", res.Set.Jobs[0].Description)
	assert.Len(t, res.Set.Jobs[0].LearningPath, 1)
	assert.Equal(t, "Focus on MLOps.", res.Set.Insights)

	require.Len(t, objects.keys, 1)
	assert.Equal(t, "resumes/u/"+res.RunID+".txt", objects.keys[0])
	assert.Equal(t, objects.keys[0], res.StoragePath)

	saved := records.Records()
	require.Len(t, saved, 1)
	assert.Equal(t, res.StoragePath, saved[0].StoragePath)
	assert.Len(t, saved[0].EnrichedJobs, 3)
}

func TestRunEnrichmentFailureDegrades(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	enricher := &fakeEnricher{err: &gemini.EnrichmentError{Kind: gemini.ErrEnrichment, Cause: &ai.APIError{StatusCode: 500}}}
	notifier := &recordingNotifier{}
	p := newTestPipeline(t, Deps{
		Extractor: &fakeExtractor{},
		Enricher:  enricher,
		Notifier:  notifier,
		Logger:    zap.New(core),
	})

	res, err := p.Run(context.Background(), Upload{FileName: "cv.txt", Data: []byte("data")})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, EnrichmentUnavailableWarning, res.Warning)
	require.Len(t, res.Set.Jobs, 3)
	for _, job := range res.Set.Jobs {
		assert.Empty(t, job.LearningPath)
	}
	assert.NotContains(t, notifier.States(res.RunID), StateFailed)
	assert.Equal(t, 1, observed.FilterMessage("enrichment failed, using local candidates only").Len())
}

func TestRunRejectsBeforeExtraction(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
		kind   string
	}{
		{
			name:   "unsupported format",
			upload: Upload{FileName: "setup.exe", MediaType: "application/x-msdownload", Data: []byte("MZ")},
			kind:   KindUnsupportedFormat,
		},
		{
			name:   "file too large",
			upload: Upload{FileName: "cv.pdf", MediaType: "application/pdf", Data: make([]byte, resume.DefaultMaxFileSize+1)},
			kind:   KindFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &fakeExtractor{}
			notifier := &recordingNotifier{}
			p := newTestPipeline(t, Deps{Extractor: extractor, Notifier: notifier})

			res, err := p.Run(context.Background(), tt.upload)
			require.Error(t, err)

			assert.Equal(t, tt.kind, Kind(err))
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, 0, extractor.Calls())
			assert.Equal(t, []State{StateIdle, StateFailed}, notifier.States(res.RunID))
			assert.Equal(t, []bool{false, true}, notifier.Finals(res.RunID))

			_, ok := p.Latest("")
			assert.False(t, ok)
		})
	}
}

func TestRunExtractionFailures(t *testing.T) {
	tests := []struct {
		name      string
		extractor *fakeExtractor
		kind      string
	}{
		{name: "whitespace text", extractor: &fakeExtractor{text: "  \n\t "}, kind: KindExtraction},
		{name: "upstream error", extractor: &fakeExtractor{err: &extract.ExtractionError{Cause: errors.New("bad gateway")}}, kind: KindExtraction},
		{name: "missing credential", extractor: &fakeExtractor{err: &extract.MissingCredentialError{MediaType: "application/pdf"}}, kind: KindMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enricher := &fakeEnricher{result: threeEnrichedJobs()}
			records := &fakeStore{}
			p := newTestPipeline(t, Deps{Extractor: tt.extractor, Enricher: enricher, Store: records})

			res, err := p.Run(context.Background(), Upload{UserID: "u", FileName: "cv.pdf", Data: []byte("%PDF")})
			require.Error(t, err)

			assert.Equal(t, tt.kind, Kind(err))
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, 0, enricher.calls)
			assert.Empty(t, records.Records())
		})
	}
}

func TestRunPersistenceFailuresAreWarnings(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	p := newTestPipeline(t, Deps{
		Extractor: &fakeExtractor{},
		Store:     &fakeStore{err: errors.New("disk full")},
		Objects:   &fakeObjects{err: errors.New("access denied")},
		Logger:    zap.New(core),
	})

	res, err := p.Run(context.Background(), Upload{UserID: "u", FileName: "cv.txt", Data: []byte("manager")})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.StoragePath)
	assert.Equal(t, 1, observed.FilterMessage("uploading resume file").Len())
	assert.Equal(t, 1, observed.FilterMessage("saving results").Len())
}

func TestRunAnonymousIsNotPersisted(t *testing.T) {
	records := &fakeStore{}
	objects := &fakeObjects{}
	p := newTestPipeline(t, Deps{Extractor: &fakeExtractor{}, Store: records, Objects: objects})

	_, err := p.Run(context.Background(), Upload{FileName: "cv.txt", Data: []byte("design")})
	require.NoError(t, err)

	assert.Empty(t, records.Records())
	assert.Empty(t, objects.keys)
}

func TestRunOvertakenWhilePersistingIsNotSaved(t *testing.T) {
	extractor := &fakeExtractor{started: make(chan string, 2)}
	records := &fakeStore{}
	release := make(chan struct{})
	objects := &fakeObjects{started: make(chan string, 2), holdNext: release}
	p := newTestPipeline(t, Deps{Extractor: extractor, Store: records, Objects: objects})

	// The first upload passes the staleness check and stalls in the object
	// store, then a second upload of the same user begins.
	firstDone := make(chan *Result, 1)
	go func() {
		res, _ := p.Run(context.Background(), Upload{UserID: "u", FileName: "first.txt", Data: []byte("data")})
		firstDone <- res
	}()
	require.Equal(t, "first.txt", <-extractor.started)
	<-objects.started

	secondDone := make(chan *Result, 1)
	go func() {
		res, _ := p.Run(context.Background(), Upload{UserID: "u", FileName: "second.txt", Data: []byte("manager")})
		secondDone <- res
	}()
	require.Equal(t, "second.txt", <-extractor.started)

	close(release)
	first := <-firstDone
	<-objects.started
	second := <-secondDone

	assert.True(t, first.Stale)
	assert.Empty(t, first.StoragePath)
	assert.False(t, second.Stale)

	saved := records.Records()
	require.Len(t, saved, 1)
	assert.Equal(t, "second.txt", saved[0].FileName)
	assert.Equal(t, second.StoragePath, saved[0].StoragePath)
	assert.Equal(t, []string{"resumes/u/" + first.RunID + ".txt"}, objects.deleted)

	latest, ok := p.Latest("u")
	require.True(t, ok)
	assert.Equal(t, second.RunID, latest.RunID)
}

func TestRunAnonymousRunsDoNotOvertakeEachOther(t *testing.T) {
	release := make(chan struct{})
	extractor := &fakeExtractor{
		block:   map[string]chan struct{}{"first.txt": release},
		started: make(chan string, 2),
	}
	p := newTestPipeline(t, Deps{Extractor: extractor})

	firstDone := make(chan *Result, 1)
	go func() {
		res, _ := p.Run(context.Background(), Upload{FileName: "first.txt", Data: []byte("data")})
		firstDone <- res
	}()
	require.Equal(t, "first.txt", <-extractor.started)

	second, err := p.Run(context.Background(), Upload{FileName: "second.txt", Data: []byte("manager")})
	require.NoError(t, err)
	<-extractor.started

	close(release)
	first := <-firstDone

	assert.False(t, first.Stale)
	assert.False(t, second.Stale)
	assert.Equal(t, StateDone, first.State)

	_, ok := p.Latest("")
	assert.False(t, ok)
}

func TestRunDiscardsStaleGeneration(t *testing.T) {
	release := make(chan struct{})
	extractor := &fakeExtractor{
		block:   map[string]chan struct{}{"first.txt": release},
		started: make(chan string, 2),
	}
	records := &fakeStore{}
	p := newTestPipeline(t, Deps{Extractor: extractor, Store: records})

	type outcome struct {
		res *Result
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := p.Run(context.Background(), Upload{UserID: "u", FileName: "first.txt", Data: []byte("data")})
		firstDone <- outcome{res, err}
	}()
	require.Equal(t, "first.txt", <-extractor.started)

	second, err := p.Run(context.Background(), Upload{UserID: "u", FileName: "second.txt", Data: []byte("manager")})
	require.NoError(t, err)
	require.Equal(t, "second.txt", <-extractor.started)
	assert.False(t, second.Stale)

	close(release)
	first := <-firstDone
	require.NoError(t, first.err)

	assert.True(t, first.res.Stale)
	assert.Less(t, first.res.Generation, second.Generation)

	latest, ok := p.Latest("u")
	require.True(t, ok)
	assert.Equal(t, second.RunID, latest.RunID)

	saved := records.Records()
	require.Len(t, saved, 1)
	assert.Equal(t, "second.txt", saved[0].FileName)
}

func TestNewRequiresExtractor(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		expect string
	}{
		{err: &resume.FileTooLargeError{Size: 6 << 20, Limit: 5 << 20}, kind: KindFileTooLarge, expect: "The file is too large. The maximum size is 5 MB."},
		{err: &resume.UnsupportedFormatError{FileName: "a.exe"}, kind: KindUnsupportedFormat},
		{err: &extract.MissingCredentialError{MediaType: "application/pdf"}, kind: KindMissingCredential},
		{err: &extract.ExtractionError{}, kind: KindExtraction},
		{
			err:    &extract.ExtractionError{Detail: "inference request", Cause: &ai.APIError{StatusCode: 429, Message: "quota exceeded"}},
			kind:   KindExtraction,
			expect: "We could not read the text of your resume (inference api returned status 429: quota exceeded). Please try again or upload a different file.",
		},
		{err: &gemini.EnrichmentError{Kind: gemini.ErrEnrichmentSchema}, kind: KindEnrichment, expect: EnrichmentUnavailableWarning},
		{err: errors.New("boom"), kind: KindInternal},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err))
		msg := Describe(tt.err)
		assert.NotEmpty(t, msg)
		if tt.expect != "" {
			assert.Equal(t, tt.expect, msg)
		}
		assert.False(t, seen[msg], "message %q is not distinct", msg)
		seen[msg] = true
	}
}
