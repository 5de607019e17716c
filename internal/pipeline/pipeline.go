// Package pipeline runs one resume upload through extraction, scoring,
// enrichment and merging.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/extract"
	"github.com/spigell/resume-recommender/internal/logger"
	"github.com/spigell/resume-recommender/internal/notify"
	"github.com/spigell/resume-recommender/internal/recommend"
	"github.com/spigell/resume-recommender/internal/resume"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/spigell/resume-recommender/internal/store"
	"go.uber.org/zap"
)

type Extractor interface {
	Extract(ctx context.Context, doc *resume.Document) (string, error)
}

type RecordStore interface {
	Save(ctx context.Context, rec *store.Record) error
}

type ObjectStore interface {
	Put(ctx context.Context, userID, objectName, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Deps aggregates the collaborators of a pipeline. Enricher, Store, Objects
// and Notifier are optional.
type Deps struct {
	Extractor Extractor
	Scorer    scoring.Scorer
	Enricher  ai.Enricher
	Store     RecordStore
	Objects   ObjectStore
	Notifier  notify.Publisher
	Logger    *zap.Logger
}

type Options struct {
	MaxFileSize int64
}

// Upload is a single user-initiated submission.
type Upload struct {
	UserID    string
	FileName  string
	MediaType string
	Data      []byte
}

// Result is the outcome of one run. Stale results were overtaken by a newer
// upload of the same user and are neither committed nor persisted.
type Result struct {
	RunID       string                      `json:"run_id"`
	UserID      string                      `json:"user_id,omitempty"`
	Generation  uint64                      `json:"generation"`
	State       State                       `json:"state"`
	FileName    string                      `json:"file_name"`
	Text        string                      `json:"resume_text"`
	Local       []scoring.ScoredCandidate   `json:"local_candidates"`
	Enrichment  *ai.Enrichment              `json:"-"`
	Set         recommend.RecommendationSet `json:"recommendations"`
	Warning     string                      `json:"warning,omitempty"`
	Stale       bool                        `json:"stale,omitempty"`
	StoragePath string                      `json:"storage_path,omitempty"`
}

type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	generations map[string]uint64
	latest      map[string]*Result
	locks       map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewHeuristicScorer()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = resume.DefaultMaxFileSize
	}

	return &Pipeline{
		deps:        deps,
		opts:        opts,
		logger:      logger.WithFields(deps.Logger),
		now:         time.Now,
		generations: make(map[string]uint64),
		latest:      make(map[string]*Result),
		locks:       make(map[string]*userLock),
	}, nil
}

// Run processes an upload. Validation and extraction failures end the run in
// StateFailed and are returned; enrichment failures only set Result.Warning.
func (p *Pipeline) Run(ctx context.Context, up Upload) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		UserID:     strings.TrimSpace(up.UserID),
		Generation: p.begin(up.UserID),
		FileName:   up.FileName,
	}
	log := logger.WithFields(p.logger, logger.RunFields(res.RunID, res.UserID)...)
	log = log.With(zap.Uint64("generation", res.Generation))

	p.transition(ctx, log, res, StateIdle, nil)

	doc := resume.NewDocument(up.FileName, up.MediaType, up.Data)
	if err := doc.Validate(p.opts.MaxFileSize); err != nil {
		return p.fail(ctx, log, res, err)
	}

	p.transition(ctx, log, res, StateExtracting, nil)
	text, err := p.deps.Extractor.Extract(ctx, doc)
	if err != nil {
		return p.fail(ctx, log, res, err)
	}
	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, log, res, &extract.ExtractionError{FileName: doc.FileName, Detail: "document contains no text"})
	}
	res.Text = text
	log.Info("text extracted",
		zap.String("media_type", doc.MediaType),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)

	p.transition(ctx, log, res, StateScoring, nil)
	res.Local = scoring.ScoreDocument(p.deps.Scorer, doc.FileName, text)
	log.Info("local scoring", zap.Int("candidates", len(res.Local)))

	p.transition(ctx, log, res, StateEnriching, nil)
	res.Enrichment = p.enrich(ctx, log, res)

	p.transition(ctx, log, res, StateMerging, nil)
	res.Set = recommend.Merge(res.Local, res.Enrichment)

	if !p.finish(ctx, log, doc, res) {
		res.Stale = true
		log.Warn("discarding stale result", zap.String("reason", "a newer upload was started"))
	}
	p.transition(ctx, log, res, StateDone, nil)

	return res, nil
}

// finish persists and commits res while holding the user's lock, so a stale
// run can never save after a newer one. It reports false when res is stale.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, doc *resume.Document, res *Result) bool {
	if res.UserID == "" {
		return true
	}

	unlock := p.lockUser(res.UserID)
	defer unlock()

	if p.stale(res) {
		return false
	}
	if !p.persist(ctx, log, doc, res) {
		return false
	}
	return p.commit(res)
}

// Latest returns the last committed result of userID.
func (p *Pipeline) Latest(userID string) (*Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.latest[strings.TrimSpace(userID)]
	return res, ok
}

func (p *Pipeline) enrich(ctx context.Context, log *zap.Logger, res *Result) *ai.Enrichment {
	if p.deps.Enricher == nil {
		log.Debug("enrichment disabled")
		return nil
	}

	enrichment, err := p.deps.Enricher.Enrich(ctx, res.Text, res.Local)
	if err != nil {
		res.Warning = EnrichmentUnavailableWarning
		log.Warn("enrichment failed, using local candidates only", zap.Error(err))
		return nil
	}

	for _, m := range recommend.PairingMismatches(res.Local, enrichment) {
		log.Warn("enriched job does not match local candidate",
			zap.Int("index", m.Index),
			zap.String("local_title", m.LocalTitle),
			zap.String("enriched_title", m.EnrichedTitle),
		)
	}

	log.Info("enrichment", zap.Int("jobs", len(enrichment.Jobs)))
	return enrichment
}

// persist uploads the file and saves the record. The generation is checked
// again after the upload because it may block for long; false means res was
// overtaken and nothing was saved.
func (p *Pipeline) persist(ctx context.Context, log *zap.Logger, doc *resume.Document, res *Result) bool {
	if p.deps.Objects != nil {
		path, err := p.deps.Objects.Put(ctx, res.UserID, res.RunID+doc.Extension(), doc.MediaType, doc.Data)
		if err != nil {
			log.Warn("uploading resume file", zap.Error(err))
		} else {
			res.StoragePath = path
		}
	}

	if p.stale(res) {
		if res.StoragePath != "" {
			if err := p.deps.Objects.Delete(ctx, res.StoragePath); err != nil {
				log.Warn("removing stale resume file", zap.String("key", res.StoragePath), zap.Error(err))
			}
			res.StoragePath = ""
		}
		return false
	}

	if p.deps.Store == nil {
		return true
	}

	var enriched []ai.EnrichedJob
	if res.Enrichment != nil {
		enriched = res.Enrichment.Jobs
	}

	err := p.deps.Store.Save(ctx, &store.Record{
		UserID:          res.UserID,
		FileName:        doc.FileName,
		UploadedAt:      p.now(),
		StoragePath:     res.StoragePath,
		ResumeText:      res.Text,
		LocalCandidates: res.Local,
		EnrichedJobs:    enriched,
		Recommendations: res.Set,
	})
	if err != nil {
		log.Warn("saving results", zap.Error(err))
	}
	return true
}

func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, res *Result, err error) (*Result, error) {
	p.transition(ctx, log, res, StateFailed, err)
	return res, err
}

func (p *Pipeline) transition(ctx context.Context, log *zap.Logger, res *Result, state State, cause error) {
	res.State = state

	fields := []zap.Field{zap.String(logger.FieldStage, string(state))}
	if cause != nil {
		fields = append(fields, zap.String("kind", Kind(cause)), zap.Error(cause))
		log.Warn("pipeline step", fields...)
	} else {
		log.Debug("pipeline step", fields...)
	}

	event := notify.Event{
		RunID:      res.RunID,
		UserID:     res.UserID,
		Generation: res.Generation,
		State:      string(state),
		Final:      state.Terminal(),
		Warning:    res.Warning,
		Time:       p.now().UTC(),
	}
	if cause != nil {
		event.Error = Describe(cause)
	}

	if err := p.deps.Notifier.Publish(ctx, event); err != nil {
		log.Debug("publishing state change", zap.Error(err))
	}
}

// begin starts a new generation for the user and returns it. Anonymous runs
// are independent of each other and get generation 0.
func (p *Pipeline) begin(userID string) uint64 {
	key := strings.TrimSpace(userID)
	if key == "" {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.generations[key]++
	return p.generations[key]
}

// lockUser serialises persistence per user and returns the unlock function.
func (p *Pipeline) lockUser(userID string) func() {
	p.mu.Lock()
	l, ok := p.locks[userID]
	if !ok {
		l = &userLock{}
		p.locks[userID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, userID)
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline) stale(res *Result) bool {
	if res.UserID == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.generations[res.UserID] != res.Generation
}

// commit stores a copy of res as the latest result unless a newer generation
// exists. Anonymous results are never committed.
func (p *Pipeline) commit(res *Result) bool {
	if res.UserID == "" {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generations[res.UserID] != res.Generation {
		return false
	}
	committed := *res
	p.latest[res.UserID] = &committed
	return true
}
