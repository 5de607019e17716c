// Package server exposes the recommendation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/resume-recommender/internal/pipeline"
	"github.com/spigell/resume-recommender/internal/recommend"
	"github.com/spigell/resume-recommender/internal/resume"
	"github.com/spigell/resume-recommender/internal/scoring"
	"github.com/spigell/resume-recommender/internal/store"
	"go.uber.org/zap"
)

const (
	FileField    = "resume_file"
	UserIDHeader = "X-User-ID"

	// multipartOverhead is allowed on top of the file size limit for form
	// boundaries and headers.
	multipartOverhead  = 1 << 20
	KindInvalidRequest = "invalid_request"
	KindNotFound       = "not_found"
	shutdownTimeout    = 30 * time.Second
)

type Runner interface {
	Run(ctx context.Context, up pipeline.Upload) (*pipeline.Result, error)
	Latest(userID string) (*pipeline.Result, bool)
}

type RecordLoader interface {
	Load(ctx context.Context, userID string) (*store.Record, error)
}

type Config struct {
	Listen      string
	MaxFileSize int64
}

type Server struct {
	runner  Runner
	records RecordLoader
	cfg     Config
	logger  *zap.Logger
	handler http.Handler
}

// UploadResponse is returned by POST /upload_resume.
type UploadResponse struct {
	RunID           string                      `json:"run_id"`
	ResumeText      string                      `json:"resume_text"`
	Recommendations []scoring.ScoredCandidate   `json:"recommendations"`
	Warning         string                      `json:"warning,omitempty"`
	Stale           bool                        `json:"stale,omitempty"`
	Formatted       recommend.RecommendationSet `json:"formatted_recommendations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// New builds a server. records may be nil, in which case results are served
// from the runner's in-memory state only.
func New(runner Runner, records RecordLoader, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = resume.DefaultMaxFileSize
	}

	s := &Server{
		runner:  runner,
		records: records,
		cfg:     cfg,
		logger:  logger.Named("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload_resume", s.handleUpload)
	mux.HandleFunc("GET /results/{userID}", s.handleResults)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.handler = s.withLogging(mux)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartOverhead)

	file, header, err := r.FormFile(FileField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge := &resume.FileTooLargeError{Size: r.ContentLength, Limit: s.cfg.MaxFileSize}
			s.errorResponse(w, http.StatusRequestEntityTooLarge, pipeline.Describe(tooLarge), pipeline.KindFileTooLarge)
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "No resume file was uploaded.", KindInvalidRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Warn("reading upload failed", zap.Error(err))
		s.errorResponse(w, http.StatusBadRequest, "The uploaded file could not be read.", KindInvalidRequest)
		return
	}

	res, err := s.runner.Run(r.Context(), pipeline.Upload{
		UserID:    strings.TrimSpace(r.Header.Get(UserIDHeader)),
		FileName:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	})
	if err != nil {
		kind := pipeline.Kind(err)
		s.logger.Warn("upload rejected", zap.String("kind", kind), zap.Error(err))
		s.errorResponse(w, statusFor(kind), pipeline.Describe(err), kind)
		return
	}

	s.jsonResponse(w, http.StatusOK, UploadResponse{
		RunID:           res.RunID,
		ResumeText:      res.Text,
		Recommendations: res.Local,
		Warning:         res.Warning,
		Stale:           res.Stale,
		Formatted:       res.Set,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userID"))
	if userID == "" {
		s.errorResponse(w, http.StatusBadRequest, "A user id is required.", KindInvalidRequest)
		return
	}

	if s.records != nil {
		rec, err := s.records.Load(r.Context(), userID)
		switch {
		case err == nil:
			s.jsonResponse(w, http.StatusOK, rec)
			return
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Error("loading results failed", zap.String("user_id", userID), zap.Error(err))
			s.errorResponse(w, http.StatusInternalServerError, pipeline.Describe(err), pipeline.KindInternal)
			return
		}
	}

	if res, ok := s.runner.Latest(userID); ok {
		s.jsonResponse(w, http.StatusOK, res)
		return
	}

	s.errorResponse(w, http.StatusNotFound, "No results found for this user.", KindNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding json response failed", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message, kind string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message, Kind: kind})
}

func statusFor(kind string) int {
	switch kind {
	case pipeline.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindUnsupportedFormat:
		return http.StatusBadRequest
	case pipeline.KindMissingCredential:
		return http.StatusServiceUnavailable
	case pipeline.KindExtraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
