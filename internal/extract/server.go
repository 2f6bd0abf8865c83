package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/observability"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-Id"

// multipartMemory is the part of an upload kept in memory while parsing.
const multipartMemory = 8 << 20

type requestIDKey struct{}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Server serves document extraction over HTTP.
type Server struct {
	cfg       ServerConfig
	extractor *Extractor
	metrics   *observability.Metrics
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewServer creates a server. metrics may be nil.
func NewServer(cfg ServerConfig, extractor *Extractor, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.RateBurst))
	}
	return s
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.With(s.rateLimit).Post("/api/extract", s.handleExtract)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Extraction server listening", "addr", s.cfg.Addr,
			"max_upload", humanize.IBytes(uint64(s.cfg.MaxUploadBytes)))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.observe(http.StatusTooManyRequests, time.Time{})
			respondError(w, http.StatusTooManyRequests, "too many requests, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"formats": Extensions(),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := s.logger.With("request_id", RequestID(r.Context()))

	tooLarge := fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(s.cfg.MaxUploadBytes)))
	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.fail(w, logger, start, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if StatusFor(err) == http.StatusRequestEntityTooLarge {
			s.fail(w, logger, start, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		s.fail(w, logger, start, http.StatusBadRequest, ErrMissingFile.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, logger, start, http.StatusBadRequest, ErrMissingFile.Error())
		return
	}
	defer file.Close()

	if s.metrics != nil {
		s.metrics.ExtractedDocBytes.Observe(float64(header.Size))
	}

	text, err := s.extractor.Extract(r.Context(), header.Filename, file)
	if err != nil {
		status := StatusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			logger.Error("Extraction failed", "file", header.Filename, "error", err)
			msg = "internal error: " + err.Error()
		}
		s.fail(w, logger, start, status, msg)
		return
	}

	logger.Info("Extracted document", "file", header.Filename,
		"size", humanize.Bytes(uint64(header.Size)), "chars", len(text), "took", time.Since(start))
	s.observe(http.StatusOK, start)
	respondJSON(w, http.StatusOK, Result{
		OK:   true,
		Text: text,
		Meta: Describe(header.Filename, text),
	})
}

// StatusFor maps an extraction error to its HTTP status.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var extractionErr *ExtractionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrInvalidFilename),
		errors.Is(err, ErrMissingExtension),
		errors.Is(err, ErrUnsupportedFormat),
		errors.As(err, &extractionErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, logger *log.Logger, start time.Time, status int, msg string) {
	logger.Warn("Extraction rejected", "status", status, "error", msg)
	s.observe(status, start)
	respondError(w, status, msg)
}

func (s *Server) observe(status int, start time.Time) {
	if s.metrics == nil {
		return
	}
	var d time.Duration
	if !start.IsZero() {
		d = time.Since(start)
	}
	s.metrics.ObserveExtraction(status, d)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Result{OK: false, Error: message})
}
