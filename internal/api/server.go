package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/rag"
)

const (
	maxQuestionRunes = 2000
	// A question of maxQuestionRunes fully \u-escaped still fits.
	maxChatBodyBytes = 32 << 10
	maxJobBodyBytes  = 4 << 10
	maxSearchTopK    = 50
	readinessTimeout = 3 * time.Second
)

// Answerer answers and retrieves for questions.
type Answerer interface {
	Chat(ctx context.Context, question string) (rag.Answer, error)
	QueryDocuments(ctx context.Context, question string, topK int) ([]rag.Document, error)
}

// StatsSource reports vector store statistics.
type StatsSource interface {
	DescribeStats(ctx context.Context) (crawler.StoreStats, error)
}

// StateSource reports the crawl controller phase.
type StateSource interface {
	State() pipeline.State
}

// Server wires HTTP handlers to the answer composer and stores.
type Server struct {
	router   chi.Router
	answerer Answerer
	stats    StatsSource
	state    StateSource
	jobs     JobSubmitter
	runs     RunSource
	cfg      config.ServerConfig
	logger   *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithJobs enables the /v1/jobs routes.
func WithJobs(jobs JobSubmitter, runs RunSource) Option {
	return func(s *Server) {
		s.jobs = jobs
		s.runs = runs
	}
}

// NewServer constructs a Server with middleware and routes. state may be nil.
func NewServer(answerer Answerer, stats StatsSource, state StateSource, cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		answerer: answerer,
		stats:    stats,
		state:    state,
		cfg:      cfg,
		logger:   logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.With(middleware.RequestSize(maxChatBodyBytes)).Post("/chat", s.chat)
		r.Get("/search", s.search)
		r.Get("/index/stats", s.indexStats)
		r.Get("/crawl/state", s.crawlState)
		if s.jobs != nil && s.runs != nil {
			r.With(middleware.RequestSize(maxJobBodyBytes)).Post("/jobs", s.submitJob)
			r.Get("/jobs", s.listJobs)
			r.Get("/jobs/{id}", s.getJob)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if _, err := s.stats.DescribeStats(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "vector store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	question, err := validateQuestion(req.Question)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	answer, err := s.answerer.Chat(r.Context(), question)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "Sorry, I couldn't answer that right now. Please try again shortly.")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	question, err := validateQuestion(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		topK, err = strconv.Atoi(raw)
		if err != nil || topK <= 0 || topK > maxSearchTopK {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be between 1 and %d", maxSearchTopK))
			return
		}
	}
	docs, err := s.answerer.QueryDocuments(r.Context(), question, topK)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": question, "documents": docs})
}

func (s *Server) indexStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "vector store unavailable")
		return
	}
	stats, err := s.stats.DescribeStats(r.Context())
	if err != nil {
		s.logger.Error("describe stats failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read index stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) crawlState(w http.ResponseWriter, _ *http.Request) {
	state := pipeline.StateIdle
	if s.state != nil {
		state = s.state.State()
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func validateQuestion(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", errors.New("question is required")
	}
	if len([]rune(q)) > maxQuestionRunes {
		return "", fmt.Errorf("question must be at most %d characters", maxQuestionRunes)
	}
	return q, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decodeBody reads JSON into v. Bodies are capped per route by
// middleware.RequestSize; on failure it writes 413 or 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must be at most %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
