// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/config"
	"github.com/jobradar/seek-crawler/internal/metrics"
	"github.com/jobradar/seek-crawler/internal/orchestrator"
	"github.com/jobradar/seek-crawler/internal/scraper"
	"github.com/jobradar/seek-crawler/internal/webhook"
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router   chi.Router
	orch     *orchestrator.Orchestrator
	records  scraper.RecordStore
	webhooks *webhook.Registry
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	orch *orchestrator.Orchestrator,
	records scraper.RecordStore,
	webhooks *webhook.Registry,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		orch:     orch,
		records:  records,
		webhooks: webhooks,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/", s.submitScrape)
			r.Get("/", s.listScrapes)
			r.Get("/{job_id}", s.getScrape)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listListings)
			r.Get("/latest", s.latestListings)
			r.Get("/{listing_id}", s.getListing)
		})
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", s.registerWebhook)
			r.Get("/", s.listWebhooks)
			r.Delete("/{webhook_id}", s.deleteWebhook)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	SearchURL string `json:"search_url"`
	MaxPages  *int   `json:"max_pages"`
	Headless  *bool  `json:"headless"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	// An empty body submits a scrape with server-side defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SearchURL != "" && !strings.HasPrefix(req.SearchURL, "http") {
		s.writeError(w, http.StatusBadRequest, "search_url must be absolute")
		return
	}
	if req.MaxPages != nil && *req.MaxPages <= 0 {
		s.writeError(w, http.StatusBadRequest, "max_pages must be positive")
		return
	}

	params := scraper.ScrapeParameters{
		SearchURL: req.SearchURL,
		MaxPages:  valueOrDefault(req.MaxPages, 0),
		Headless:  valueOrDefault(req.Headless, true),
	}

	job, err := s.orch.CreateJob(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listScrapes(w http.ResponseWriter, r *http.Request) {
	status := scraper.JobStatus(r.URL.Query().Get("status"))
	limit := intQuery(r, "limit", 50)

	jobs, err := s.orch.ListJobs(r.Context(), status, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) getScrape(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.orch.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scraper.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "scrape job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.records.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}

	company := strings.ToLower(r.URL.Query().Get("company"))
	location := strings.ToLower(r.URL.Query().Get("location"))
	filtered := listings[:0:0]
	for _, l := range listings {
		if company != "" && !strings.Contains(strings.ToLower(l.Company), company) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(l.Location), location) {
			continue
		}
		filtered = append(filtered, l)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ScrapedAt.After(filtered[j].ScrapedAt)
	})

	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}
	start := (page - 1) * pageSize
	if start < 0 || start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":      filtered[start:end],
		"total":     len(filtered),
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) latestListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.records.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}

	limit := intQuery(r, "limit", 1000)
	if limit > 5000 {
		limit = 5000
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].ScrapedAt.After(listings[j].ScrapedAt)
	})
	if len(listings) > limit {
		listings = listings[:limit]
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  listings,
		"count": len(listings),
	})
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listing_id")
	listings, err := s.records.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	for _, l := range listings {
		if l.ShortID() == id || l.URL == id {
			s.writeJSON(w, http.StatusOK, l)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "listing not found")
}

type webhookRequest struct {
	URL         string   `json:"webhook_url"`
	Events      []string `json:"events"`
	Description string   `json:"description"`
}

func (s *Server) registerWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sub, err := s.webhooks.Register(r.Context(), req.URL, req.Description, req.Events)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := s.webhooks.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"webhooks": subs, "count": len(subs)})
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhook_id")
	if err := s.webhooks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, scraper.ErrWebhookNotFound) {
			s.writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
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
				writeErrorStatic(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func writeErrorStatic(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
