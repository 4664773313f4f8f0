// Package main provides the HTTP service for register lookups. It handles
// incoming requests, bounds the number of simultaneous browser sessions,
// and returns structured JSON responses.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/czlonkowski/kw-scrapper/internal/config"
	"github.com/czlonkowski/kw-scrapper/internal/models"
	"github.com/czlonkowski/kw-scrapper/internal/scraper"
)

// lookupTimeout caps one whole lookup; the portal is slow on bad days but
// anything past this is a lost cause.
const lookupTimeout = 4 * time.Minute

type server struct {
	scraper *scraper.Scraper
	cfg     config.Config
	logger  *slog.Logger

	// admission bounds simultaneous browser sessions; each one is a full
	// browser process.
	admission chan struct{}
}

func newServer(cfg config.Config, logger *slog.Logger) *server {
	return &server{
		scraper:   scraper.New(cfg, logger),
		cfg:       cfg,
		logger:    logger,
		admission: make(chan struct{}, cfg.MaxConcurrent),
	}
}

// handleLookup runs one register lookup. Expected failures (not found,
// invalid number, portal timeout) return 200 with success=false; only a
// broken browser engine is an internal fault.
func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	var key models.LookupKey
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := key.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid lookup key", err.Error())
		return
	}

	opts := scraper.DefaultOptions()
	if v := r.URL.Query().Get("clean_html"); v != "" {
		opts.CleanHTML = v != "false" && v != "0"
	}
	if v := r.URL.Query().Get("debug"); v != "" {
		opts.Debug = v == "true" || v == "1"
	}

	// Wait for an admission slot; give up if the client does first.
	select {
	case s.admission <- struct{}{}:
		defer func() { <-s.admission }()
	case <-r.Context().Done():
		logger.Info("client gone before admission", "kw", key.Identifier())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	logger.Info("lookup started", "kw", key.Identifier(), "clean_html", opts.CleanHTML, "debug", opts.Debug)
	start := time.Now()

	result, err := s.scraper.Lookup(ctx, key, opts)
	if err != nil {
		var initErr *models.SessionInitError
		if errors.As(err, &initErr) {
			logger.Error("browser engine unavailable", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "browser engine unavailable", "")
			return
		}
		logger.Error("lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	logger.Info("lookup finished",
		"kw", key.Identifier(),
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "kw-scrapper",
	})
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "KW Scraper API",
		"status":  "running",
	})
}

func (s *server) errorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Success: false,
		Error:   message,
		Details: details,
	})
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	srv := newServer(cfg, logger)

	r := mux.NewRouter()
	r.HandleFunc("/", srv.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/scraper/health", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/scraper/ekw", srv.handleLookup).Methods(http.MethodPost)

	logger.Info("starting server", "port", cfg.Port, "max_concurrent", cfg.MaxConcurrent)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
