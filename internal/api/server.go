// Package api exposes the HTTP front end: upload grants, analytics queries,
// view tracking and the storage-notification webhook.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/analytics"
	"github.com/mediaqos/mediaqos/internal/config"
	"github.com/mediaqos/mediaqos/internal/metrics"
	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/uploads"
	"github.com/mediaqos/mediaqos/internal/videostore"
	"github.com/mediaqos/mediaqos/internal/views"
)

const (
	summaryLimit = 10
	popularLimit = 5

	// maxNotificationBytes caps webhook bodies; a storage notification is a
	// few KiB at most.
	maxNotificationBytes = 1 << 20
)

// Enqueuer hands a raw storage notification to the delivery queue.
type Enqueuer func(ctx context.Context, body []byte) error

// Server routes requests to the pipeline components.
type Server struct {
	cfg         *config.Config
	coordinator *uploads.Coordinator
	tracker     *views.Tracker
	aggregator  *analytics.Aggregator
	enqueue     Enqueuer
	logger      zerolog.Logger
	server      *http.Server
	once        sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, coordinator *uploads.Coordinator, tracker *views.Tracker, aggregator *analytics.Aggregator, enqueue Enqueuer, logger zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		coordinator: coordinator,
		tracker:     tracker,
		aggregator:  aggregator,
		enqueue:     enqueue,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the route table wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// route dispatches on (path, method) so unknown combinations fall through to
// the JSON 404 with debug context instead of the default text response. The
// "/prod" stage prefix is stripped for clients still using the old gateway
// URLs.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	rawPath := r.URL.Path
	path := strings.TrimPrefix(rawPath, "/prod")

	switch {
	case path == "/upload" && r.Method == http.MethodPost:
		s.handleUpload(w, r)
	case path == "/analytics/videos" && r.Method == http.MethodGet:
		s.handleAnalyticsVideos(w, r)
	case path == "/analytics/popular" && r.Method == http.MethodGet:
		s.handleAnalyticsPopular(w, r)
	case path == "/analytics/track" && r.Method == http.MethodPost:
		s.handleTrackView(w, r)
	case path == "/events/storage" && r.Method == http.MethodPost:
		s.handleStorageEvent(w, r)
	case path == "/healthz" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		respondJSON(w, http.StatusNotFound, errorResponse{
			Error: "Route not found",
			Debug: &debugInfo{Path: path, RawPath: rawPath, Method: r.Method},
		})
	}
}

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type uploadResponse struct {
	Success      bool              `json:"success"`
	VideoID      string            `json:"videoId"`
	UploadURL    string            `json:"uploadUrl"`
	UploadFields map[string]string `json:"uploadFields"`
	Message      string            `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	res, err := s.coordinator.RequestUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		s.logger.Error().Err(err).Msg("upload initialization failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to initialize upload"})
		return
	}
	metrics.UploadsInitiatedTotal.Inc()
	respondJSON(w, http.StatusOK, uploadResponse{
		Success:      true,
		VideoID:      res.VideoID,
		UploadURL:    res.Grant.URL,
		UploadFields: res.Grant.Fields,
		Message:      "Upload URL generated for " + req.Filename,
	})
}

type summaryResponse struct {
	Success         bool                 `json:"success"`
	TotalVideos     int                  `json:"totalVideos"`
	CompletedVideos int                  `json:"completedVideos"`
	TotalViews      int64                `json:"totalViews"`
	Videos          []*model.VideoRecord `json:"videos"`
}

func (s *Server) handleAnalyticsVideos(w http.ResponseWriter, r *http.Request) {
	summary, err := s.aggregator.ListSummary(r.Context(), summaryLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("analytics summary failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load analytics"})
		return
	}
	respondJSON(w, http.StatusOK, summaryResponse{
		Success:         true,
		TotalVideos:     summary.TotalVideos,
		CompletedVideos: summary.CompletedVideos,
		TotalViews:      summary.TotalViews,
		Videos:          summary.Videos,
	})
}

type popularResponse struct {
	Success       bool                 `json:"success"`
	PopularVideos []*model.VideoRecord `json:"popularVideos"`
}

func (s *Server) handleAnalyticsPopular(w http.ResponseWriter, r *http.Request) {
	top, err := s.aggregator.TopViewed(r.Context(), popularLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("popular ranking failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load analytics"})
		return
	}
	respondJSON(w, http.StatusOK, popularResponse{Success: true, PopularVideos: top})
}

type trackRequest struct {
	VideoID string `json:"videoId"`
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.VideoID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "videoId required"})
		return
	}
	if err := s.tracker.TrackView(r.Context(), req.VideoID); err != nil {
		if errors.Is(err, videostore.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, errorResponse{Error: "video not found"})
			return
		}
		s.logger.Error().Err(err).Str("videoId", req.VideoID).Msg("track view failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to track view"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "View tracked"})
}

// handleStorageEvent is the bucket-notification webhook: the raw body is
// enqueued untouched and all interpretation happens in the worker, so a
// malformed notification can never fail the webhook.
func (s *Server) handleStorageEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}
	if err := s.enqueue(r.Context(), body); err != nil {
		s.logger.Error().Err(err).Msg("enqueue storage notification failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to enqueue notification"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type debugInfo struct {
	Path    string `json:"path"`
	RawPath string `json:"rawPath"`
	Method  string `json:"method"`
}

type errorResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error"`
	Debug   *debugInfo `json:"debug,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
