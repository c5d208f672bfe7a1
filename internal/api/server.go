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

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/analysis"
	"github.com/zikalyze/core/internal/cache"
	"github.com/zikalyze/core/internal/database"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/internal/marketdata"
	"github.com/zikalyze/core/internal/messaging"
	"github.com/zikalyze/core/internal/websocket"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	engine     *analysis.Engine
	tracker    *learning.Tracker
	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	wsManager  *websocket.Manager
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	engine *analysis.Engine,
	tracker *learning.Tracker,
	mysqlDB *database.MySQLClient,
	redisCache *cache.RedisClient,
	natsClient *messaging.NATSClient,
	wsManager *websocket.Manager,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		tracker:    tracker,
		mysqlDB:    mysqlDB,
		redisCache: redisCache,
		natsClient: natsClient,
		wsManager:  wsManager,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.HandleFunc("/analyze/{symbol}", s.handleAnalyze).Methods("GET")
	apiV1.HandleFunc("/feedback", s.handleFeedback).Methods("POST")
	apiV1.HandleFunc("/learning/{symbol}", s.handleGetLearning).Methods("GET")
	apiV1.HandleFunc("/learning/{symbol}", s.handleWipeLearning).Methods("DELETE")

	if s.cfg.WebSocket.Enabled && s.wsManager != nil {
		apiV1.HandleFunc("/ws", s.wsManager.HandleWebSocket).Methods("GET")
	}
}

// Start runs the HTTP server until Stop or a listener error
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// Handler functions

// handleHealth reports component health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	redisOK := false
	if s.redisCache != nil {
		redisOK = s.redisCache.Health(r.Context()) == nil
	}
	mysqlOK := false
	if s.mysqlDB != nil {
		mysqlOK = s.mysqlDB.Health(r.Context()) == nil
	}

	health := map[string]interface{}{
		"status": "healthy",
		"services": map[string]bool{
			"redis": redisOK,
			"mysql": mysqlOK,
			"nats":  s.natsClient != nil && s.natsClient.IsConnected(),
		},
		"timestamp": time.Now().Unix(),
	}
	if s.wsManager != nil {
		health["websocket_clients"] = s.wsManager.ConnectionCount()
	}

	s.writeJSON(w, http.StatusOK, health)
}

// handleAnalyze runs a full analysis for one symbol.
// Query params: interval, limit, fresh (skip cache), timeout_ms.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	opts := analysis.Options{
		Interval:  r.URL.Query().Get("interval"),
		SkipCache: r.URL.Query().Get("fresh") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("timeout_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			s.writeError(w, http.StatusBadRequest, "timeout_ms must be a positive integer")
			return
		}
		opts.Timeout = time.Duration(ms) * time.Millisecond
	}

	result, err := s.engine.Analyze(r.Context(), symbol, opts)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrInvalidSymbol):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, marketdata.ErrNoData):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			s.writeError(w, http.StatusGatewayTimeout, "analysis timed out")
		default:
			s.logger.WithError(err).Error("Analysis failed")
			s.writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleFeedback records a user outcome signal for a past result
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var event models.FeedbackEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed feedback payload")
		return
	}

	event.Symbol = strings.ToUpper(strings.TrimSpace(event.Symbol))
	if err := models.ValidateSymbol(event.Symbol); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validDirection(event.PredictedBias) || !validDirection(event.ActualOutcome) {
		s.writeError(w, http.StatusBadRequest, "bias values must be bullish, bearish or neutral")
		return
	}
	if event.SubmittedAt.IsZero() {
		event.SubmittedAt = time.Now()
	}

	if err := s.tracker.RecordOutcome(r.Context(), event.Symbol, event.PredictedBias, event.ActualOutcome); err != nil {
		s.logger.WithError(err).Error("Failed to record outcome")
		s.writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	// Audit trail and fan-out are best-effort.
	if s.mysqlDB != nil {
		if err := s.mysqlDB.InsertFeedback(r.Context(), &event); err != nil {
			s.logger.WithError(err).Warn("Failed to persist feedback audit row")
		}
	}
	if s.natsClient != nil {
		if err := s.natsClient.PublishFeedback(&event); err != nil {
			s.logger.WithError(err).Warn("Failed to publish feedback event")
		}
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// handleGetLearning returns the learning record for a symbol
func (s *Server) handleGetLearning(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if err := models.ValidateSymbol(symbol); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.tracker.Store().Get(r.Context(), symbol)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load learning record")
		s.writeError(w, http.StatusInternalServerError, "failed to load learning record")
		return
	}

	weights, _ := s.tracker.Weights(r.Context(), symbol)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":  record,
		"weights": weights,
	})
}

// handleWipeLearning deletes everything stored for a symbol
func (s *Server) handleWipeLearning(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if err := models.ValidateSymbol(symbol); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.tracker.Store().Wipe(r.Context(), symbol); err != nil {
		s.logger.WithError(err).Error("Failed to wipe learning record")
		s.writeError(w, http.StatusInternalServerError, "failed to wipe learning record")
		return
	}
	if s.mysqlDB != nil {
		if err := s.mysqlDB.WipeFeedback(r.Context(), symbol); err != nil {
			s.logger.WithError(err).Warn("Failed to wipe feedback audit rows")
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "wiped", "symbol": symbol})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func validDirection(d models.Direction) bool {
	switch d {
	case models.Bullish, models.Bearish, models.Neutral:
		return true
	}
	return false
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade pass through the logging wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
