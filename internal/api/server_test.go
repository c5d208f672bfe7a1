package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/internal/analysis"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/internal/marketdata"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

type stubSource struct {
	candles []models.Candle
	err     error
}

func (s *stubSource) Fetch(_ context.Context, _, _ string, _ int) ([]models.Candle, string, error) {
	return s.candles, "stub", s.err
}

func trendingCandles(n int) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		next := price * 1.01
		out = append(out, models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price, High: next, Low: price, Close: next,
			Volume: 100,
		})
		price = next
	}
	return out
}

func testServer(t *testing.T, source analysis.CandleSource) (*Server, *learning.Tracker) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: 8080}
	cfg.Security = config.SecurityConfig{CORSEnabled: false}
	cfg.Analysis = config.AnalysisConfig{
		DefaultInterval: "1h", DefaultLimit: 100, MinWindow: 20,
		ClusterThreshold: 0.02, MaxClusters: 8, DisagreementPenalty: 0.5,
		FlowTimeout: 100 * time.Millisecond,
	}
	cfg.Learning = config.LearningConfig{MinSamples: 10, EMAAlpha: 0.2, MaxConfidenceAdjust: 20, AdjustStep: 2}

	tracker := learning.NewTracker(learning.NewMemoryStore(), &cfg.Learning, log)
	analyzers := []analysis.Analyzer{
		analysis.NewTechnicalAnalyzer(),
		analysis.NewInstitutionalAnalyzer(nil, cfg.Analysis.FlowTimeout, log),
		analysis.NewMacroAnalyzer(analysis.DefaultCalendar()),
	}
	engine := analysis.NewEngine(source, nil, nil, nil, tracker, analyzers, &cfg.Analysis, log)

	return NewServer(cfg, log, engine, tracker, nil, nil, nil, nil), tracker
}

func TestHandleAnalyze(t *testing.T) {
	s, _ := testServer(t, &stubSource{candles: trendingCandles(50)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze/BTCUSDT?interval=1h", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ConsensusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "BTCUSDT", result.Symbol)
	assert.Equal(t, models.Bullish, result.OverallBias)
	assert.NotEmpty(t, result.Report)
	assert.Len(t, result.Verdicts, 3)
}

func TestHandleAnalyze_InvalidInput(t *testing.T) {
	s, _ := testServer(t, &stubSource{candles: trendingCandles(50)})

	for path, want := range map[string]int{
		"/api/v1/analyze/bad!symbol":           http.StatusBadRequest,
		"/api/v1/analyze/BTCUSDT?limit=x":      http.StatusBadRequest,
		"/api/v1/analyze/BTCUSDT?timeout_ms=0": http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestHandleAnalyze_NoData(t *testing.T) {
	s, _ := testServer(t, &stubSource{err: fmt.Errorf("wrapped: %w", marketdata.ErrNoData)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze/BTCUSDT", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFeedback(t *testing.T) {
	s, tracker := testServer(t, &stubSource{candles: trendingCandles(50)})

	body, _ := json.Marshal(models.FeedbackEvent{
		ResultID:      "11111111-2222-3333-4444-555555555555",
		Symbol:        "btcusdt",
		PredictedBias: models.Bullish,
		ActualOutcome: models.Bullish,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	rec2, err := tracker.Store().Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec2.TotalPredictions)
	assert.Equal(t, int64(1), rec2.CorrectPredictions)
}

func TestHandleFeedback_Invalid(t *testing.T) {
	s, _ := testServer(t, &stubSource{})

	cases := []string{
		`not json`,
		`{"symbol":"BTCUSDT","predicted_bias":"sideways","actual_outcome":"bullish"}`,
		`{"symbol":"???","predicted_bias":"bullish","actual_outcome":"bullish"}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLearningEndpoints(t *testing.T) {
	s, tracker := testServer(t, &stubSource{})
	ctx := context.Background()

	require.NoError(t, tracker.RecordOutcome(ctx, "BTCUSDT", models.Bullish, models.Bullish))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/learning/BTCUSDT", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Record  models.LearningRecord `json:"record"`
		Weights models.Weights        `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, int64(1), payload.Record.TotalPredictions)
	assert.InDelta(t, 1.0, payload.Weights.Sum(), 1e-9)

	// Wipe and confirm the record resets.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/learning/BTCUSDT", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	fresh, err := tracker.Store().Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalPredictions)
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer(t, &stubSource{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
