package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

// BinanceProvider fetches klines from the Binance REST API. Priority
// source: full OHLCV with exact interval support.
type BinanceProvider struct {
	client    *http.Client
	baseURL   string
	logger    *logrus.Entry
	rateLimit time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewBinanceProvider creates the Binance candle provider.
func NewBinanceProvider(baseURL string, timeout time.Duration, log *logrus.Logger) *BinanceProvider {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &BinanceProvider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		logger:    log.WithField("component", "binance-rest"),
		rateLimit: 100 * time.Millisecond, // 10 requests per second max
	}
}

func (b *BinanceProvider) Name() string { return "binance" }

// FetchCandles fetches kline data for one symbol/interval window.
func (b *BinanceProvider) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	b.enforceRateLimit()

	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("interval", interval)
	params.Add("limit", strconv.Itoa(limit))

	fullURL := fmt.Sprintf("%s/api/v3/klines?%s", b.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// Klines arrive as positional arrays of mixed types.
	var rawKlines [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rawKlines); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candles := make([]models.Candle, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 6 {
			continue
		}
		candle, err := parseKline(symbol, raw)
		if err != nil {
			b.logger.WithField("symbol", symbol).WithError(err).Warn("Skipping malformed kline")
			continue
		}
		candles = append(candles, candle)
	}

	b.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(candles),
	}).Debug("Fetched klines")

	return candles, nil
}

func parseKline(symbol string, raw []interface{}) (models.Candle, error) {
	openTime, ok := raw[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("unexpected open time type %T", raw[0])
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := raw[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("unexpected field %d type %T", i, raw[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return models.Candle{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// enforceRateLimit spaces out calls so bursts of analyses cannot trip
// the exchange limits.
func (b *BinanceProvider) enforceRateLimit() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := time.Since(b.lastCall); elapsed < b.rateLimit {
		time.Sleep(b.rateLimit - elapsed)
	}
	b.lastCall = time.Now()
}
