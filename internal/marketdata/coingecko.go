package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

// CoinGeckoProvider fetches OHLC data from CoinGecko. Fallback source:
// coarse granularity, no volume, but independent of exchange uptime.
type CoinGeckoProvider struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	logger    *logrus.Entry
	symbolMap map[string]string // exchange symbol -> CoinGecko ID
}

// NewCoinGeckoProvider creates the CoinGecko candle provider. The API
// key is optional; without one the free-tier limits apply.
func NewCoinGeckoProvider(apiKey string, timeout time.Duration, log *logrus.Logger) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   "https://api.coingecko.com/api/v3",
		apiKey:    apiKey,
		logger:    log.WithField("component", "coingecko"),
		symbolMap: defaultSymbolMap(),
	}
}

func (c *CoinGeckoProvider) Name() string { return "coingecko" }

func (c *CoinGeckoProvider) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	coinID := c.coinID(symbol)
	if coinID == "" {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	days := daysFor(interval, limit)
	url := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%d", c.baseURL, coinID, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// OHLC rows arrive as [timestamp_ms, open, high, low, close].
	var rows [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(int64(row[0])).UTC(),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		})
	}
	if len(candles) > limit && limit > 0 {
		candles = candles[len(candles)-limit:]
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(candles),
	}).Debug("Fetched OHLC rows")

	return candles, nil
}

func (c *CoinGeckoProvider) coinID(symbol string) string {
	if id, ok := c.symbolMap[symbol]; ok {
		return id
	}
	// Unknown pairs against USD-like quotes get a lowercase guess.
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if base, found := strings.CutSuffix(symbol, quote); found && base != "" {
			return strings.ToLower(base)
		}
	}
	return ""
}

// daysFor picks the smallest CoinGecko window covering the requested
// candle count. The API only accepts fixed day buckets.
func daysFor(interval string, limit int) int {
	span := models.IntervalDuration(interval) * time.Duration(limit)
	days := int(span.Hours()/24) + 1
	for _, bucket := range []int{1, 7, 14, 30, 90, 180, 365} {
		if days <= bucket {
			return bucket
		}
	}
	return 365
}

func defaultSymbolMap() map[string]string {
	return map[string]string{
		"BTCUSDT":   "bitcoin",
		"ETHUSDT":   "ethereum",
		"SOLUSDT":   "solana",
		"BNBUSDT":   "binancecoin",
		"XRPUSDT":   "ripple",
		"ADAUSDT":   "cardano",
		"DOGEUSDT":  "dogecoin",
		"DOTUSDT":   "polkadot",
		"AVAXUSDT":  "avalanche-2",
		"LINKUSDT":  "chainlink",
		"MATICUSDT": "matic-network",
		"LTCUSDT":   "litecoin",
	}
}
