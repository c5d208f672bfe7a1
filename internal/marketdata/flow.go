package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/analysis"
)

// FlowClient fetches on-chain style net-flow metrics over HTTP. It
// satisfies the institutional analyzer's FlowSource contract; the
// caller bounds every request with its own context deadline.
type FlowClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *logrus.Entry
}

// NewFlowClient creates a flow metrics client. Returns nil when no
// base URL is configured so the analyzer falls back to derived
// estimates.
func NewFlowClient(baseURL, apiKey string, timeout time.Duration, log *logrus.Logger) *FlowClient {
	if baseURL == "" {
		return nil
	}
	return &FlowClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  log.WithField("component", "flow-client"),
	}
}

// FetchNetFlow fetches the latest flow snapshot for a symbol.
func (f *FlowClient) FetchNetFlow(ctx context.Context, symbol string) (*analysis.FlowMetrics, error) {
	url := fmt.Sprintf("%s/v1/flows/%s", f.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var metrics analysis.FlowMetrics
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if metrics.Timestamp.IsZero() {
		metrics.Timestamp = time.Now()
	}
	metrics.Symbol = symbol

	return &metrics, nil
}
