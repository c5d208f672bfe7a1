package database

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

const candleMeasurement = "candles"

// InfluxClient archives fetched candles so repeated analyses and
// backtests do not re-hit the upstream providers.
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	cfg      *config.InfluxConfig
	logger   *logrus.Entry
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, logger *logrus.Logger) (*InfluxClient, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		cfg:      cfg,
		logger:   logger.WithField("component", "influx"),
	}, nil
}

// Close closes the InfluxDB connection
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "pass" {
		return fmt.Errorf("InfluxDB unhealthy: %s", health.Status)
	}
	return nil
}

// WriteCandles archives a candle batch. Points are keyed by symbol,
// interval and open time, so re-archiving the same window is a no-op
// overwrite.
func (ic *InfluxClient) WriteCandles(ctx context.Context, interval string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for _, c := range candles {
		p := influxdb2.NewPoint(candleMeasurement,
			map[string]string{
				"symbol":   c.Symbol,
				"interval": interval,
			},
			map[string]interface{}{
				"open":   c.Open,
				"high":   c.High,
				"low":    c.Low,
				"close":  c.Close,
				"volume": c.Volume,
			},
			c.Timestamp,
		)
		if err := ic.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("failed to write candle point: %w", err)
		}
	}

	ic.logger.WithFields(logrus.Fields{
		"symbol":   candles[0].Symbol,
		"interval": interval,
		"count":    len(candles),
	}).Debug("Archived candles")

	return nil
}

// ReadCandles loads archived candles for a symbol/interval window.
func (ic *InfluxClient) ReadCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error) {
	query := fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == %q)
			|> filter(fn: (r) => r.symbol == %q and r.interval == %q)
			|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, ic.cfg.Bucket, start.Format(time.RFC3339), end.Format(time.RFC3339), candleMeasurement, symbol, interval)

	result, err := ic.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer result.Close()

	var candles []models.Candle
	for result.Next() {
		record := result.Record()
		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Timestamp: record.Time(),
			Open:      floatField(record.ValueByKey("open")),
			High:      floatField(record.ValueByKey("high")),
			Low:       floatField(record.ValueByKey("low")),
			Close:     floatField(record.ValueByKey("close")),
			Volume:    floatField(record.ValueByKey("volume")),
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("candle query failed: %w", result.Err())
	}

	return candles, nil
}

func floatField(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
