package exchange

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	binance "github.com/binance/binance-connector-go"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// TickHandler receives every converted price sample from the stream.
type TickHandler func(*models.PriceSample)

// BinanceFeed wraps the official connector's combined ticker stream.
// The stream covers the configured symbol universe; which symbols are
// actually delivered downstream is the Hub's concern.
type BinanceFeed struct {
	client  *binance.WebsocketStreamClient
	symbols []string
	cfg     *config.ExchangeConfig
	logger  *logrus.Entry

	handler   TickHandler
	handlerMu sync.RWMutex

	connected atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBinanceFeed creates a feed for the configured symbols.
func NewBinanceFeed(cfg *config.ExchangeConfig, logger *logrus.Logger) *BinanceFeed {
	return &BinanceFeed{
		symbols: cfg.Symbols,
		cfg:     cfg,
		logger:  logger.WithField("component", "binance-feed"),
	}
}

// SetHandler installs the tick handler. Must be called before Connect.
func (f *BinanceFeed) SetHandler(handler TickHandler) {
	f.handlerMu.Lock()
	f.handler = handler
	f.handlerMu.Unlock()
}

// Connect opens the combined ticker stream.
func (f *BinanceFeed) Connect() error {
	f.client = binance.NewWebsocketStreamClient(true) // combined stream

	doneCh, stopCh, err := f.client.WsCombinedMarketTickersStatServe(
		f.symbols, f.tickerHandler(), f.errorHandler())
	if err != nil {
		return fmt.Errorf("failed to start ticker stream: %w", err)
	}

	f.doneCh = doneCh
	f.stopCh = stopCh
	f.stopOnce = sync.Once{}
	f.connected.Store(true)

	f.logger.WithField("symbols", len(f.symbols)).Info("Connected to Binance ticker stream")
	return nil
}

// Done is closed by the connector when the stream dies. The Hub's
// supervisor watches it to drive reconnects.
func (f *BinanceFeed) Done() <-chan struct{} {
	return f.doneCh
}

// IsConnected returns the connection status.
func (f *BinanceFeed) IsConnected() bool {
	return f.connected.Load()
}

// Disconnect stops the stream. Safe to call repeatedly.
func (f *BinanceFeed) Disconnect() {
	f.stopOnce.Do(func() {
		f.connected.Store(false)
		if f.stopCh != nil {
			close(f.stopCh)
		}
	})
}

func (f *BinanceFeed) tickerHandler() binance.WsMarketTickersStatHandler {
	return func(event *binance.WsMarketTickerStatEvent) {
		sample := f.convertEvent(event)
		if sample == nil {
			return
		}

		f.handlerMu.RLock()
		handler := f.handler
		f.handlerMu.RUnlock()
		if handler != nil {
			handler(sample)
		}
	}
}

func (f *BinanceFeed) errorHandler() binance.ErrHandler {
	return func(err error) {
		f.logger.WithError(err).Error("WebSocket error occurred")
		f.connected.Store(false)
	}
}

// convertEvent turns a ticker event into a PriceSample. Malformed
// prices drop the event; the other fields degrade to zero.
func (f *BinanceFeed) convertEvent(event *binance.WsMarketTickerStatEvent) *models.PriceSample {
	price, err := strconv.ParseFloat(event.LastPrice, 64)
	if err != nil {
		f.logger.WithError(err).WithField("price", event.LastPrice).Error("Failed to parse price")
		return nil
	}

	volume, err := strconv.ParseFloat(event.BaseVolume, 64)
	if err != nil {
		volume = 0
	}
	changePercent, err := strconv.ParseFloat(event.PriceChangePercent, 64)
	if err != nil {
		changePercent = 0
	}

	return &models.PriceSample{
		Symbol:    event.Symbol,
		Price:     price,
		Change24h: changePercent,
		Volume:    volume,
		Timestamp: time.Unix(event.Time/1000, (event.Time%1000)*1e6),
	}
}
