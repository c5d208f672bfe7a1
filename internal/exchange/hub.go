package exchange

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// PriceHandler is a registered consumer of live samples.
type PriceHandler func(*models.PriceSample)

// feed abstracts the upstream stream so the hub's subscription and
// reconnect behavior can be tested without a live exchange.
type feed interface {
	SetHandler(TickHandler)
	Connect() error
	Disconnect()
	Done() <-chan struct{}
	IsConnected() bool
}

// Hub fans live samples out to registered handlers. Subscription
// membership is handler-side: changing it never touches the upstream
// stream. A supervisor reconnects a dead stream with bounded linear
// backoff.
type Hub struct {
	feed   feed
	cfg    *config.ExchangeConfig
	logger *logrus.Entry

	mu       sync.RWMutex
	active   map[string]struct{}
	handlers []PriceHandler

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewHub creates a hub over the Binance feed, subscribed to the
// configured symbols.
func NewHub(cfg *config.ExchangeConfig, logger *logrus.Logger) *Hub {
	h := &Hub{
		feed:   NewBinanceFeed(cfg, logger),
		cfg:    cfg,
		logger: logger.WithField("component", "hub"),
		active: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
	for _, s := range cfg.Symbols {
		h.active[s] = struct{}{}
	}
	return h
}

// RegisterHandler adds a fan-out consumer. Handlers must not block;
// slow consumers buffer or drop on their own side.
func (h *Hub) RegisterHandler(handler PriceHandler) {
	h.mu.Lock()
	h.handlers = append(h.handlers, handler)
	h.mu.Unlock()
}

// Subscribe adds symbols to the active set. No reconnect: membership
// is applied when samples are dispatched.
func (h *Hub) Subscribe(symbols ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range symbols {
		h.active[s] = struct{}{}
	}
}

// Unsubscribe removes symbols from the active set. Unknown symbols are
// a no-op.
func (h *Hub) Unsubscribe(symbols ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range symbols {
		delete(h.active, s)
	}
}

// Subscribed reports whether a symbol is currently active.
func (h *Hub) Subscribed(symbol string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.active[symbol]
	return ok
}

// IsConnected reports the upstream stream state.
func (h *Hub) IsConnected() bool {
	return h.feed.IsConnected()
}

// Start connects the feed and launches the reconnect supervisor.
func (h *Hub) Start() error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("hub already running")
	}

	h.feed.SetHandler(h.dispatch)
	if err := h.feed.Connect(); err != nil {
		h.running.Store(false)
		return fmt.Errorf("failed to connect feed: %w", err)
	}

	h.wg.Add(1)
	go h.supervise()

	h.logger.WithField("symbols", len(h.active)).Info("Price hub started")
	return nil
}

// Stop disconnects and waits for the supervisor. Idempotent.
func (h *Hub) Stop() {
	if !h.running.CompareAndSwap(true, false) {
		return
	}
	close(h.done)
	h.feed.Disconnect()
	h.wg.Wait()
	h.logger.Info("Price hub stopped")
}

// dispatch filters by subscription membership and fans out.
func (h *Hub) dispatch(sample *models.PriceSample) {
	if !h.running.Load() {
		return
	}

	h.mu.RLock()
	_, subscribed := h.active[sample.Symbol]
	handlers := h.handlers
	h.mu.RUnlock()

	if !subscribed {
		return
	}
	for _, handler := range handlers {
		handler(sample)
	}
}

// supervise watches the stream and reconnects with linear backoff.
// After the attempt budget is spent the hub stays up without a feed;
// analyses keep working from the REST providers.
func (h *Hub) supervise() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case <-h.feed.Done():
			if !h.running.Load() {
				return
			}
			if !h.reconnect() {
				h.logger.Error("Feed reconnect budget exhausted, live feed disabled")
				return
			}
		}
	}
}

func (h *Hub) reconnect() bool {
	for attempt := 1; attempt <= h.cfg.MaxReconnectAttempts; attempt++ {
		delay := time.Duration(attempt) * h.cfg.ReconnectDelay

		h.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     h.cfg.MaxReconnectAttempts,
			"delay":   delay,
		}).Warn("Feed disconnected, reconnecting")

		select {
		case <-h.done:
			return false
		case <-time.After(delay):
		}

		if err := h.feed.Connect(); err != nil {
			h.logger.WithError(err).Warn("Reconnect attempt failed")
			continue
		}
		h.logger.Info("Feed reconnected")
		return true
	}
	return false
}
