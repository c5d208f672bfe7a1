package exchange

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// fakeFeed drives the hub without a network connection.
type fakeFeed struct {
	mu           sync.Mutex
	handler      TickHandler
	doneCh       chan struct{}
	connects     int
	failConnects int
	connected    bool
}

func (f *fakeFeed) SetHandler(h TickHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeFeed) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnects >= f.connects {
		return errors.New("connection refused")
	}
	f.doneCh = make(chan struct{})
	f.connected = true
	return nil
}

func (f *fakeFeed) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeFeed) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneCh
}

func (f *fakeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// kill simulates an upstream drop.
func (f *fakeFeed) kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	close(f.doneCh)
}

func (f *fakeFeed) emit(symbol string, price float64) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(&models.PriceSample{Symbol: symbol, Price: price, Timestamp: time.Now()})
	}
}

func testHub(f *fakeFeed) *Hub {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.ExchangeConfig{
		Symbols:              []string{"BTCUSDT", "ETHUSDT"},
		MaxReconnectAttempts: 3,
		ReconnectDelay:       time.Millisecond,
	}
	h := NewHub(cfg, log)
	h.feed = f
	return h
}

func TestHub_DispatchFiltersBySubscription(t *testing.T) {
	f := &fakeFeed{}
	h := testHub(f)

	var count atomic.Int64
	h.RegisterHandler(func(s *models.PriceSample) { count.Add(1) })

	require.NoError(t, h.Start())
	defer h.Stop()

	f.emit("BTCUSDT", 50000)
	f.emit("DOGEUSDT", 0.1) // not subscribed
	assert.Equal(t, int64(1), count.Load())

	// Membership changes apply without reconnecting.
	connectsBefore := f.connects
	h.Subscribe("DOGEUSDT")
	f.emit("DOGEUSDT", 0.1)
	assert.Equal(t, int64(2), count.Load())

	h.Unsubscribe("BTCUSDT")
	f.emit("BTCUSDT", 50001)
	assert.Equal(t, int64(2), count.Load())
	assert.Equal(t, connectsBefore, f.connects)
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := testHub(&fakeFeed{})
	h.Unsubscribe("BTCUSDT")
	h.Unsubscribe("BTCUSDT")
	h.Unsubscribe("NEVERSEEN")
	assert.False(t, h.Subscribed("BTCUSDT"))
	assert.True(t, h.Subscribed("ETHUSDT"))
}

func TestHub_ReconnectsAfterDrop(t *testing.T) {
	f := &fakeFeed{}
	h := testHub(f)
	require.NoError(t, h.Start())
	defer h.Stop()

	f.kill()

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.connects == 2 && f.connected
	}, time.Second, 5*time.Millisecond)
}

func TestHub_ReconnectBudgetExhausted(t *testing.T) {
	// First connect succeeds, every reconnect fails.
	f := &fakeFeed{}
	h := testHub(f)
	require.NoError(t, h.Start())
	defer h.Stop()

	f.mu.Lock()
	f.failConnects = 1 + h.cfg.MaxReconnectAttempts + 10 // all further connects fail
	f.mu.Unlock()
	f.kill()

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.connects == 1+h.cfg.MaxReconnectAttempts
	}, time.Second, 5*time.Millisecond)

	// Budget spent: no further attempts.
	time.Sleep(20 * time.Millisecond)
	f.mu.Lock()
	total := f.connects
	f.mu.Unlock()
	assert.Equal(t, 1+h.cfg.MaxReconnectAttempts, total)
}

func TestHub_StopIsIdempotent(t *testing.T) {
	f := &fakeFeed{}
	h := testHub(f)
	require.NoError(t, h.Start())

	h.Stop()
	h.Stop() // second call must not panic or block
	assert.False(t, h.running.Load())
}
