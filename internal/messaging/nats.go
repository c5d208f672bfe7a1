package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// NATSClient handles NATS messaging operations
type NATSClient struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
	cfg    *config.NATSConfig

	subs   map[string]*nats.Subscription
	subsMu sync.RWMutex
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	nc := &NATSClient{
		conn:   conn,
		js:     js,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
		subs:   make(map[string]*nats.Subscription),
	}

	if err := nc.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return nc, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.subsMu.Lock()
	for _, sub := range nc.subs {
		sub.Unsubscribe()
	}
	nc.subs = make(map[string]*nats.Subscription)
	nc.subsMu.Unlock()

	nc.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// Drain flushes pending messages before shutdown
func (nc *NATSClient) Drain() error {
	return nc.conn.Drain()
}

// initializeStreams creates JetStream streams
func (nc *NATSClient) initializeStreams() error {
	// Live samples are ephemeral; a day of memory retention is plenty.
	_, err := nc.js.AddStream(&nats.StreamConfig{
		Name:     "PRICES",
		Subjects: []string{"prices.>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   24 * time.Hour,
		MaxMsgs:  1000000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create PRICES stream: %w", err)
	}

	// Consensus results and feedback survive restarts.
	_, err = nc.js.AddStream(&nats.StreamConfig{
		Name:     "CONSENSUS",
		Subjects: []string{"consensus.>", "feedback.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create CONSENSUS stream: %w", err)
	}

	return nil
}

// PublishPrice publishes a live price sample
func (nc *NATSClient) PublishPrice(sample *models.PriceSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal price sample: %w", err)
	}

	subject := fmt.Sprintf("prices.%s", strings.ToLower(sample.Symbol))
	if _, err := nc.js.PublishAsync(subject, data); err != nil {
		return fmt.Errorf("failed to publish price: %w", err)
	}
	return nil
}

// SubscribePrices subscribes to live samples for the given symbols, or
// all symbols when none are named
func (nc *NATSClient) SubscribePrices(handler func(*models.PriceSample), symbols ...string) error {
	subjects := []string{"prices.>"}
	if len(symbols) > 0 {
		subjects = make([]string, len(symbols))
		for i, s := range symbols {
			subjects[i] = fmt.Sprintf("prices.%s", strings.ToLower(s))
		}
	}

	for _, subject := range subjects {
		sub, err := nc.conn.Subscribe(subject, func(msg *nats.Msg) {
			var sample models.PriceSample
			if err := json.Unmarshal(msg.Data, &sample); err != nil {
				nc.logger.WithError(err).Warn("Failed to unmarshal price sample")
				return
			}
			handler(&sample)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		nc.trackSubscription(subject, sub)
	}
	return nil
}

// PublishConsensus publishes a completed analysis result
func (nc *NATSClient) PublishConsensus(result *models.ConsensusResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal consensus: %w", err)
	}

	subject := fmt.Sprintf("consensus.%s", strings.ToLower(result.Symbol))
	if _, err := nc.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish consensus: %w", err)
	}

	nc.logger.WithFields(logrus.Fields{
		"symbol": result.Symbol,
		"bias":   result.OverallBias,
	}).Debug("Published consensus")
	return nil
}

// SubscribeConsensus subscribes to completed analysis results
func (nc *NATSClient) SubscribeConsensus(handler func(*models.ConsensusResult)) error {
	sub, err := nc.conn.Subscribe("consensus.>", func(msg *nats.Msg) {
		var result models.ConsensusResult
		if err := json.Unmarshal(msg.Data, &result); err != nil {
			nc.logger.WithError(err).Warn("Failed to unmarshal consensus")
			return
		}
		handler(&result)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to consensus: %w", err)
	}
	nc.trackSubscription("consensus.>", sub)
	return nil
}

// PublishFeedback publishes a submitted feedback event
func (nc *NATSClient) PublishFeedback(event *models.FeedbackEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	if _, err := nc.js.Publish("feedback.submitted", data); err != nil {
		return fmt.Errorf("failed to publish feedback: %w", err)
	}
	return nil
}

// SubscribeFeedback subscribes to submitted feedback events
func (nc *NATSClient) SubscribeFeedback(handler func(*models.FeedbackEvent)) error {
	sub, err := nc.conn.Subscribe("feedback.submitted", func(msg *nats.Msg) {
		var event models.FeedbackEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			nc.logger.WithError(err).Warn("Failed to unmarshal feedback")
			return
		}
		handler(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to feedback: %w", err)
	}
	nc.trackSubscription("feedback.submitted", sub)
	return nil
}

// Unsubscribe removes a tracked subscription
func (nc *NATSClient) Unsubscribe(subject string) error {
	nc.subsMu.Lock()
	defer nc.subsMu.Unlock()

	if sub, ok := nc.subs[subject]; ok {
		delete(nc.subs, subject)
		return sub.Unsubscribe()
	}
	return nil
}

func (nc *NATSClient) trackSubscription(subject string, sub *nats.Subscription) {
	nc.subsMu.Lock()
	nc.subs[subject] = sub
	nc.subsMu.Unlock()
}
