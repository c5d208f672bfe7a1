package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// Event is the JSON envelope pushed to clients.
type Event struct {
	Type   string      `json:"type"` // price | consensus | error
	Symbol string      `json:"symbol,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// controlMessage is what clients send: subscribe/unsubscribe requests.
type controlMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Manager owns all client connections and broadcasts price and
// consensus events to subscribers.
type Manager struct {
	cfg      *config.WebSocketConfig
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	wg         sync.WaitGroup
}

// Client is one connected WebSocket consumer.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	manager *Manager

	symbols map[string]bool
	symMu   sync.RWMutex
}

// NewManager creates a WebSocket manager.
func NewManager(cfg *config.WebSocketConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.WithField("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes client registration until the context ends.
func (m *Manager) Run(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				m.shutdown()
				return
			case <-m.done:
				m.shutdown()
				return
			case client := <-m.register:
				m.mu.Lock()
				m.clients[client] = struct{}{}
				m.mu.Unlock()
				m.logger.WithField("client", client.id).Debug("Client connected")
			case client := <-m.unregister:
				m.mu.Lock()
				if _, ok := m.clients[client]; ok {
					delete(m.clients, client)
					close(client.send)
				}
				m.mu.Unlock()
				m.logger.WithField("client", client.id).Debug("Client disconnected")
			}
		}
	}()
}

// Stop closes every connection and ends the run loop.
func (m *Manager) Stop() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.wg.Wait()
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.clients {
		close(client.send)
		client.conn.Close()
		delete(m.clients, client)
	}
}

// ConnectionCount returns the number of connected clients.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// BroadcastPrice pushes a live sample to clients subscribed to its
// symbol.
func (m *Manager) BroadcastPrice(sample *models.PriceSample) {
	m.broadcast(sample.Symbol, Event{Type: "price", Symbol: sample.Symbol, Data: sample})
}

// BroadcastConsensus pushes a completed analysis to subscribers.
func (m *Manager) BroadcastConsensus(result *models.ConsensusResult) {
	m.broadcast(result.Symbol, Event{Type: "consensus", Symbol: result.Symbol, Data: result})
}

func (m *Manager) broadcast(symbol string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal event")
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for client := range m.clients {
		if !client.isSubscribed(symbol) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the event rather than stall the hub.
			m.logger.WithField("client", client.id).Debug("Send buffer full, dropping event")
		}
	}
}

// HandleWebSocket upgrades an HTTP request into a managed connection.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, m.cfg.SendBufferSize),
		manager: m,
		symbols: make(map[string]bool),
	}

	m.register <- client
	go client.writePump()
	go client.readPump()
}

func (c *Client) isSubscribed(symbol string) bool {
	c.symMu.RLock()
	defer c.symMu.RUnlock()
	return c.symbols[symbol]
}

func (c *Client) subscribe(symbols []string) {
	c.symMu.Lock()
	defer c.symMu.Unlock()
	for _, s := range symbols {
		c.symbols[s] = true
	}
}

func (c *Client) unsubscribe(symbols []string) {
	c.symMu.Lock()
	defer c.symMu.Unlock()
	for _, s := range symbols {
		delete(c.symbols, s)
	}
}

// writePump pumps events to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.manager.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					c.manager.logger.WithError(err).Debug("Write error")
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control messages until the client goes away.
func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.manager.logger.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			break
		}
		c.handleControl(message)
	}
}

func (c *Client) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("malformed control message")
		return
	}

	for _, s := range msg.Symbols {
		if err := models.ValidateSymbol(s); err != nil {
			c.sendError(err.Error())
			return
		}
	}

	switch msg.Action {
	case "subscribe":
		c.subscribe(msg.Symbols)
	case "unsubscribe":
		c.unsubscribe(msg.Symbols)
	default:
		c.sendError("unknown action: " + msg.Action)
	}
}

func (c *Client) sendError(reason string) {
	data, err := json.Marshal(Event{Type: "error", Data: reason})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
