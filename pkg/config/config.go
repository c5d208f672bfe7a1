package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	MySQL     MySQLConfig     `env:", prefix=MYSQL_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	Exchange  ExchangeConfig  `env:", prefix=EXCHANGE_"`
	Analysis  AnalysisConfig  `env:", prefix=ANALYSIS_"`
	Learning  LearningConfig  `env:", prefix=LEARNING_"`
	WebSocket WebSocketConfig `env:", prefix=WEBSOCKET_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=zikalyze"`
	User            string        `env:"USER, default=zikalyze"`
	Password        string        `env:"PASSWORD, default=zikalyze123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// InfluxConfig holds InfluxDB configuration for the candle archive
type InfluxConfig struct {
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN, default=my-super-secret-auth-token"`
	Org     string        `env:"ORG, default=zikalyze-org"`
	Bucket  string        `env:"BUCKET, default=candles"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=5"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// ExchangeConfig holds live feed and candle source configuration
type ExchangeConfig struct {
	StreamURL            string        `env:"BINANCE_STREAM_URL, default=wss://stream.binance.com:9443/stream"`
	APIURL               string        `env:"BINANCE_API_URL, default=https://api.binance.com"`
	CoinGeckoAPIKey      string        `env:"COINGECKO_API_KEY"`
	FlowAPIURL           string        `env:"FLOW_API_URL"`
	FlowAPIKey           string        `env:"FLOW_API_KEY"`
	Symbols              []string      `env:"SYMBOLS, default=BTCUSDT,ETHUSDT,SOLUSDT"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS, default=3"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY, default=2s"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT, default=15s"`
}

// AnalysisConfig holds the analysis pipeline tunables. The penalty and
// clamp values are heuristic parameters, not load-bearing constants.
type AnalysisConfig struct {
	DefaultInterval     string        `env:"DEFAULT_INTERVAL, default=1h"`
	DefaultLimit        int           `env:"DEFAULT_LIMIT, default=100"`
	MinWindow           int           `env:"MIN_WINDOW, default=20"`
	ClusterThreshold    float64       `env:"CLUSTER_THRESHOLD, default=0.02"`
	MaxClusters         int           `env:"MAX_CLUSTERS, default=8"`
	DisagreementPenalty float64       `env:"DISAGREEMENT_PENALTY, default=0.5"`
	FlowTimeout         time.Duration `env:"FLOW_TIMEOUT, default=12s"`
	CacheTTL            time.Duration `env:"CACHE_TTL, default=30s"`
	RefreshInterval     time.Duration `env:"REFRESH_INTERVAL, default=10s"`
}

// LearningConfig holds adaptive weighting parameters
type LearningConfig struct {
	MinSamples          int     `env:"MIN_SAMPLES, default=10"`
	EMAAlpha            float64 `env:"EMA_ALPHA, default=0.2"`
	MaxConfidenceAdjust float64 `env:"MAX_CONFIDENCE_ADJUST, default=20"`
	AdjustStep          float64 `env:"ADJUST_STEP, default=2"`
}

// WebSocketConfig holds client-facing WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `env:"ENABLED, default=true"`
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE, default=1024"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE, default=1024"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE, default=65536"`
	PingInterval    time.Duration `env:"PING_INTERVAL, default=30s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT, default=60s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=10s"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE, default=64"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	if c.Analysis.MinWindow < 2 {
		return fmt.Errorf("analysis min window must be at least 2, got %d", c.Analysis.MinWindow)
	}

	if c.Analysis.ClusterThreshold <= 0 || c.Analysis.ClusterThreshold >= 1 {
		return fmt.Errorf("cluster threshold must be in (0,1), got %f", c.Analysis.ClusterThreshold)
	}

	if c.Learning.MaxConfidenceAdjust < 0 {
		return fmt.Errorf("max confidence adjust must be non-negative")
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
