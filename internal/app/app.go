package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/analysis"
	"github.com/zikalyze/core/internal/api"
	"github.com/zikalyze/core/internal/cache"
	"github.com/zikalyze/core/internal/database"
	"github.com/zikalyze/core/internal/exchange"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/internal/marketdata"
	"github.com/zikalyze/core/internal/messaging"
	"github.com/zikalyze/core/internal/services"
	"github.com/zikalyze/core/internal/websocket"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Storage and messaging
	mysqlDB    *database.MySQLClient
	influxDB   *database.InfluxClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient

	// Market data
	hub        *exchange.Hub
	chain      *marketdata.Chain
	aggregator *marketdata.LiveAggregator

	// Analysis core
	tracker *learning.Tracker
	engine  *analysis.Engine

	// Surfaces and services
	wsManager *websocket.Manager
	apiServer *api.Server
	refresher *services.Refresher
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize wires all application components in dependency order.
func (a *App) Initialize() error {
	if err := a.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	a.initializeMarketData()
	a.initializeAnalysis()
	a.initializeSurfaces()
	return nil
}

// Start starts all components.
func (a *App) Start() error {
	if err := a.hub.Start(); err != nil {
		// The REST providers still work without a live feed.
		a.logger.WithError(err).Warn("Live feed unavailable, continuing without it")
	}

	a.wsManager.Run(a.ctx)

	// Completed analyses reach WebSocket clients through NATS, so
	// results published by other instances fan out too.
	if err := a.natsClient.SubscribeConsensus(a.wsManager.BroadcastConsensus); err != nil {
		return fmt.Errorf("failed to subscribe to consensus: %w", err)
	}

	if err := a.refresher.Start(a.cfg.Analysis.RefreshInterval); err != nil {
		return fmt.Errorf("failed to start refresher: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Error("HTTP server exited")
			a.cancel()
		}
	}()

	a.logger.Info("Application started")
	return nil
}

// Stop shuts everything down with a timeout.
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.apiServer.Stop(ctx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown error")
	}

	a.refresher.Stop()
	a.hub.Stop()
	a.wsManager.Stop()
	a.cancel()
	a.wg.Wait()

	if a.natsClient != nil {
		a.natsClient.Close()
	}
	if a.redisCache != nil {
		a.redisCache.Close()
	}
	if a.influxDB != nil {
		a.influxDB.Close()
	}
	if a.mysqlDB != nil {
		a.mysqlDB.Close()
	}

	a.logger.Info("Application stopped")
	return nil
}

// Engine exposes the analysis engine for one-shot commands.
func (a *App) Engine() *analysis.Engine {
	return a.engine
}

// Tracker exposes the learning tracker for CLI commands.
func (a *App) Tracker() *learning.Tracker {
	return a.tracker
}

// MySQL exposes the database client for migrations.
func (a *App) MySQL() *database.MySQLClient {
	return a.mysqlDB
}

func (a *App) initializeStorage() error {
	mysqlDB, err := database.NewMySQLClient(&a.cfg.MySQL, a.logger)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	a.mysqlDB = mysqlDB

	if err := a.mysqlDB.Migrate(a.ctx); err != nil {
		return fmt.Errorf("mysql migrate: %w", err)
	}

	// Influx is optional: without it candles simply are not archived.
	influxDB, err := database.NewInfluxClient(&a.cfg.InfluxDB, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("InfluxDB unavailable, candle archive disabled")
	} else {
		a.influxDB = influxDB
	}

	redisCache, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	redisCache.SetTTL(a.cfg.Analysis.CacheTTL)
	a.redisCache = redisCache

	return nil
}

func (a *App) initializeMessaging() error {
	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	a.natsClient = natsClient
	return nil
}

func (a *App) initializeMarketData() {
	a.chain = marketdata.NewChain(a.logger,
		marketdata.NewBinanceProvider(a.cfg.Exchange.APIURL, a.cfg.Exchange.FetchTimeout, a.logger),
		marketdata.NewCoinGeckoProvider(a.cfg.Exchange.CoinGeckoAPIKey, a.cfg.Exchange.FetchTimeout, a.logger),
	)
	a.aggregator = marketdata.NewLiveAggregator(a.logger)

	a.hub = exchange.NewHub(&a.cfg.Exchange, a.logger)
	a.hub.RegisterHandler(a.aggregator.Apply)
	a.hub.RegisterHandler(func(sample *models.PriceSample) {
		ctx, cancel := context.WithTimeout(a.ctx, time.Second)
		defer cancel()
		if err := a.redisCache.SetPrice(ctx, sample); err != nil {
			a.logger.WithError(err).Debug("Failed to cache price")
		}
	})
	a.hub.RegisterHandler(func(sample *models.PriceSample) {
		if err := a.natsClient.PublishPrice(sample); err != nil {
			a.logger.WithError(err).Debug("Failed to publish price")
		}
	})
}

func (a *App) initializeAnalysis() {
	store := learning.NewRedisStore(a.redisCache.Client(), a.logger)
	a.tracker = learning.NewTracker(store, &a.cfg.Learning, a.logger)

	flow := marketdata.NewFlowClient(
		a.cfg.Exchange.FlowAPIURL, a.cfg.Exchange.FlowAPIKey,
		a.cfg.Analysis.FlowTimeout, a.logger)

	analyzers := []analysis.Analyzer{
		analysis.NewTechnicalAnalyzer(),
		analysis.NewInstitutionalAnalyzer(flowSource(flow), a.cfg.Analysis.FlowTimeout, a.logger),
		analysis.NewMacroAnalyzer(analysis.DefaultCalendar()),
	}

	var source analysis.CandleSource = a.chain
	if a.influxDB != nil {
		source = &archivingSource{chain: a.chain, influx: a.influxDB, logger: a.logger}
	}

	a.engine = analysis.NewEngine(
		source, a.aggregator, a.redisCache, &natsPublisher{nats: a.natsClient},
		a.tracker, analyzers, &a.cfg.Analysis, a.logger)
}

func (a *App) initializeSurfaces() {
	a.wsManager = websocket.NewManager(&a.cfg.WebSocket, a.logger)
	a.hub.RegisterHandler(a.wsManager.BroadcastPrice)

	a.refresher = services.NewRefresher(a.aggregator, a.tracker, a.logger)

	a.apiServer = api.NewServer(a.cfg, a.logger, a.engine, a.tracker,
		a.mysqlDB, a.redisCache, a.natsClient, a.wsManager)
}

// flowSource keeps the typed-nil pitfall out of the analyzer: a nil
// *FlowClient must become a nil interface.
func flowSource(client *marketdata.FlowClient) analysis.FlowSource {
	if client == nil {
		return nil
	}
	return client
}

// natsPublisher adapts the NATS client to the engine's publish
// boundary, forwarding results to NATS and WebSocket clients.
type natsPublisher struct {
	nats *messaging.NATSClient
}

func (p *natsPublisher) PublishConsensus(_ context.Context, result *models.ConsensusResult) error {
	return p.nats.PublishConsensus(result)
}

// archivingSource decorates the provider chain with a best-effort
// write of every fetched window into the Influx candle archive.
type archivingSource struct {
	chain  *marketdata.Chain
	influx *database.InfluxClient
	logger *logrus.Logger
}

func (s *archivingSource) Fetch(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, string, error) {
	candles, source, err := s.chain.Fetch(ctx, symbol, interval, limit)
	if err != nil {
		return nil, "", err
	}

	go func() {
		actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if werr := s.influx.WriteCandles(actx, interval, candles); werr != nil {
			s.logger.WithError(werr).Debug("Failed to archive candles")
		}
	}()

	return candles, source, nil
}
