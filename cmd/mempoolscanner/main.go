package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/alert"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/api"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/config"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/db"
	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/ethereum"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/feed"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/publish"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/scanner"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/websocket"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

const (
	sinkQueueSize   = 1024
	hubBufferSize   = 256
	shutdownTimeout = 5 * time.Second
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "mempoolscanner",
	Short:         "Watch pending Uniswap router swaps",
	Long:          `mempoolscanner subscribes to a pending-transaction feed, logs every swap sent to a tracked router and alerts on large ones.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScanner,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Mempool scanner failed: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "YAML config file (optional; env vars and .env are always read)")
	rootCmd.Flags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func runScanner(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if isDebug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	if cfg.Log.Dir != "" {
		if err := logger.EnableFileLogging(cfg.Log.Dir); err != nil {
			return err
		}
	}
	defer logger.Sync()

	if level != logger.DEBUG {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Mempool scanner starting: %s", cfg)
	err = run(ctx, cfg)
	logger.Info("Mempool scanner stopped")
	return err
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	routers, err := ethereum.NewRouterSet(cfg.Scanner.Routers)
	if err != nil {
		return &apperrors.ConfigError{Key: "scanner.routers", Err: err}
	}
	selectors, err := ethereum.NewSelectorSet(cfg.Scanner.Selectors)
	if err != nil {
		return &apperrors.ConfigError{Key: "scanner.selectors", Err: err}
	}
	classifier := ethereum.NewClassifier(routers, selectors, cfg.BigSwapThreshold())

	price := newPriceSource(ctx, cfg)
	if closer, ok := price.(*ethereum.ChainlinkPrice); ok {
		defer closer.Close()
	}

	sender := alert.NewSender(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Timeout)
	dispatcher := alert.NewDispatcher(sender, cfg.Alert.QueueSize, cfg.Telegram.Timeout, m)
	defer dispatcher.Close()
	if !dispatcher.Enabled() {
		logger.Warn("Telegram is not configured; big swaps are only logged")
	}

	pipeline := scanner.NewPipeline(classifier, price, dispatcher, m, logger.Default())

	var store db.SwapStore
	if cfg.Database.DSN != "" {
		svc, err := db.NewDBService(cfg.Database.DSN, db.PostgresOperations{})
		if err != nil {
			return err
		}
		defer svc.Close()
		store = svc

		recorder := db.NewRecorder(svc, sinkQueueSize, m)
		defer recorder.Close()
		pipeline.AddSink(recorder)
		logger.Info("Swap journal enabled")
	}

	publishers, err := newPublishers(cfg)
	if err != nil {
		return err
	}
	if len(publishers) > 0 {
		fanout := publish.NewFanout(publishers, sinkQueueSize, m)
		defer fanout.Close()
		pipeline.AddSink(fanout)
	}

	var wsManager *websocket.WebSocketManager
	if cfg.HTTP.Enabled {
		wsManager = websocket.NewWebSocketManager(hubBufferSize, m)
		go wsManager.Run(ctx)
		pipeline.AddSink(wsManager)
	}

	supervisor := feed.NewSupervisor(feed.SupervisorConfig{
		URL: cfg.Feed.URL,
		Subscription: feed.Subscription{
			Method:      cfg.Feed.SubscriptionMethod,
			Kind:        cfg.Feed.SubscriptionKind,
			ToAddresses: routers.Addresses(),
		},
		Reconnect: feed.ReconnectPolicy{
			InitialDelay:  cfg.Feed.Reconnect.InitialDelay,
			MaxDelay:      cfg.Feed.Reconnect.MaxDelay,
			Multiplier:    cfg.Feed.Reconnect.Multiplier,
			Randomization: cfg.Feed.Reconnect.Randomization,
		},
	}, feed.WebsocketDialer{
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		MaxMessageSize:   cfg.Feed.MaxMessageSize,
		CloseTimeout:     cfg.Feed.CloseTimeout,
	}, pipeline, m, logger.Default().With("component", "feed"))

	if cfg.HTTP.Enabled {
		handler := api.NewHandler(supervisor, store, price)
		srv := api.NewServer(cfg.HTTP.Addr, api.SetupRouter(handler, wsManager, reg))
		go func() {
			logger.Info("HTTP API listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown: %v", err)
			}
		}()
	}

	logger.Info("Watching %d routers, alert threshold %s ETH", len(routers), cfg.BigSwapThreshold().String())
	return supervisor.Run(ctx)
}

// newPriceSource prefers a live Chainlink feed and falls back to the
// configured static multiplier.
func newPriceSource(ctx context.Context, cfg *config.Config) ethereum.PriceSource {
	static := ethereum.StaticPrice(cfg.EthUSDPrice())
	if cfg.Price.RPCURL == "" {
		return static
	}

	p, err := ethereum.DialChainlinkPrice(cfg.Price.RPCURL, cfg.Price.Aggregator, cfg.EthUSDPrice(), cfg.Price.TTL, nil)
	if err != nil {
		logger.Warn("Chainlink price disabled, using static %s: %v", cfg.EthUSDPrice().String(), err)
		return static
	}
	go p.Run(ctx)
	return p
}

func newPublishers(cfg *config.Config) ([]publish.Publisher, error) {
	var publishers []publish.Publisher
	if cfg.NATS.URL != "" {
		p, err := publish.DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, &apperrors.PublishError{Sink: "nats", Err: err}
		}
		logger.Info("Publishing swaps to NATS subject %s", p.Subject())
		publishers = append(publishers, p)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := publish.DialKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			for _, opened := range publishers {
				opened.Close()
			}
			return nil, &apperrors.PublishError{Sink: "kafka", Err: err}
		}
		logger.Info("Publishing swaps to Kafka topic %s", cfg.Kafka.Topic)
		publishers = append(publishers, p)
	}
	return publishers, nil
}
