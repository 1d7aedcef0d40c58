package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/polyresearch/internal/analyzer"
	"github.com/rewired-gh/polyresearch/internal/config"
	"github.com/rewired-gh/polyresearch/internal/insight"
	"github.com/rewired-gh/polyresearch/internal/logger"
	"github.com/rewired-gh/polyresearch/internal/metrics"
	"github.com/rewired-gh/polyresearch/internal/pipeline"
	"github.com/rewired-gh/polyresearch/internal/polymarket"
	"github.com/rewired-gh/polyresearch/internal/research"
	"github.com/rewired-gh/polyresearch/internal/server"
	"github.com/rewired-gh/polyresearch/internal/storage"
	"github.com/rewired-gh/polyresearch/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single research cycle and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer func() { _ = logger.Close() }()
	logger.Info("Configuration loaded from %s", *configPath)
	for _, w := range cfg.Warnings() {
		logger.Warn("%s", w)
	}

	// Initialize storage
	store, err := storage.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}

	var cache storage.ResearchCache = store
	if cfg.Storage.CacheBackend == "redis" {
		redisCache, err := storage.NewRedisCache(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Prefix)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: %v", err)
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				logger.Error("Failed to close Redis: %v", err)
			}
		}()
		cache = redisCache
		logger.Info("Using Redis research cache at %s", cfg.Storage.Redis.Addr)
	}

	// Initialize metrics
	var recorder *metrics.Recorder
	var httpServer *server.Server
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		httpServer = server.New(cfg.Metrics.Addr, recorder.Registry())
		httpServer.Start()
	}

	// Initialize Polymarket client
	polyClient := polymarket.NewClient(polymarket.Options{
		APIBaseURL:     cfg.Polymarket.GammaAPIURL,
		MarketBaseURL:  cfg.Polymarket.MarketBaseURL,
		Timeout:        cfg.Polymarket.Timeout,
		MaxRetries:     cfg.Polymarket.MaxRetries,
		RetryDelayBase: cfg.Polymarket.RetryDelayBase,
	})

	// Initialize insight providers
	providers, err := insight.NewProviders(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize insight providers: %v", err)
	}
	logger.Debug("Insight providers: %v", cfg.Research.Providers)

	researcher := research.New(cache, providers, cfg.Research.CallInterval, research.WithMetrics(recorder))
	marketAnalyzer := analyzer.New(store, recorder)

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Alerts.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram alerts disabled")
	}

	var transport pipeline.AlertTransport
	if telegramClient != nil {
		transport = telegramClient
	}

	runner := pipeline.NewRunner(polyClient, researcher, marketAnalyzer, store, transport, recorder, pipeline.Settings{
		FetchLimit:       cfg.Polymarket.FetchLimit,
		MinVolume:        cfg.Research.MinVolume,
		MaxMarketsPerRun: cfg.Research.MaxMarketsPerRun,
		AlertsEnabled:    cfg.Alerts.Enabled,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	consecutiveFailures := 0
	var mu sync.Mutex

	runCycle := func() {
		mu.Lock()
		defer mu.Unlock()

		res, err := runner.Run(ctx)
		if res != nil {
			fmt.Print(res.Report)
		}
		if httpServer != nil {
			httpServer.SetLastRun(runStatus(res, err))
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			logger.Error("Research run failed: %v", err)
			if consecutiveFailures == 1 && transport != nil {
				if sendErr := transport.Send(ctx, fmt.Sprintf("⚠️ Polymarket research run failed: %v", err)); sendErr != nil {
					logger.Warn("Failed to send error notification: %v", sendErr)
				}
			}
			return
		}

		if consecutiveFailures > 0 && transport != nil {
			msg := fmt.Sprintf("✅ Polymarket research recovered after %d failed run(s)", consecutiveFailures)
			if sendErr := transport.Send(ctx, msg); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	// Run initial cycle immediately
	runCycle()

	if *once || ctx.Err() != nil {
		shutdown(httpServer)
		return
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.Research.Interval), runCycle); err != nil {
		logger.Fatal("Failed to schedule research runs: %v", err)
	}
	scheduler.Start()
	logger.Info("Scheduled research every %v", cfg.Research.Interval)

	<-ctx.Done()

	// Wait for a running cycle to observe cancellation
	<-scheduler.Stop().Done()
	shutdown(httpServer)
	logger.Info("Service stopped")
}

func runStatus(res *pipeline.Result, err error) server.RunStatus {
	status := server.RunStatus{FinishedAt: time.Now().UTC()}
	if res != nil {
		status.RunID = res.RunID
		status.Analyzed = len(res.Analyses)
		status.Failed = res.Failed
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func shutdown(httpServer *server.Server) {
	if httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP server: %v", err)
	}
}
