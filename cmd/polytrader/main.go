package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/polytrader/internal/config"
	"github.com/rewired-gh/polytrader/internal/logger"
	"github.com/rewired-gh/polytrader/internal/polymarket"
	"github.com/rewired-gh/polytrader/internal/scheduler"
	"github.com/rewired-gh/polytrader/internal/server"
	"github.com/rewired-gh/polytrader/internal/storage"
	"github.com/rewired-gh/polytrader/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single tick, print its summary and exit")
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
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Initialize Polymarket client
	polyClient := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.CLOBAPIURL,
		cfg.Polymarket.DataAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: cfg.Polymarket.RetryDelayBase,
			RateLimit:      cfg.Polymarket.RateLimit,
			RateBurst:      cfg.Polymarket.RateBurst,
		},
	)

	settings := scheduler.SettingsFromConfig(cfg)
	orch := scheduler.New(store, polyClient, settings)
	logger.Info("Scheduler ready (concurrency: %d, max_users_per_tick: %d, interval bounds: %ds..%ds)",
		settings.Concurrency, settings.MaxUsersPerTick, settings.MinIntervalSeconds, settings.MaxIntervalSeconds)

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

	if *once {
		summary, err := orch.Tick(ctx, time.Now())
		if err != nil {
			logger.Fatal("Tick failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Fatal("Failed to write summary: %v", err)
		}
		return
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.Server.TickSecret == "" {
		logger.Warn("server.tick_secret is empty; the tick endpoint will refuse requests")
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		TickSecret:   cfg.Server.TickSecret,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		HealthCheck:  store.Ping,
		OnTick:       tickNotifier(telegramClient, cfg.Telegram.NotifyTrades),
	}, orch)
	serverErr := srv.Start()

	// Optional embedded trigger; recurrence is otherwise left to an external cron
	var triggerC <-chan time.Time
	if cfg.Scheduler.TriggerInterval > 0 {
		ticker := time.NewTicker(cfg.Scheduler.TriggerInterval)
		defer ticker.Stop()
		triggerC = ticker.C
		logger.Info("Embedded trigger enabled (interval: %v)", cfg.Scheduler.TriggerInterval)
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Server shutdown: %v", err)
			}
			shutdownCancel()
			logger.Info("Service stopped")
			return

		case err, ok := <-serverErr:
			if ok && err != nil {
				logger.Fatal("Server failed: %v", err)
			}
			serverErr = nil

		case <-triggerC:
			logger.Debug("Starting scheduled tick")
			// failures are logged and reported by the OnTick hook
			_, _ = srv.RunTick(ctx)
		}
	}
}

// tickNotifier returns the OnTick hook: Telegram hears about the first failed
// tick of a streak and about the recovery that ends it. RunTick serializes
// calls, so the counter needs no lock.
func tickNotifier(tg *telegram.Client, notifyTrades bool) func(scheduler.Summary, error, time.Duration) {
	consecutiveFailures := 0

	return func(summary scheduler.Summary, err error, elapsed time.Duration) {
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 && tg != nil {
				if sendErr := tg.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}

		if consecutiveFailures > 0 && tg != nil {
			if sendErr := tg.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0

		if notifyTrades && tg != nil && summary.TotalTradesExecuted > 0 {
			if sendErr := tg.SendSummary(summary, elapsed); sendErr != nil {
				logger.Warn("Failed to send tick summary to Telegram: %v", sendErr)
			}
		}
	}
}
