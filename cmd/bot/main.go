package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/config"
	"github.com/eddiefleurent/pmcc_bot/internal/journal"
	"github.com/eddiefleurent/pmcc_bot/internal/logger"
	"github.com/eddiefleurent/pmcc_bot/internal/mock"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
	"github.com/eddiefleurent/pmcc_bot/internal/retry"
	"github.com/eddiefleurent/pmcc_bot/internal/risk"
	"github.com/eddiefleurent/pmcc_bot/internal/selector"
	"github.com/eddiefleurent/pmcc_bot/internal/storage"
	"github.com/eddiefleurent/pmcc_bot/internal/strategy"
)

const defaultSimSpot = 500.0

// resilientBroker retries market data lookups but passes orders straight
// through: a repeated market order is a duplicate fill, not a retry.
type resilientBroker struct {
	*retry.MarketData
	orders broker.OrderExecutor
}

var _ broker.Broker = (*resilientBroker)(nil)

func (r *resilientBroker) PlaceMarketOrder(ctx context.Context, contract models.OptionContract,
	side broker.OrderSide, quantity int, tag string) (float64, error) {
	return r.orders.PlaceMarketOrder(ctx, contract, side, quantity, tag)
}

// Bot ties the strategy to its schedule.
type Bot struct {
	config   *config.Config
	strategy *strategy.PMCCStrategy
	logger   *logrus.Logger
	stop     chan struct{}
}

func main() {
	var configPath string
	var runOnce bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&runOnce, "once", false, "Run a single management cycle and exit")
	flag.Parse()

	// Optional .env for telegram credentials referenced as ${VAR} in config
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Environment.LogLevel,
		Output: cfg.Environment.LogFile,
	})

	log.Infof("starting PMCC bot for %s in %s mode", cfg.Strategy.Symbol, cfg.Environment.Mode)
	if !cfg.IsPaperTrading() {
		log.Warn("live mode configured but no live brokerage is wired in; refusing to start")
		os.Exit(1)
	}

	bot, err := buildBot(cfg, log)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received, stopping bot")
		close(bot.stop)
		cancel()
	}()

	if runOnce {
		if err := bot.strategy.RunDaily(ctx); err != nil {
			log.Fatalf("daily run failed: %v", err)
		}
		return
	}

	bot.Run(ctx)
	log.Info("bot stopped")
}

func buildBot(cfg *config.Config, log *logrus.Logger) (*Bot, error) {
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening state storage: %w", err)
	}

	sim := mock.NewSimBroker(defaultSimSpot)
	protected := broker.NewCircuitBreakerBroker(sim)
	resilient := &resilientBroker{
		MarketData: retry.NewMarketData(protected, log),
		orders:     protected,
	}

	var notifier journal.Notifier
	if cfg.Telegram.Enabled {
		notifier = journal.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	sink := journal.NewMultiSink(journal.NewCSVWriter(cfg.Journal.Path), notifier, log)

	sel := selector.New(resilient, log)

	strategyCfg := strategy.Config{
		Symbol:              cfg.Strategy.Symbol,
		LeapsMinDTE:         cfg.Strategy.Leaps.MinDTE,
		LeapsDeltaTarget:    cfg.Strategy.Leaps.DeltaTarget,
		LeapsDeltaTolerance: cfg.Strategy.Leaps.DeltaTolerance,
		LeapsBandLowPct:     cfg.Strategy.Leaps.BandLowPct,
		LeapsBandHighPct:    cfg.Strategy.Leaps.BandHighPct,
		ShortDTETarget:      cfg.Strategy.Short.DTETarget,
		ShortDeltaTarget:    cfg.Strategy.Short.DeltaTarget,
		ShortDeltaTolerance: cfg.Strategy.Short.DeltaTolerance,
		ShortBandLowPct:     cfg.Strategy.Short.BandLowPct,
		ShortBandHighPct:    cfg.Strategy.Short.BandHighPct,
		ShortLimits: strategy.ShortLegLimits{
			ProfitTakePct:    cfg.Strategy.Short.ProfitTakePct,
			MaxLossPct:       cfg.Strategy.Short.MaxLossPct,
			MaxLossAbsolute:  cfg.Strategy.Short.MaxLossAbsolute,
			RollTriggerDelta: cfg.Strategy.Short.RollTriggerDelta,
		},
		StopLimits: risk.Limits{
			LeapsStopLossPct:    cfg.StopLoss.LeapsPct,
			LeapsStopLossAbs:    cfg.StopLoss.LeapsAbsolute,
			TotalPositionStop:   cfg.StopLoss.TotalPosition,
			TrailingStopEnabled: cfg.StopLoss.TrailingStopEnabled,
			TrailingStopPct:     cfg.StopLoss.TrailingStopPct,
		},
	}

	return &Bot{
		config:   cfg,
		strategy: strategy.New(strategyCfg, resilient, sel, store, sink, log),
		logger:   log,
		stop:     make(chan struct{}),
	}, nil
}

// Run polls on the configured interval and executes at most one management
// cycle per calendar day, inside trading hours.
func (b *Bot) Run(ctx context.Context) {
	ticker := time.NewTicker(b.config.GetCheckInterval())
	defer ticker.Stop()

	var lastRun time.Time
	b.maybeRun(ctx, &lastRun)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			b.maybeRun(ctx, &lastRun)
		}
	}
}

func (b *Bot) maybeRun(ctx context.Context, lastRun *time.Time) {
	now := time.Now()
	if !b.config.IsWithinTradingHours(now) {
		b.logger.Debug("outside trading hours, skipping check")
		return
	}
	if sameDay(now, *lastRun) {
		return
	}

	if err := b.strategy.RunDaily(ctx); err != nil {
		// Failed runs are retried on the next tick, not the next day.
		b.logger.WithError(err).Error("daily run failed")
		return
	}
	*lastRun = now
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
