// Package config provides configuration management for the PMCC bot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Strategy defaults, matching the reference parameter set for SPY.
const (
	defaultLeapsMinDTE         = 365
	defaultLeapsDeltaTarget    = 0.70
	defaultLeapsDeltaTolerance = 0.15
	defaultLeapsBandLowPct     = 0.80
	defaultLeapsBandHighPct    = 1.10
	defaultShortDTETarget      = 30
	defaultShortDeltaTarget    = 0.30
	defaultShortDeltaTolerance = 0.15
	defaultShortBandLowPct     = 0.95
	defaultShortBandHighPct    = 1.15
	defaultProfitTakePct       = 75.0
	defaultMaxLossPct          = 200.0
	defaultMaxLossAbsolute     = 100.0
	defaultRollTriggerDelta    = 0.50
	defaultLeapsStopLossPct    = 20.0
	defaultLeapsStopLossAbs    = 500.0
	defaultTotalPositionStop   = 1000.0
	defaultTrailingStopPct     = 15.0
	defaultMarketCheckInterval = "15m"
	defaultTimezone            = "America/New_York"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	StopLoss    StopLossConfig    `yaml:"stop_loss"`
	Storage     StorageConfig     `yaml:"storage"`
	Journal     JournalConfig     `yaml:"journal"`
	Telegram    TelegramConfig    `yaml:"telegram"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty for stdout
}

// ScheduleConfig defines the trading schedule for loop mode.
type ScheduleConfig struct {
	MarketCheckInterval string `yaml:"market_check_interval"`
	Timezone            string `yaml:"timezone"`      // e.g., "America/New_York"
	TradingStart        string `yaml:"trading_start"` // "HH:MM"
	TradingEnd          string `yaml:"trading_end"`   // "HH:MM"
}

// StrategyConfig defines the PMCC strategy parameters.
type StrategyConfig struct {
	Symbol string      `yaml:"symbol"`
	Leaps  LeapsConfig `yaml:"leaps"`
	Short  ShortConfig `yaml:"short"`
}

// LeapsConfig defines the LEAPS leg search parameters.
type LeapsConfig struct {
	MinDTE         int     `yaml:"min_dte"`
	DeltaTarget    float64 `yaml:"delta_target"`
	DeltaTolerance float64 `yaml:"delta_tolerance"`
	BandLowPct     float64 `yaml:"band_low_pct"`  // strike band, fraction of spot
	BandHighPct    float64 `yaml:"band_high_pct"` // strike band, fraction of spot
}

// ShortConfig defines the short leg search and management parameters.
type ShortConfig struct {
	DTETarget        int     `yaml:"dte_target"`
	DeltaTarget      float64 `yaml:"delta_target"`
	DeltaTolerance   float64 `yaml:"delta_tolerance"`
	BandLowPct       float64 `yaml:"band_low_pct"`
	BandHighPct      float64 `yaml:"band_high_pct"`
	ProfitTakePct    float64 `yaml:"profit_take_pct"`
	MaxLossPct       float64 `yaml:"max_loss_pct"`
	MaxLossAbsolute  float64 `yaml:"max_loss_absolute"`
	RollTriggerDelta float64 `yaml:"roll_trigger_delta"`
}

// StopLossConfig defines the multi-tier LEAPS stop-loss parameters.
type StopLossConfig struct {
	LeapsPct            float64 `yaml:"leaps_pct"`
	LeapsAbsolute       float64 `yaml:"leaps_absolute"`
	TotalPosition       float64 `yaml:"total_position"`
	TrailingStopEnabled bool    `yaml:"trailing_stop_enabled"`
	TrailingStopPct     float64 `yaml:"trailing_stop_pct"`
}

// StorageConfig defines storage settings for position state.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig defines the trade journal settings.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig defines notification settings. Token and chat ID usually
// come from the environment via ${VAR} expansion.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// applyDefaults fills unset parameters with the reference defaults.
func (c *Config) applyDefaults() {
	l := &c.Strategy.Leaps
	if l.MinDTE == 0 {
		l.MinDTE = defaultLeapsMinDTE
	}
	if l.DeltaTarget == 0 {
		l.DeltaTarget = defaultLeapsDeltaTarget
	}
	if l.DeltaTolerance == 0 {
		l.DeltaTolerance = defaultLeapsDeltaTolerance
	}
	if l.BandLowPct == 0 {
		l.BandLowPct = defaultLeapsBandLowPct
	}
	if l.BandHighPct == 0 {
		l.BandHighPct = defaultLeapsBandHighPct
	}

	s := &c.Strategy.Short
	if s.DTETarget == 0 {
		s.DTETarget = defaultShortDTETarget
	}
	if s.DeltaTarget == 0 {
		s.DeltaTarget = defaultShortDeltaTarget
	}
	if s.DeltaTolerance == 0 {
		s.DeltaTolerance = defaultShortDeltaTolerance
	}
	if s.BandLowPct == 0 {
		s.BandLowPct = defaultShortBandLowPct
	}
	if s.BandHighPct == 0 {
		s.BandHighPct = defaultShortBandHighPct
	}
	if s.ProfitTakePct == 0 {
		s.ProfitTakePct = defaultProfitTakePct
	}
	if s.MaxLossPct == 0 {
		s.MaxLossPct = defaultMaxLossPct
	}
	if s.MaxLossAbsolute == 0 {
		s.MaxLossAbsolute = defaultMaxLossAbsolute
	}
	if s.RollTriggerDelta == 0 {
		s.RollTriggerDelta = defaultRollTriggerDelta
	}

	sl := &c.StopLoss
	if sl.LeapsPct == 0 {
		sl.LeapsPct = defaultLeapsStopLossPct
	}
	if sl.LeapsAbsolute == 0 {
		sl.LeapsAbsolute = defaultLeapsStopLossAbs
	}
	if sl.TotalPosition == 0 {
		sl.TotalPosition = defaultTotalPositionStop
	}
	if sl.TrailingStopPct == 0 {
		sl.TrailingStopPct = defaultTrailingStopPct
	}

	if c.Schedule.MarketCheckInterval == "" {
		c.Schedule.MarketCheckInterval = defaultMarketCheckInterval
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = defaultTimezone
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "output/state.json"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = fmt.Sprintf("output/trades_%s.csv", c.Strategy.Symbol)
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}

	l := c.Strategy.Leaps
	if l.MinDTE <= 0 {
		return fmt.Errorf("strategy.leaps.min_dte must be > 0")
	}
	if l.DeltaTarget <= 0 || l.DeltaTarget > 1 {
		return fmt.Errorf("strategy.leaps.delta_target must be in (0,1]")
	}
	if l.DeltaTolerance < 0 || l.DeltaTolerance >= 1 {
		return fmt.Errorf("strategy.leaps.delta_tolerance must be in [0,1)")
	}
	if l.BandLowPct <= 0 || l.BandLowPct >= l.BandHighPct {
		return fmt.Errorf("strategy.leaps strike band must satisfy 0 < low < high")
	}

	s := c.Strategy.Short
	if s.DTETarget <= 0 {
		return fmt.Errorf("strategy.short.dte_target must be > 0")
	}
	if s.DTETarget >= l.MinDTE {
		return fmt.Errorf("strategy.short.dte_target (%d) must be < strategy.leaps.min_dte (%d)",
			s.DTETarget, l.MinDTE)
	}
	if s.DeltaTarget <= 0 || s.DeltaTarget > 1 {
		return fmt.Errorf("strategy.short.delta_target must be in (0,1]")
	}
	if s.BandLowPct <= 0 || s.BandLowPct >= s.BandHighPct {
		return fmt.Errorf("strategy.short strike band must satisfy 0 < low < high")
	}
	if s.ProfitTakePct <= 0 || s.ProfitTakePct > 100 {
		return fmt.Errorf("strategy.short.profit_take_pct must be in (0,100]")
	}
	if s.MaxLossPct <= 0 {
		return fmt.Errorf("strategy.short.max_loss_pct must be > 0")
	}
	if s.MaxLossAbsolute <= 0 {
		return fmt.Errorf("strategy.short.max_loss_absolute must be > 0")
	}
	if s.RollTriggerDelta <= 0 || s.RollTriggerDelta > 1 {
		return fmt.Errorf("strategy.short.roll_trigger_delta must be in (0,1]")
	}

	sl := c.StopLoss
	if sl.LeapsPct <= 0 || sl.LeapsPct >= 100 {
		return fmt.Errorf("stop_loss.leaps_pct must be in (0,100)")
	}
	if sl.LeapsAbsolute <= 0 {
		return fmt.Errorf("stop_loss.leaps_absolute must be > 0")
	}
	if sl.TotalPosition <= 0 {
		return fmt.Errorf("stop_loss.total_position must be > 0")
	}
	if sl.TrailingStopEnabled && (sl.TrailingStopPct <= 0 || sl.TrailingStopPct >= 100) {
		return fmt.Errorf("stop_loss.trailing_stop_pct must be in (0,100)")
	}

	if _, err := time.ParseDuration(c.Schedule.MarketCheckInterval); err != nil {
		return fmt.Errorf("schedule.market_check_interval invalid: %w", err)
	}
	if c.Schedule.TradingStart != "" || c.Schedule.TradingEnd != "" {
		loc := c.location()
		start, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
		end, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
		if err1 != nil || err2 != nil ||
			(start.Hour() > end.Hour() || (start.Hour() == end.Hour() && start.Minute() >= end.Minute())) {
			return fmt.Errorf("schedule trading window invalid (start/end parse/order)")
		}
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram.enabled")
	}

	return nil
}

// IsPaperTrading returns true if the bot is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// GetCheckInterval returns the configured market check interval duration.
func (c *Config) GetCheckInterval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.MarketCheckInterval)
	if err != nil {
		return 15 * time.Minute // default
	}
	return d
}

func (c *Config) location() *time.Location {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Fallback for minimal containers
		loc = time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// IsWithinTradingHours checks if the given time falls within configured
// trading hours. With no window configured, any weekday counts.
func (c *Config) IsWithinTradingHours(now time.Time) bool {
	loc := c.location()
	today := now.In(loc)

	// Only allow Monday-Friday trading
	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return false
	}

	if c.Schedule.TradingStart == "" || c.Schedule.TradingEnd == "" {
		return true
	}

	startClock, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	endClock, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil {
		// Safe defaults if misconfigured
		startClock = time.Date(0, 1, 1, 9, 45, 0, 0, loc)
		endClock = time.Date(0, 1, 1, 15, 45, 0, 0, loc)
	}
	start := time.Date(today.Year(), today.Month(), today.Day(),
		startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(today.Year(), today.Month(), today.Day(),
		endClock.Hour(), endClock.Minute(), 0, 0, loc)

	// Inclusive start, exclusive end
	return !today.Before(start) && today.Before(end)
}
