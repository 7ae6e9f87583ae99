package scheduler

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polytrader/internal/config"
	"github.com/rewired-gh/polytrader/internal/models"
	"github.com/rewired-gh/polytrader/internal/pacing"
	"github.com/rewired-gh/polytrader/internal/scoring"
)

// Bounds applied to every derived BotConfig regardless of stored values.
const (
	maxDailyLossCap  = 100_000.0
	maxMinEdgePct    = 100.0
	maxFocusAreas    = 16
	maxFocusTagRunes = 64
)

// BotDefaults are the global values a tenant's BotConfig starts from.
type BotDefaults struct {
	RiskLevel        models.RiskLevel
	MaxDailyLoss     float64
	EmergencyStopPct float64
	MinEdgePct       float64
	MaxCandidates    int
	FollowWhales     bool
}

// Settings is the immutable configuration an Orchestrator runs with. It is
// built once and passed by value.
type Settings struct {
	MaxUsersPerTick        int
	Concurrency            int
	MinIntervalSeconds     int
	MaxIntervalSeconds     int
	MaxTradesPerScan       int
	DefaultBuysPerDay      int
	DefaultCapitalPerTrade float64
	MaxCapitalPerTrade     float64
	MarketLimitPerTrade    int
	MinMarketLimit         int
	MaxMarketLimit         int
	FetchTimeout           time.Duration
	Bot                    BotDefaults
}

// DefaultSettings mirrors the config package defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxUsersPerTick:        500,
		Concurrency:            12,
		MinIntervalSeconds:     30,
		MaxIntervalSeconds:     3600,
		MaxTradesPerScan:       5,
		DefaultBuysPerDay:      24,
		DefaultCapitalPerTrade: 10,
		MaxCapitalPerTrade:     250,
		MarketLimitPerTrade:    40,
		MinMarketLimit:         50,
		MaxMarketLimit:         500,
		FetchTimeout:           15 * time.Second,
		Bot: BotDefaults{
			RiskLevel:        models.RiskMedium,
			MaxDailyLoss:     25,
			EmergencyStopPct: 100,
			MinEdgePct:       1,
			MaxCandidates:    200,
		},
	}
}

// SettingsFromConfig builds Settings from loaded process configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := cfg.Scheduler
	return Settings{
		MaxUsersPerTick:        s.MaxUsersPerTick,
		Concurrency:            s.Concurrency,
		MinIntervalSeconds:     s.MinIntervalSeconds,
		MaxIntervalSeconds:     s.MaxIntervalSeconds,
		MaxTradesPerScan:       s.MaxTradesPerScan,
		DefaultBuysPerDay:      s.DefaultBuysPerDay,
		DefaultCapitalPerTrade: s.DefaultCapitalPerTrade,
		MaxCapitalPerTrade:     s.MaxCapitalPerTrade,
		MarketLimitPerTrade:    s.MarketLimitPerTrade,
		MinMarketLimit:         s.MinMarketLimit,
		MaxMarketLimit:         s.MaxMarketLimit,
		FetchTimeout:           s.FetchTimeout,
		Bot: BotDefaults{
			RiskLevel:        models.RiskLevel(cfg.Bot.RiskLevel),
			MaxDailyLoss:     cfg.Bot.MaxDailyLoss,
			EmergencyStopPct: cfg.Bot.EmergencyStopPct,
			MinEdgePct:       cfg.Bot.MinEdgePct,
			MaxCandidates:    cfg.Bot.MaxCandidates,
			FollowWhales:     cfg.Bot.FollowWhales,
		},
	}
}

// riskProfile pairs a risk mix with its tier weights and confidence level.
type riskProfile struct {
	level models.RiskLevel
	mix   models.PortfolioMix
}

var riskProfiles = map[models.RiskMix]riskProfile{
	models.MixConservative: {models.RiskLow, models.PortfolioMix{Low: 60, Medium: 30, High: 10}},
	models.MixBalanced:     {models.RiskMedium, models.PortfolioMix{Low: 30, Medium: 50, High: 20}},
	models.MixAggressive:   {models.RiskHigh, models.PortfolioMix{Low: 10, Medium: 30, High: 60}},
}

var mixForLevel = map[models.RiskLevel]models.RiskMix{
	models.RiskLow:    models.MixConservative,
	models.RiskMedium: models.MixBalanced,
	models.RiskHigh:   models.MixAggressive,
}

func profileFor(dir *models.Directive, fallback models.RiskLevel) riskProfile {
	if dir != nil {
		if p, ok := riskProfiles[dir.RiskMix]; ok {
			return p
		}
	}
	if mix, ok := mixForLevel[fallback]; ok {
		return riskProfiles[mix]
	}
	return riskProfiles[models.MixBalanced]
}

// BuysPerDay is the directive's cadence, or the default when the directive
// has none, clamped to the pacing bounds.
func (s Settings) BuysPerDay(dir *models.Directive) int {
	n := s.DefaultBuysPerDay
	if dir != nil && dir.BuysPerDay > 0 {
		n = dir.BuysPerDay
	}
	return pacing.ClampBuysPerDay(n)
}

// CapitalPerTrade spreads a positive directive amount over the day's buys,
// rounded to cents, and caps it at MaxCapitalPerTrade.
func (s Settings) CapitalPerTrade(dir *models.Directive) float64 {
	capital := s.DefaultCapitalPerTrade
	if dir != nil && dir.Amount > 0 {
		per := decimal.NewFromFloat(dir.Amount).
			Div(decimal.NewFromInt(int64(s.BuysPerDay(dir)))).
			Round(2)
		capital = per.InexactFloat64()
	}
	return min(capital, s.MaxCapitalPerTrade)
}

// MarketLimit sizes the upstream query for a run placing tradeTarget trades.
func (s Settings) MarketLimit(tradeTarget int) int {
	return min(max(tradeTarget*s.MarketLimitPerTrade, s.MinMarketLimit), s.MaxMarketLimit)
}

// DeriveBotConfig builds a tenant's config for one run from its latest
// directive (nil when it has none), its runtime status and the run's pacing
// target. Every numeric field is clamped here.
func (s Settings) DeriveBotConfig(dir *models.Directive, status models.RuntimeStatus, tradeTarget int) models.BotConfig {
	profile := profileFor(dir, s.Bot.RiskLevel)

	cfg := models.BotConfig{
		RiskLevel:        profile.level,
		MaxDailyLoss:     min(max(s.Bot.MaxDailyLoss, 0), maxDailyLossCap),
		EmergencyStopPct: min(max(s.Bot.EmergencyStopPct, 0), 100),
		MaxTradesPerScan: max(1, min(tradeTarget, s.MaxTradesPerScan)),
		MaxPositionSize:  max(s.CapitalPerTrade(dir), 0),
		MinEdgePct:       min(max(s.Bot.MinEdgePct, 0), maxMinEdgePct),
		MaxCandidates:    scoring.ClampCandidates(s.Bot.MaxCandidates),
		PaperMode:        status == models.StatusPaper,
		PortfolioMix:     profile.mix,
		FollowWhales:     s.Bot.FollowWhales,
	}
	if dir != nil {
		cfg.PaperMode = cfg.PaperMode || dir.PaperMode
		cfg.FocusAreas = NormalizeFocus(dir.FocusAreas)
	}
	return cfg
}

// NormalizeFocus lowercases, trims, de-duplicates and sorts focus tags. A set
// containing "all", or no usable tags, normalizes to nil (no filter).
func NormalizeFocus(areas []string) []string {
	var out []string
	for _, a := range areas {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || len([]rune(a)) > maxFocusTagRunes {
			continue
		}
		if a == models.FocusAll {
			return nil
		}
		out = append(out, a)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) > maxFocusAreas {
		out = out[:maxFocusAreas]
	}
	return out
}
