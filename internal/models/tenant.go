package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RuntimeStatus is a tenant's bot status as set from the dashboard.
type RuntimeStatus string

const (
	StatusRunning RuntimeStatus = "running"
	StatusPaper   RuntimeStatus = "paper"
	StatusPaused  RuntimeStatus = "paused"
	StatusStopped RuntimeStatus = "stopped"
)

// Schedulable reports whether the scheduler should consider a tenant with this status.
func (s RuntimeStatus) Schedulable() bool {
	return s == StatusRunning || s == StatusPaper
}

// RiskMix is the tenant-facing label for a portfolio risk mix.
type RiskMix string

const (
	MixConservative RiskMix = "conservative"
	MixBalanced     RiskMix = "balanced"
	MixAggressive   RiskMix = "aggressive"
)

// FocusAll disables focus-area filtering when present in a focus set.
const FocusAll = "all"

// Tenant is one schedulable account.
type Tenant struct {
	ID     string        `json:"id"`
	Status RuntimeStatus `json:"status"`
}

// Directive is the tenant-authored trading preference row. Read-only to the core.
type Directive struct {
	TenantID   string    `json:"tenant_id"`
	Amount     float64   `json:"amount"`
	BuysPerDay int       `json:"buys_per_day"`
	RiskMix    RiskMix   `json:"risk_mix"`
	FocusAreas []string  `json:"focus_areas"`
	PaperMode  bool      `json:"paper_mode"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks that all directive fields are valid.
func (d *Directive) Validate() error {
	if d.TenantID == "" {
		return errors.New("tenant ID must not be empty")
	}
	if d.Amount < 0 {
		return errors.New("amount must not be negative")
	}
	if d.BuysPerDay < 0 {
		return errors.New("buys per day must not be negative")
	}
	switch d.RiskMix {
	case "", MixConservative, MixBalanced, MixAggressive:
	default:
		return errors.New("risk mix must be conservative, balanced or aggressive")
	}
	return nil
}

// PortfolioMix holds percentage weights per risk tier.
type PortfolioMix struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Weight returns the weight for the given tier.
func (m PortfolioMix) Weight(tier RiskLevel) float64 {
	switch tier {
	case RiskLow:
		return m.Low
	case RiskMedium:
		return m.Medium
	case RiskHigh:
		return m.High
	}
	return 0
}

// BotConfig is the per-tenant trading configuration derived each tick from the
// latest directive and global defaults. Every numeric field is clamped by the
// scheduler before it reaches the engines.
type BotConfig struct {
	RiskLevel        RiskLevel    `json:"risk_level"`
	MaxDailyLoss     float64      `json:"max_daily_loss"`
	EmergencyStopPct float64      `json:"emergency_stop_pct"`
	MaxTradesPerScan int          `json:"max_trades_per_scan"`
	MaxPositionSize  float64      `json:"max_position_size"`
	MinEdgePct       float64      `json:"min_edge_pct"`
	MaxCandidates    int          `json:"max_candidates"`
	PaperMode        bool         `json:"paper_mode"`
	PortfolioMix     PortfolioMix `json:"portfolio_mix"`
	FocusAreas       []string     `json:"focus_areas"`
	FollowWhales     bool         `json:"follow_whales"`
}

// FocusFilterActive reports whether opportunities must match a focus area.
func (c BotConfig) FocusFilterActive() bool {
	if len(c.FocusAreas) == 0 {
		return false
	}
	for _, f := range c.FocusAreas {
		if f == FocusAll {
			return false
		}
	}
	return true
}

// InFocus reports whether category passes the focus filter.
func (c BotConfig) InFocus(category string) bool {
	if !c.FocusFilterActive() {
		return true
	}
	for _, f := range c.FocusAreas {
		if f == category {
			return true
		}
	}
	return false
}

// DayBucketLayout is the date key format for day-scoped counters.
const DayBucketLayout = "2006-01-02"

// DayBucket returns the UTC calendar-day key for t.
func DayBucket(t time.Time) string {
	return t.UTC().Format(DayBucketLayout)
}

// RuntimeState is a tenant's persisted scheduler row.
type RuntimeState struct {
	TenantID    string     `json:"tenant_id"`
	DayBucket   string     `json:"day_bucket"`
	RunsToday   int        `json:"runs_today"`
	TradesToday int        `json:"trades_today"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastScanAt  *time.Time `json:"last_scan_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

// Normalized returns the state as seen on day. A row from an earlier day keeps
// its timestamps but reads as zero runs and zero trades.
func (r RuntimeState) Normalized(day string) RuntimeState {
	if r.DayBucket == day {
		return r
	}
	r.DayBucket = day
	r.RunsToday = 0
	r.TradesToday = 0
	return r
}

// RunOutcome is what one tick attempt writes back to a tenant's runtime row.
// An empty Err records a successful run.
type RunOutcome struct {
	TenantID       string
	DayBucket      string
	At             time.Time
	TradesExecuted int
	Err            string
}
