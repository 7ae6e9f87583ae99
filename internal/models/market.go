// Package models defines the core domain entities for the polytrader application.
// These models represent raw upstream market snapshots, scored opportunities,
// per-tenant trading configuration, trade decisions and the persisted trade and
// runtime rows. Persisted models include validation to ensure data integrity.
//
// Terminology:
//   - Tenant: one independent account scheduled and scored in isolation.
//   - Market: a single yes/no question from the upstream feed.
//   - Opportunity: a market that survived scoring, with edge, tier and confidence.
package models

import (
	"errors"
	"time"
)

// RiskLevel is used both as an opportunity's risk tier and as a tenant's
// configured aggressiveness.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// MarketSnapshot is a raw market entry as returned by the upstream feed.
// OutcomePrices are kept unparsed; the scoring engine decides what is usable.
type MarketSnapshot struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"condition_id,omitempty"`
	Question      string    `json:"question"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags,omitempty"`
	OutcomePrices []string  `json:"outcome_prices"`
	ClobTokenIDs  []string  `json:"clob_token_ids,omitempty"`
	Volume24hr    float64   `json:"volume_24hr"`
	Liquidity     float64   `json:"liquidity"`
	EndDate       time.Time `json:"end_date"`
}

// Opportunity is a scored candidate market. Produced once per tick by the
// scoring engine and never mutated afterwards.
type Opportunity struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Category   string    `json:"category"`
	YesPrice   float64   `json:"yes_price"`
	NoPrice    float64   `json:"no_price"`
	Spread     float64   `json:"spread"`
	EdgePct    float64   `json:"edge_pct"`
	Volume24hr float64   `json:"volume_24hr"`
	Liquidity  float64   `json:"liquidity"`
	RiskTier   RiskLevel `json:"risk_tier"`
	Confidence int       `json:"confidence"` // 0–100
	ExpiresAt  time.Time `json:"expires_at"`
}

// Validate checks that all opportunity fields are valid.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return errors.New("opportunity ID must not be empty")
	}
	if o.YesPrice <= 0 || o.YesPrice >= 1 {
		return errors.New("yes price must be in (0, 1)")
	}
	if o.NoPrice <= 0 || o.NoPrice >= 1 {
		return errors.New("no price must be in (0, 1)")
	}
	if o.EdgePct < 0 {
		return errors.New("edge must not be negative")
	}
	if !o.RiskTier.Valid() {
		return errors.New("risk tier must be low, medium or high")
	}
	if o.Confidence < 0 || o.Confidence > 100 {
		return errors.New("confidence must be between 0 and 100")
	}
	return nil
}
