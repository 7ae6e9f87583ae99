package models

import (
	"errors"
	"time"
)

// Side is the outcome a trade buys.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// TradeStatus is the lifecycle state of a persisted trade.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "open"
	TradeClosed    TradeStatus = "closed"
	TradeCancelled TradeStatus = "cancelled"
)

// TradeDecision is the decision engine's output for one opportunity. It only
// lives for the duration of one tenant's pipeline in one tick.
type TradeDecision struct {
	Opportunity Opportunity `json:"opportunity"`
	Side        Side        `json:"side"`
	Shares      int         `json:"shares"`
	Price       float64     `json:"price"`
	EdgePct     float64     `json:"edge_pct"`
	Rationale   string      `json:"rationale"`
}

// Notional returns shares × price.
func (d TradeDecision) Notional() float64 {
	return float64(d.Shares) * d.Price
}

// TradeRecord is a persisted trade. The scanning core only creates open rows;
// closing and P&L realization belong to settlement.
type TradeRecord struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	MarketID    string      `json:"market_id"`
	Question    string      `json:"question"`
	Side        Side        `json:"side"`
	Shares      int         `json:"shares"`
	Price       float64     `json:"price"`
	TotalCost   float64     `json:"total_cost"`
	Status      TradeStatus `json:"status"`
	RealizedPnL *float64    `json:"realized_pnl"` // nil until closed
	PaperTrade  bool        `json:"paper_trade"`
	Rationale   string      `json:"rationale,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
}

// Validate checks that all trade fields are valid.
func (t *TradeRecord) Validate() error {
	if t.ID == "" {
		return errors.New("trade ID must not be empty")
	}
	if t.TenantID == "" {
		return errors.New("tenant ID must not be empty")
	}
	if t.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if t.Side != SideYes && t.Side != SideNo {
		return errors.New("side must be YES or NO")
	}
	if t.Shares < 1 {
		return errors.New("shares must be at least 1")
	}
	if t.Price <= 0 || t.Price >= 1 {
		return errors.New("price must be in (0, 1)")
	}
	if t.TotalCost < 0 {
		return errors.New("total cost must not be negative")
	}
	switch t.Status {
	case TradeOpen, TradeClosed, TradeCancelled:
	default:
		return errors.New("status must be open, closed or cancelled")
	}
	if t.Status == TradeOpen && t.RealizedPnL != nil {
		return errors.New("open trade must not carry realized pnl")
	}
	if t.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}
