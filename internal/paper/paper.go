// Package paper prices trade decisions into open paper-trade records without
// touching the network or storage.
package paper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polytrader/internal/models"
)

// Simulate maps one decision to an open paper TradeRecord filled at the
// decision's price. Total cost is rounded to cents.
func Simulate(tenantID string, d models.TradeDecision, now time.Time) models.TradeRecord {
	return models.TradeRecord{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		MarketID:   d.Opportunity.ID,
		Question:   d.Opportunity.Question,
		Side:       d.Side,
		Shares:     d.Shares,
		Price:      d.Price,
		TotalCost:  TotalCost(d.Shares, d.Price),
		Status:     models.TradeOpen,
		PaperTrade: true,
		Rationale:  d.Rationale,
		CreatedAt:  now,
	}
}

// SimulateAll maps every decision, preserving order.
func SimulateAll(tenantID string, decisions []models.TradeDecision, now time.Time) []models.TradeRecord {
	records := make([]models.TradeRecord, 0, len(decisions))
	for _, d := range decisions {
		records = append(records, Simulate(tenantID, d, now))
	}
	return records
}

// TotalCost returns shares × price rounded half away from zero to two decimals.
func TotalCost(shares int, price float64) float64 {
	return decimal.NewFromInt(int64(shares)).
		Mul(decimal.NewFromFloat(price)).
		Round(2).
		InexactFloat64()
}
