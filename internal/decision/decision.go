// Package decision turns ranked opportunities into a bounded list of trades for
// one tenant, applying the tenant's loss limit, portfolio mix, confidence floor
// and focus areas.
package decision

import (
	"fmt"
	"math"

	"github.com/rewired-gh/polytrader/internal/models"
)

const (
	// MinNotional is the smallest position worth placing, in currency units.
	MinNotional = 1.0

	// tierBudgetShare is the fraction of a tier's budget one position may use.
	tierBudgetShare = 0.3
)

// minConfidence is keyed by the tenant's configured risk level, not the
// opportunity's tier.
var minConfidence = map[models.RiskLevel]int{
	models.RiskLow:    60,
	models.RiskMedium: 45,
	models.RiskHigh:   30,
}

// MinConfidence returns the confidence floor for a configured risk level.
// Unknown levels use the medium floor.
func MinConfidence(level models.RiskLevel) int {
	if c, ok := minConfidence[level]; ok {
		return c
	}
	return minConfidence[models.RiskMedium]
}

// Decide walks opps in order and returns at most cfg.MaxTradesPerScan decisions.
// dailyPnL is the tenant's realized P&L so far today.
func Decide(opps []models.Opportunity, cfg models.BotConfig, dailyPnL float64) []models.TradeDecision {
	if Halted(cfg, dailyPnL) {
		return nil
	}

	remainingBudget := cfg.MaxDailyLoss + dailyPnL
	if remainingBudget <= 0 || cfg.MaxTradesPerScan <= 0 {
		return nil
	}

	floor := MinConfidence(cfg.RiskLevel)
	decisions := make([]models.TradeDecision, 0, min(cfg.MaxTradesPerScan, len(opps)))

	for _, opp := range opps {
		if len(decisions) >= cfg.MaxTradesPerScan {
			break
		}

		weight := cfg.PortfolioMix.Weight(opp.RiskTier)
		if weight <= 0 {
			continue
		}
		if opp.Confidence < floor {
			continue
		}
		if !cfg.InFocus(opp.Category) {
			continue
		}

		side, price := cheaperSide(opp)
		if price <= 0 {
			continue
		}

		budgetForTier := remainingBudget * (weight / 100)
		positionSize := math.Min(budgetForTier*tierBudgetShare, cfg.MaxPositionSize)
		shares := max(1, int(math.Floor(positionSize/price)))
		if float64(shares)*price < MinNotional {
			continue
		}

		decisions = append(decisions, models.TradeDecision{
			Opportunity: opp,
			Side:        side,
			Shares:      shares,
			Price:       price,
			EdgePct:     opp.EdgePct,
			Rationale:   rationale(opp, side, price),
		})
	}

	return decisions
}

// Halted reports whether the tenant has hit its daily loss limit, or the
// emergency stop when one is configured.
func Halted(cfg models.BotConfig, dailyPnL float64) bool {
	if dailyPnL <= -cfg.MaxDailyLoss {
		return true
	}
	if cfg.EmergencyStopPct > 0 && cfg.MaxDailyLoss > 0 {
		stop := cfg.MaxDailyLoss * cfg.EmergencyStopPct / 100
		if dailyPnL <= -stop {
			return true
		}
	}
	return false
}

func cheaperSide(opp models.Opportunity) (models.Side, float64) {
	if opp.YesPrice < opp.NoPrice {
		return models.SideYes, opp.YesPrice
	}
	return models.SideNo, opp.NoPrice
}

func rationale(opp models.Opportunity, side models.Side, price float64) string {
	return fmt.Sprintf("edge=%.2f%% conf=%d tier=%s side=%s @%.3f",
		opp.EdgePct, opp.Confidence, opp.RiskTier, side, price)
}
