package main

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/polytrader/internal/models"
	"github.com/rewired-gh/polytrader/internal/polymarket"
)

// CategoryStats holds per-category opportunity statistics
type CategoryStats struct {
	Category      string
	Count         int
	AvgEdgePct    float64
	MaxEdgePct    float64
	AvgConfidence float64
}

func categoryStats(opps []models.Opportunity) []CategoryStats {
	byCat := make(map[string]*CategoryStats)
	for _, o := range opps {
		s, ok := byCat[o.Category]
		if !ok {
			s = &CategoryStats{Category: o.Category}
			byCat[o.Category] = s
		}
		s.Count++
		s.AvgEdgePct += o.EdgePct
		s.AvgConfidence += float64(o.Confidence)
		s.MaxEdgePct = max(s.MaxEdgePct, o.EdgePct)
	}

	out := make([]CategoryStats, 0, len(byCat))
	for _, s := range byCat {
		s.AvgEdgePct /= float64(s.Count)
		s.AvgConfidence /= float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// tokenForSide picks the CLOB token of the traded outcome; YES is listed first
func tokenForSide(m models.MarketSnapshot, side models.Side) string {
	idx := 0
	if side == models.SideNo {
		idx = 1
	}
	if idx < len(m.ClobTokenIDs) {
		return m.ClobTokenIDs[idx]
	}
	return ""
}

// bestLevels returns the highest bid and lowest ask prices, or "-" when a side is empty
// wantsActivity reports whether recent trades are worth pulling for m: only
// when following whales, and only for markets with a condition ID.
func wantsActivity(cfg models.BotConfig, m models.MarketSnapshot) bool {
	return cfg.FollowWhales && m.ConditionID != ""
}

func bestLevels(book *polymarket.OrderBook) (bid, ask string) {
	bid, ask = "-", "-"
	bestBid, bestAsk := -1.0, 2.0
	for _, l := range book.Bids {
		var p float64
		if _, err := fmt.Sscan(l.Price, &p); err == nil && p > bestBid {
			bestBid, bid = p, l.Price
		}
	}
	for _, l := range book.Asks {
		var p float64
		if _, err := fmt.Sscan(l.Price, &p); err == nil && p < bestAsk {
			bestAsk, ask = p, l.Price
		}
	}
	return bid, ask
}

func printCategoryStats(stats []CategoryStats) {
	for _, s := range stats {
		fmt.Printf("\n  Category: %s\n", s.Category)
		fmt.Printf("    Opportunities: %d\n", s.Count)
		fmt.Printf("    Avg edge: %.2f%%, max edge: %.2f%%\n", s.AvgEdgePct, s.MaxEdgePct)
		fmt.Printf("    Avg confidence: %.1f\n", s.AvgConfidence)
	}
}

func printOpportunities(opps []models.Opportunity, top int) {
	fmt.Printf("\n  Top %d of %d opportunities:\n", min(top, len(opps)), len(opps))
	for i, o := range opps {
		if i >= top {
			break
		}
		fmt.Printf("  %2d. [%s/%s] edge %.2f%% conf %d  %s\n", i+1, o.Category, o.RiskTier, o.EdgePct, o.Confidence, o.Question)
	}
}
