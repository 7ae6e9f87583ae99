// Package scoring ranks raw market snapshots into opportunities.
//
// For a binary market the two outcome prices should sum to 1. The distance from
// that sum is the spread, and the edge is the spread expressed in percent:
//
//	spread = |1 − yes − no|
//	edge   = spread × 100
//
// Each surviving market gets a risk tier from its spread and liquidity, a
// category from a keyword table, and a 0–100 confidence:
//
//	confidence = min(30, 30·vol/100k) + min(30, 30·liq/200k) + min(40, 40·edge/10)
//
// Score is a pure function of its inputs. The same snapshots and config always
// produce the same list in the same order.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/rewired-gh/polytrader/internal/models"
)

const (
	// MaxCandidatesLimit caps how many opportunities one scan can return.
	MaxCandidatesLimit = 5000

	lowSpreadMax     = 0.05
	lowLiquidityMin  = 50_000.0
	highSpreadMin    = 0.15
	highLiquidityMax = 5_000.0

	volumeWeight     = 30.0
	volumeScale      = 100_000.0
	liquidityWeight  = 30.0
	liquidityScale   = 200_000.0
	edgeWeight       = 40.0
	edgeScale        = 10.0
	spreadPrecision  = 1e6
)

// CategoryFallback is the tag for markets that match no keyword.
const CategoryFallback = "other"

// categoryKeywords is checked in order; the first category with a matching
// word wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"crypto", []string{"crypto", "bitcoin", "btc", "ethereum", "eth", "solana", "sol", "xrp", "dogecoin", "doge", "blockchain", "token", "stablecoin", "memecoin"}},
	{"politics", []string{"politics", "election", "elections", "president", "presidential", "senate", "congress", "governor", "vote", "trump", "biden", "democrat", "democrats", "republican", "republicans", "parliament", "minister", "mayor"}},
	{"sports", []string{"sports", "nba", "nfl", "mlb", "nhl", "ufc", "f1", "soccer", "football", "basketball", "baseball", "hockey", "tennis", "golf", "championship", "league", "cup", "match", "playoffs", "finals", "bowl"}},
	{"weather", []string{"weather", "temperature", "hurricane", "storm", "rain", "snow", "heat", "climate", "tornado", "celsius", "fahrenheit"}},
	{"economy", []string{"economy", "economics", "fed", "inflation", "cpi", "gdp", "recession", "unemployment", "jobs", "rates", "interest", "tariff", "tariffs", "treasury", "fomc"}},
}

var keywordIndex = func() map[string]string {
	idx := make(map[string]string)
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if _, exists := idx[w]; !exists {
				idx[w] = entry.category
			}
		}
	}
	return idx
}()

// Score parses, filters, classifies and ranks snapshots for one tenant config.
// Snapshots with fewer than two usable prices are skipped.
func Score(snapshots []models.MarketSnapshot, cfg models.BotConfig) []models.Opportunity {
	minEdge := math.Max(0, cfg.MinEdgePct)
	maxCandidates := ClampCandidates(cfg.MaxCandidates)

	opps := make([]models.Opportunity, 0, len(snapshots))
	for i := range snapshots {
		snap := &snapshots[i]

		yes, no, ok := parsePrices(snap.OutcomePrices)
		if !ok {
			continue
		}

		spread := math.Round(math.Abs(1-yes-no)*spreadPrecision) / spreadPrecision
		edge := spread * 100
		if edge < minEdge {
			continue
		}

		volume := math.Max(0, snap.Volume24hr)
		liquidity := math.Max(0, snap.Liquidity)

		opps = append(opps, models.Opportunity{
			ID:         snap.ID,
			Question:   snap.Question,
			Category:   Classify(snap.Question, snap.Category),
			YesPrice:   yes,
			NoPrice:    no,
			Spread:     spread,
			EdgePct:    edge,
			Volume24hr: volume,
			Liquidity:  liquidity,
			RiskTier:   RiskTier(spread, liquidity),
			Confidence: Confidence(volume, liquidity, edge),
			ExpiresAt:  snap.EndDate,
		})
	}

	slices.SortStableFunc(opps, func(a, b models.Opportunity) int {
		if c := cmp.Compare(b.EdgePct, a.EdgePct); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(opps) > maxCandidates {
		opps = opps[:maxCandidates]
	}
	return opps
}

// ClampCandidates bounds a configured candidate count to [1, MaxCandidatesLimit].
func ClampCandidates(n int) int {
	return min(max(n, 1), MaxCandidatesLimit)
}

// RiskTier classifies a market by spread and liquidity.
func RiskTier(spread, liquidity float64) models.RiskLevel {
	switch {
	case spread < lowSpreadMax && liquidity > lowLiquidityMin:
		return models.RiskLow
	case spread > highSpreadMin || liquidity < highLiquidityMax:
		return models.RiskHigh
	default:
		return models.RiskMedium
	}
}

// Confidence combines volume, liquidity and edge into an integer score in [0, 100].
func Confidence(volume, liquidity, edge float64) int {
	v := math.Min(volumeWeight, math.Max(0, volume)/volumeScale*volumeWeight)
	l := math.Min(liquidityWeight, math.Max(0, liquidity)/liquidityScale*liquidityWeight)
	e := math.Min(edgeWeight, math.Max(0, edge)/edgeScale*edgeWeight)
	return int(math.Round(v + l + e))
}

// Classify maps question and upstream category text to a focus-area tag.
func Classify(question, category string) string {
	text := strings.ToLower(category + " " + question)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	best := -1
	for _, w := range words {
		cat, ok := keywordIndex[w]
		if !ok {
			continue
		}
		rank := categoryRank(cat)
		if best == -1 || rank < best {
			best = rank
		}
	}
	if best == -1 {
		return CategoryFallback
	}
	return categoryKeywords[best].category
}

func categoryRank(category string) int {
	for i, entry := range categoryKeywords {
		if entry.category == category {
			return i
		}
	}
	return len(categoryKeywords)
}

// parsePrices reads the YES and NO prices from the first two entries. Both must
// parse and lie strictly in (0, 1); extra entries are ignored.
func parsePrices(raw []string) (yes, no float64, ok bool) {
	if len(raw) < 2 {
		return 0, 0, false
	}
	var prices [2]float64
	for i := range prices {
		p, err := strconv.ParseFloat(strings.TrimSpace(raw[i]), 64)
		if err != nil || math.IsNaN(p) || p <= 0 || p >= 1 {
			return 0, 0, false
		}
		prices[i] = p
	}
	return prices[0], prices[1], true
}
