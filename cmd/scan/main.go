// Command scan runs the scoring and decision engines once against live
// Polymarket data for a hypothetical directive and prints what a tenant with
// that directive would trade. Nothing is stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rewired-gh/polytrader/internal/config"
	"github.com/rewired-gh/polytrader/internal/decision"
	"github.com/rewired-gh/polytrader/internal/models"
	"github.com/rewired-gh/polytrader/internal/pacing"
	"github.com/rewired-gh/polytrader/internal/polymarket"
	"github.com/rewired-gh/polytrader/internal/scheduler"
	"github.com/rewired-gh/polytrader/internal/scoring"
)

var (
	configPath = flag.String("config", "", "Optional configuration file")
	focus      = flag.String("focus", "all", "Comma-separated focus areas")
	riskMix    = flag.String("mix", "balanced", "Risk mix: conservative, balanced or aggressive")
	amount     = flag.Float64("amount", 100, "Directive capital amount")
	buysPerDay = flag.Int("buys", 24, "Directive buys per day")
	dailyPnL   = flag.Float64("pnl", 0, "Realized P&L so far today")
	top        = flag.Int("top", 10, "Opportunities to list")
	depth      = flag.Bool("depth", false, "Show the order book for each decision, plus recent activity when following whales")
	whales     = flag.Bool("whales", false, "Follow whales (overrides bot.follow_whales)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dir := &models.Directive{
		TenantID:   "scan",
		Amount:     *amount,
		BuysPerDay: *buysPerDay,
		RiskMix:    models.RiskMix(*riskMix),
		FocusAreas: strings.Split(*focus, ","),
		PaperMode:  true,
	}
	if err := dir.Validate(); err != nil {
		log.Fatalf("Invalid directive: %v", err)
	}

	if *whales {
		cfg.Bot.FollowWhales = true
	}
	settings := scheduler.SettingsFromConfig(cfg)
	pace := pacing.Compute(pacing.Input{
		BuysPerDay:         settings.BuysPerDay(dir),
		MinIntervalSeconds: settings.MinIntervalSeconds,
		MaxIntervalSeconds: settings.MaxIntervalSeconds,
		MaxTradesPerScan:   settings.MaxTradesPerScan,
		Now:                time.Now(),
	})
	botCfg := settings.DeriveBotConfig(dir, models.StatusPaper, pace.TradeTarget)
	limit := settings.MarketLimit(pace.TradeTarget)

	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println("POLYTRADER SCAN PREVIEW")
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Printf("Interval: %v (%d runs/day), trade target: %d, market limit: %d\n",
		pace.EffectiveInterval, pace.ExpectedRunsPerDay, pace.TradeTarget, limit)
	fmt.Printf("Risk level: %s, mix: %.0f/%.0f/%.0f, max position: $%.2f, focus: %v, follow whales: %v\n",
		botCfg.RiskLevel, botCfg.PortfolioMix.Low, botCfg.PortfolioMix.Medium, botCfg.PortfolioMix.High,
		botCfg.MaxPositionSize, botCfg.FocusAreas, botCfg.FollowWhales)

	client := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.CLOBAPIURL,
		cfg.Polymarket.DataAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: cfg.Polymarket.RetryDelayBase,
			RateLimit:      cfg.Polymarket.RateLimit,
			RateBurst:      cfg.Polymarket.RateBurst,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.FetchTimeout)
	defer cancel()

	fmt.Println("\nSTEP 1: Fetching markets...")
	fmt.Println(strings.Repeat("-", 80))
	markets, err := client.FetchMarkets(ctx, botCfg.FocusAreas, limit)
	if err != nil {
		log.Fatalf("Failed to fetch markets: %v", err)
	}
	fmt.Printf("  Fetched %d markets\n", len(markets))

	fmt.Println("\nSTEP 2: Scoring...")
	fmt.Println(strings.Repeat("-", 80))
	opps := scoring.Score(markets, botCfg)
	printCategoryStats(categoryStats(opps))
	printOpportunities(opps, *top)

	fmt.Println("\nSTEP 3: Decisions...")
	fmt.Println(strings.Repeat("-", 80))
	if decision.Halted(botCfg, *dailyPnL) {
		fmt.Printf("  Halted: daily P&L %.2f is past the loss limit %.2f\n", *dailyPnL, botCfg.MaxDailyLoss)
		return
	}
	decisions := decision.Decide(opps, botCfg, *dailyPnL)
	if len(decisions) == 0 {
		fmt.Println("  No trades would be placed")
		return
	}
	for i, d := range decisions {
		fmt.Printf("  %d. %s\n     %d x %s @ %.3f ($%.2f)  %s\n",
			i+1, d.Opportunity.Question, d.Shares, d.Side, d.Price, d.Notional(), d.Rationale)
	}

	if *depth {
		fmt.Println("\nSTEP 4: Market depth...")
		fmt.Println(strings.Repeat("-", 80))
		bySnapshot := make(map[string]models.MarketSnapshot, len(markets))
		for _, m := range markets {
			bySnapshot[m.ID] = m
		}
		for _, d := range decisions {
			printDepth(ctx, client, botCfg, bySnapshot[d.Opportunity.ID], d.Side)
		}
	}
}

func printDepth(ctx context.Context, client *polymarket.Client, cfg models.BotConfig, m models.MarketSnapshot, side models.Side) {
	fmt.Printf("\n  %s\n", m.Question)

	token := tokenForSide(m, side)
	if token == "" {
		fmt.Println("    No CLOB token for this outcome")
	} else if book, err := client.OrderBook(ctx, token); err != nil {
		fmt.Printf("    Order book unavailable: %v\n", err)
	} else {
		bid, ask := bestLevels(book)
		fmt.Printf("    Book: %d bids, %d asks, best bid %s, best ask %s\n", len(book.Bids), len(book.Asks), bid, ask)
	}

	if !wantsActivity(cfg, m) {
		return
	}
	activity, err := client.RecentActivity(ctx, m.ConditionID, 5)
	if err != nil {
		fmt.Printf("    Activity unavailable: %v\n", err)
		return
	}
	for _, a := range activity {
		fmt.Printf("    %s %s %.2f @ %.3f (%s)\n", time.Unix(a.Timestamp, 0).UTC().Format("15:04:05"),
			a.Side, float64(a.Size), float64(a.Price), a.Outcome)
	}
}
