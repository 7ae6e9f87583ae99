// Package scheduler runs one tick over the active tenants: pacing, config
// derivation, a shared market fetch, scoring, decisions, paper execution and
// the runtime-state write, for every tenant that is due.
//
// A tick is a bounded pass, not a loop. Tenants run in batches of
// Settings.Concurrency; batches run one after another. A failure inside one
// tenant's pipeline is recorded on that tenant's runtime row and never stops
// the others. Only a failure to list tenants fails the tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/polytrader/internal/decision"
	"github.com/rewired-gh/polytrader/internal/logger"
	"github.com/rewired-gh/polytrader/internal/models"
	"github.com/rewired-gh/polytrader/internal/pacing"
	"github.com/rewired-gh/polytrader/internal/paper"
	"github.com/rewired-gh/polytrader/internal/scoring"
)

// MaxErrorLength bounds the error text stored on a runtime row, in runes.
const MaxErrorLength = 500

// Skip reasons reported in TenantResult.Reason.
const (
	ReasonLiveCredentialsPending = "live_credentials_pending"
	ReasonDailyLossLimit         = "daily_loss_limit"
	ReasonNoTrades               = "no_trades"
	ReasonTickCancelled          = "tick_cancelled"
	ReasonNotSchedulable         = "not_schedulable"
)

// ErrTenantLoad fails the whole tick: no tenant work could begin.
var ErrTenantLoad = errors.New("failed to load tenants")

// MarketFeed is the upstream market query.
type MarketFeed interface {
	FetchMarkets(ctx context.Context, focusAreas []string, limit int) ([]models.MarketSnapshot, error)
}

// TenantStore is the persistence the orchestrator reads and writes.
// LatestDirective returns models.ErrNotFound for a tenant without one.
type TenantStore interface {
	ListActiveTenants(ctx context.Context, limit int) ([]models.Tenant, error)
	LatestDirective(ctx context.Context, tenantID string) (*models.Directive, error)
	RuntimeState(ctx context.Context, tenantID string) (*models.RuntimeState, error)
	TodayPnL(ctx context.Context, tenantID string, now time.Time) (float64, error)
	// RecordRun stores a completed run's trades and outcome atomically.
	RecordRun(ctx context.Context, trades []models.TradeRecord, outcome models.RunOutcome) error
	UpsertRuntimeState(ctx context.Context, outcome models.RunOutcome) error
}

// Status is a tenant's outcome for one tick.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// TenantResult is one tenant's line in a tick summary.
type TenantResult struct {
	TenantID string `json:"tenantId"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Trades   int    `json:"trades"`
}

// Summary describes one finished tick.
type Summary struct {
	TickID              string         `json:"tickId"`
	StartedAt           time.Time      `json:"startedAt"`
	UsersConsidered     int            `json:"usersConsidered"`
	UsersExecuted       int            `json:"usersExecuted"`
	TotalTradesExecuted int            `json:"totalTradesExecuted"`
	Results             []TenantResult `json:"results"`
}

// Orchestrator runs ticks. It holds no per-tick state, so one value can serve
// every tick of the process.
type Orchestrator struct {
	store    TenantStore
	feed     MarketFeed
	settings Settings
	log      *logger.Logger
}

// New creates an Orchestrator. Concurrency below 1 is treated as 1.
func New(store TenantStore, feed MarketFeed, settings Settings) *Orchestrator {
	settings.Concurrency = max(settings.Concurrency, 1)
	settings.MaxUsersPerTick = max(settings.MaxUsersPerTick, 1)
	return &Orchestrator{
		store:    store,
		feed:     feed,
		settings: settings,
		log:      logger.With("component", "scheduler"),
	}
}

// Tick processes every eligible tenant once at instant now.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) (Summary, error) {
	summary := Summary{
		TickID:    uuid.NewString(),
		StartedAt: now,
	}

	tenants, err := o.store.ListActiveTenants(ctx, o.settings.MaxUsersPerTick)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrTenantLoad, err)
	}
	summary.UsersConsidered = len(tenants)
	summary.Results = make([]TenantResult, len(tenants))

	cache := newFetchCache(o.feed, o.settings.FetchTimeout)
	batch := o.settings.Concurrency

	for start := 0; start < len(tenants); start += batch {
		end := min(start+batch, len(tenants))

		if ctx.Err() != nil {
			for i := start; i < len(tenants); i++ {
				summary.Results[i] = TenantResult{TenantID: tenants[i].ID, Status: StatusSkipped, Reason: ReasonTickCancelled}
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				summary.Results[i] = o.runTenant(ctx, cache, tenants[i], now)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, r := range summary.Results {
		if r.Status == StatusExecuted {
			summary.UsersExecuted++
			summary.TotalTradesExecuted += r.Trades
		}
	}

	o.log.Info("tick %s: %d considered, %d executed, %d trades",
		summary.TickID, summary.UsersConsidered, summary.UsersExecuted, summary.TotalTradesExecuted)
	return summary, nil
}

// runTenant never returns an error: failures become an error result and are
// written to the tenant's runtime row.
func (o *Orchestrator) runTenant(ctx context.Context, cache *fetchCache, t models.Tenant, now time.Time) TenantResult {
	log := o.log.With("tenant", t.ID)

	if !t.Status.Schedulable() {
		return TenantResult{TenantID: t.ID, Status: StatusSkipped, Reason: ReasonNotSchedulable}
	}

	res, err := o.pipeline(ctx, cache, t, now)
	if err == nil {
		return res
	}

	msg := TruncateError(err.Error())
	log.Warn("run failed: %s", msg)
	outcome := models.RunOutcome{
		TenantID:  t.ID,
		DayBucket: models.DayBucket(now),
		At:        now,
		Err:       msg,
	}
	if perr := o.store.UpsertRuntimeState(ctx, outcome); perr != nil {
		log.Error("failed to record run error: %v", perr)
	}
	return TenantResult{TenantID: t.ID, Status: StatusError, Reason: msg}
}

func (o *Orchestrator) pipeline(ctx context.Context, cache *fetchCache, t models.Tenant, now time.Time) (TenantResult, error) {
	result := TenantResult{TenantID: t.ID, Status: StatusSkipped}
	day := models.DayBucket(now)

	dir, err := o.store.LatestDirective(ctx, t.ID)
	if errors.Is(err, models.ErrNotFound) {
		dir, err = nil, nil
	}
	if err != nil {
		return result, fmt.Errorf("load directive: %w", err)
	}

	stored, err := o.store.RuntimeState(ctx, t.ID)
	if err != nil {
		return result, fmt.Errorf("load runtime state: %w", err)
	}
	state := stored.Normalized(day)

	pace := pacing.Compute(pacing.Input{
		BuysPerDay:         o.settings.BuysPerDay(dir),
		MinIntervalSeconds: o.settings.MinIntervalSeconds,
		MaxIntervalSeconds: o.settings.MaxIntervalSeconds,
		MaxTradesPerScan:   o.settings.MaxTradesPerScan,
		LastRunAt:          state.LastRunAt,
		TradesToday:        state.TradesToday,
		Now:                now,
	})
	if !pace.Due {
		result.Reason = pace.Reason
		return result, nil
	}

	cfg := o.settings.DeriveBotConfig(dir, t.Status, pace.TradeTarget)
	limit := o.settings.MarketLimit(pace.TradeTarget)

	markets, err := cache.get(ctx, cfg.FocusAreas, limit)
	if err != nil {
		return result, fmt.Errorf("fetch markets: %w", err)
	}

	opps := scoring.Score(markets, cfg)

	pnl, err := o.store.TodayPnL(ctx, t.ID, now)
	if err != nil {
		return result, fmt.Errorf("load daily pnl: %w", err)
	}
	decisions := decision.Decide(opps, cfg, pnl)

	var records []models.TradeRecord
	switch {
	case decision.Halted(cfg, pnl):
		result.Reason = ReasonDailyLossLimit
	case !cfg.PaperMode:
		// live settlement is not wired; decisions are computed only
		result.Reason = ReasonLiveCredentialsPending
	case len(decisions) == 0:
		result.Reason = ReasonNoTrades
	default:
		records = paper.SimulateAll(t.ID, decisions, now)
	}
	executed := len(records)

	err = o.store.RecordRun(ctx, records, models.RunOutcome{
		TenantID:       t.ID,
		DayBucket:      day,
		At:             now,
		TradesExecuted: executed,
	})
	if err != nil {
		return result, fmt.Errorf("record run: %w", err)
	}
	if executed > 0 {
		result.Status = StatusExecuted
		result.Reason = ""
		result.Trades = executed
	}

	o.log.With("tenant", t.ID).Debug("run complete: %d candidates, %d decisions, %d executed, target %d",
		len(opps), len(decisions), executed, pace.TradeTarget)
	return result, nil
}

// TruncateError bounds msg to MaxErrorLength runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorLength {
		return msg
	}
	return string(r[:MaxErrorLength])
}
