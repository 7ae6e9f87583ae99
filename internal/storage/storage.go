// Package storage is the SQLite-backed tenant store. It holds tenant status,
// directives, per-tenant runtime rows and trade records.
//
// Runtime rows use a lazy day rollover: counters belong to the row's
// day_bucket, and an upsert for a new day replaces them instead of adding to
// them. No separate reset job exists.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/polytrader/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = models.ErrNotFound

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Storage provides tenant store operations over a SQLite database
type Storage struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertTenant creates a tenant or updates its runtime status
func (s *Storage) UpsertTenant(ctx context.Context, t models.Tenant) error {
	if t.ID == "" {
		return errors.New("tenant ID must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, runtime_status, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET runtime_status = excluded.runtime_status`,
		t.ID, string(t.Status), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert tenant %s: %w", t.ID, err)
	}
	return nil
}

// ListActiveTenants returns up to limit tenants whose status is running or
// paper, least recently run first.
func (s *Storage) ListActiveTenants(ctx context.Context, limit int) ([]models.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.runtime_status
		FROM tenants t
		LEFT JOIN runtime_state r ON r.tenant_id = t.id
		WHERE t.runtime_status IN (?, ?)
		ORDER BY r.last_run_at ASC NULLS FIRST, t.id ASC
		LIMIT ?`,
		string(models.StatusRunning), string(models.StatusPaper), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		var status string
		if err := rows.Scan(&t.ID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t.Status = models.RuntimeStatus(status)
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// AddDirective stores a new directive version for a tenant
func (s *Storage) AddDirective(ctx context.Context, d models.Directive) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid directive: %w", err)
	}
	focus, err := json.Marshal(d.FocusAreas)
	if err != nil {
		return fmt.Errorf("failed to encode focus areas: %w", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directives (tenant_id, amount, buys_per_day, risk_mix, focus_areas, paper_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.TenantID, d.Amount, d.BuysPerDay, string(d.RiskMix), string(focus), boolToInt(d.PaperMode), formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert directive: %w", err)
	}
	return nil
}

// LatestDirective returns the newest directive for a tenant, or ErrNotFound
func (s *Storage) LatestDirective(ctx context.Context, tenantID string) (*models.Directive, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, amount, buys_per_day, risk_mix, focus_areas, paper_mode, created_at
		FROM directives
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, tenantID)

	var d models.Directive
	var riskMix, focus, createdAt string
	var paper int
	err := row.Scan(&d.TenantID, &d.Amount, &d.BuysPerDay, &riskMix, &focus, &paper, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load directive for %s: %w", tenantID, err)
	}

	d.RiskMix = models.RiskMix(riskMix)
	d.PaperMode = paper != 0
	if err := json.Unmarshal([]byte(focus), &d.FocusAreas); err != nil {
		return nil, fmt.Errorf("failed to decode focus areas for %s: %w", tenantID, err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// RuntimeState returns the stored runtime row for a tenant as written. Callers
// normalize it to the current day. A tenant without a row gets an empty state.
func (s *Storage) RuntimeState(ctx context.Context, tenantID string) (*models.RuntimeState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, day_bucket, runs_today, trades_today, last_run_at, last_scan_at, last_error, last_error_at
		FROM runtime_state WHERE tenant_id = ?`, tenantID)

	var st models.RuntimeState
	var lastRun, lastScan, lastErrAt sql.NullString
	err := row.Scan(&st.TenantID, &st.DayBucket, &st.RunsToday, &st.TradesToday, &lastRun, &lastScan, &st.LastError, &lastErrAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RuntimeState{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load runtime state for %s: %w", tenantID, err)
	}

	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{{lastRun, &st.LastRunAt}, {lastScan, &st.LastScanAt}, {lastErrAt, &st.LastErrorAt}} {
		if !f.src.Valid {
			continue
		}
		t, err := parseTime(f.src.String)
		if err != nil {
			return nil, err
		}
		*f.dst = &t
	}
	return &st, nil
}

// UpsertRuntimeState writes one tick attempt's outcome.
//
// A successful run bumps runs_today by one and trades_today by the executed
// count (both restart from zero when the stored day bucket differs), sets
// last_run_at and last_scan_at, and clears the error. A failed run records the
// error and last_run_at, leaving counters and day bucket untouched.
func (s *Storage) UpsertRuntimeState(ctx context.Context, o models.RunOutcome) error {
	return upsertRuntimeState(ctx, s.db, o)
}

// InsertTrades stores trade records in a single transaction
func (s *Storage) InsertTrades(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	if err := validateTrades(trades); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertTrades(ctx, tx, trades); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trades: %w", err)
	}
	return nil
}

// RecordRun stores a completed run: its trades and its runtime outcome commit
// together or not at all, so trades_today always matches the stored trades.
func (s *Storage) RecordRun(ctx context.Context, trades []models.TradeRecord, o models.RunOutcome) error {
	if o.Err != "" {
		return fmt.Errorf("record run for %s: outcome carries error %q", o.TenantID, o.Err)
	}
	if o.TradesExecuted != len(trades) {
		return fmt.Errorf("record run for %s: %d trades executed but %d given", o.TenantID, o.TradesExecuted, len(trades))
	}
	if err := validateTrades(trades); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertTrades(ctx, tx, trades); err != nil {
		return err
	}
	if err := upsertRuntimeState(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run for %s: %w", o.TenantID, err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRuntimeState(ctx context.Context, ex execer, o models.RunOutcome) error {
	at := formatTime(o.At)

	var err error
	if o.Err == "" {
		_, err = ex.ExecContext(ctx, `
			INSERT INTO runtime_state (tenant_id, day_bucket, runs_today, trades_today, last_run_at, last_scan_at, last_error, last_error_at)
			VALUES (?, ?, 1, ?, ?, ?, '', NULL)
			ON CONFLICT(tenant_id) DO UPDATE SET
				runs_today = CASE WHEN runtime_state.day_bucket = excluded.day_bucket
					THEN runtime_state.runs_today + 1 ELSE 1 END,
				trades_today = CASE WHEN runtime_state.day_bucket = excluded.day_bucket
					THEN runtime_state.trades_today + excluded.trades_today ELSE excluded.trades_today END,
				day_bucket = excluded.day_bucket,
				last_run_at = excluded.last_run_at,
				last_scan_at = excluded.last_scan_at,
				last_error = '',
				last_error_at = NULL`,
			o.TenantID, o.DayBucket, o.TradesExecuted, at, at)
	} else {
		_, err = ex.ExecContext(ctx, `
			INSERT INTO runtime_state (tenant_id, day_bucket, runs_today, trades_today, last_run_at, last_error, last_error_at)
			VALUES (?, ?, 0, 0, ?, ?, ?)
			ON CONFLICT(tenant_id) DO UPDATE SET
				last_run_at = excluded.last_run_at,
				last_error = excluded.last_error,
				last_error_at = excluded.last_error_at`,
			o.TenantID, o.DayBucket, at, o.Err, at)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert runtime state for %s: %w", o.TenantID, err)
	}
	return nil
}

func validateTrades(trades []models.TradeRecord) error {
	for i := range trades {
		if err := trades[i].Validate(); err != nil {
			return fmt.Errorf("invalid trade %d: %w", i, err)
		}
	}
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, tenant_id, market_id, question, side, shares, price, total_cost,
			status, realized_pnl, paper_trade, rationale, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		var closedAt any
		if t.ClosedAt != nil {
			closedAt = formatTime(*t.ClosedAt)
		}
		var pnl any
		if t.RealizedPnL != nil {
			pnl = *t.RealizedPnL
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.TenantID, t.MarketID, t.Question, string(t.Side), t.Shares, t.Price, t.TotalCost,
			string(t.Status), pnl, boolToInt(t.PaperTrade), t.Rationale, formatTime(t.CreatedAt), closedAt,
		); err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
		}
	}
	return nil
}

// CloseTrade marks an open trade closed with its realized P&L. Used by
// settlement, never by the scheduler.
func (s *Storage) CloseTrade(ctx context.Context, tradeID string, pnl float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET status = ?, realized_pnl = ?, closed_at = ?
		WHERE id = ? AND status = ?`,
		string(models.TradeClosed), pnl, formatTime(at), tradeID, string(models.TradeOpen))
	if err != nil {
		return fmt.Errorf("failed to close trade %s: %w", tradeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TodayPnL sums realized P&L for a tenant's trades settled on the UTC day of
// now. Trades without a close time count on their creation day.
func (s *Storage) TodayPnL(ctx context.Context, tenantID string, now time.Time) (float64, error) {
	start, err := time.Parse(models.DayBucketLayout, models.DayBucket(now))
	if err != nil {
		return 0, err
	}
	end := start.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT realized_pnl FROM trades
		WHERE tenant_id = ?
		  AND realized_pnl IS NOT NULL
		  AND COALESCE(closed_at, created_at) >= ?
		  AND COALESCE(closed_at, created_at) < ?`,
		tenantID, formatTime(start), formatTime(end))
	if err != nil {
		return 0, fmt.Errorf("failed to query pnl for %s: %w", tenantID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return 0, fmt.Errorf("failed to scan pnl: %w", err)
		}
		total = total.Add(decimal.NewFromFloat(pnl))
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return total.InexactFloat64(), nil
}

// ListTrades returns a tenant's trades, oldest first
func (s *Storage) ListTrades(ctx context.Context, tenantID string) ([]models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, market_id, question, side, shares, price, total_cost,
			status, realized_pnl, paper_trade, rationale, created_at, closed_at
		FROM trades WHERE tenant_id = ?
		ORDER BY created_at ASC, id ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var side, status, createdAt string
		var pnl sql.NullFloat64
		var closedAt sql.NullString
		var paper int
		if err := rows.Scan(&t.ID, &t.TenantID, &t.MarketID, &t.Question, &side, &t.Shares, &t.Price, &t.TotalCost,
			&status, &pnl, &paper, &t.Rationale, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = models.Side(side)
		t.Status = models.TradeStatus(status)
		t.PaperTrade = paper != 0
		if pnl.Valid {
			v := pnl.Float64
			t.RealizedPnL = &v
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			ct, err := parseTime(closedAt.String)
			if err != nil {
				return nil, err
			}
			t.ClosedAt = &ct
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
