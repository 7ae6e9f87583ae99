package models

import (
	"testing"
	"time"
)

func TestOpportunityValidate(t *testing.T) {
	tests := []struct {
		name    string
		opp     Opportunity
		wantErr bool
	}{
		{
			name: "valid opportunity",
			opp: Opportunity{
				ID:         "m-1",
				YesPrice:   0.52,
				NoPrice:    0.50,
				EdgePct:    2,
				RiskTier:   RiskMedium,
				Confidence: 40,
			},
			wantErr: false,
		},
		{
			name:    "empty ID",
			opp:     Opportunity{YesPrice: 0.5, NoPrice: 0.5, RiskTier: RiskLow},
			wantErr: true,
		},
		{
			name:    "price at bound",
			opp:     Opportunity{ID: "m-1", YesPrice: 1, NoPrice: 0.5, RiskTier: RiskLow},
			wantErr: true,
		},
		{
			name:    "unknown tier",
			opp:     Opportunity{ID: "m-1", YesPrice: 0.4, NoPrice: 0.5, RiskTier: "extreme"},
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			opp:     Opportunity{ID: "m-1", YesPrice: 0.4, NoPrice: 0.5, RiskTier: RiskHigh, Confidence: 101},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Opportunity.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTradeRecordValidate(t *testing.T) {
	pnl := 1.5
	valid := TradeRecord{
		ID:         "t-1",
		TenantID:   "tenant-1",
		MarketID:   "m-1",
		Side:       SideNo,
		Shares:     10,
		Price:      0.48,
		TotalCost:  4.8,
		Status:     TradeOpen,
		PaperTrade: true,
		CreatedAt:  time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(*TradeRecord)
		wantErr bool
	}{
		{name: "valid trade", mutate: func(*TradeRecord) {}},
		{name: "missing tenant", mutate: func(r *TradeRecord) { r.TenantID = "" }, wantErr: true},
		{name: "bad side", mutate: func(r *TradeRecord) { r.Side = "MAYBE" }, wantErr: true},
		{name: "zero shares", mutate: func(r *TradeRecord) { r.Shares = 0 }, wantErr: true},
		{name: "bad status", mutate: func(r *TradeRecord) { r.Status = "pending" }, wantErr: true},
		{name: "open with pnl", mutate: func(r *TradeRecord) { r.RealizedPnL = &pnl }, wantErr: true},
		{name: "closed with pnl", mutate: func(r *TradeRecord) { r.Status = TradeClosed; r.RealizedPnL = &pnl }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TradeRecord.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectiveValidate(t *testing.T) {
	d := Directive{TenantID: "t", Amount: 100, BuysPerDay: 10, RiskMix: MixBalanced}
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.RiskMix = "yolo"
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for unknown risk mix")
	}
}

func TestRuntimeStateNormalized(t *testing.T) {
	last := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	state := RuntimeState{
		TenantID:    "t",
		DayBucket:   "2026-03-01",
		RunsToday:   4,
		TradesToday: 7,
		LastRunAt:   &last,
	}

	same := state.Normalized("2026-03-01")
	if same.RunsToday != 4 || same.TradesToday != 7 {
		t.Errorf("same-day state changed: %+v", same)
	}

	next := state.Normalized("2026-03-02")
	if next.RunsToday != 0 || next.TradesToday != 0 {
		t.Errorf("stale bucket should read as zero, got runs=%d trades=%d", next.RunsToday, next.TradesToday)
	}
	if next.LastRunAt == nil || !next.LastRunAt.Equal(last) {
		t.Errorf("last run should survive rollover")
	}
	if state.TradesToday != 7 {
		t.Errorf("Normalized must not modify the receiver")
	}
}

func TestBotConfigFocus(t *testing.T) {
	tests := []struct {
		name     string
		focus    []string
		category string
		want     bool
	}{
		{name: "no focus", focus: nil, category: "sports", want: true},
		{name: "match", focus: []string{"crypto", "sports"}, category: "sports", want: true},
		{name: "miss", focus: []string{"crypto"}, category: "sports", want: false},
		{name: "all bypasses", focus: []string{"crypto", FocusAll}, category: "weather", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BotConfig{FocusAreas: tt.focus}
			if got := cfg.InFocus(tt.category); got != tt.want {
				t.Errorf("InFocus(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestDayBucketUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2026, 5, 2, 3, 0, 0, 0, loc) // 2026-05-01 18:00 UTC
	if got := DayBucket(ts); got != "2026-05-01" {
		t.Errorf("DayBucket() = %s, want 2026-05-01", got)
	}
}
