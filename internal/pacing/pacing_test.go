package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveIntervalSeconds(t *testing.T) {
	tests := []struct {
		name       string
		buysPerDay int
		minSec     int
		maxSec     int
		want       int
	}{
		{"capped by max", 24, 30, 3600, 3600},
		{"inside bounds", 48, 30, 3600, 1800},
		{"raised to min", 10_000, 30, 3600, 30},
		{"zero buys clamps to one", 0, 30, 3600, 3600},
		{"above max buys", 1_000_000, 0, 3600, 1},
		{"inverted bounds", 24, 600, 60, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveIntervalSeconds(tt.buysPerDay, tt.minSec, tt.maxSec))
		})
	}
}

func TestCompute_IntervalBoundary(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	in := Input{
		BuysPerDay:         24,
		MinIntervalSeconds: 30,
		MaxIntervalSeconds: 3600,
		MaxTradesPerScan:   10,
		LastRunAt:          &t0,
	}

	in.Now = t0.Add(3599 * time.Second)
	res := Compute(in)
	assert.False(t, res.Due)
	assert.Equal(t, "too_soon_1s", res.Reason)
	assert.Equal(t, time.Hour, res.EffectiveInterval)

	in.Now = t0.Add(3600 * time.Second)
	res = Compute(in)
	require.True(t, res.Due)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 24, res.ExpectedRunsPerDay)
	assert.Equal(t, 1, res.TradeTarget)
}

func TestCompute_FirstRunIsDue(t *testing.T) {
	res := Compute(Input{BuysPerDay: 5, MinIntervalSeconds: 30, MaxIntervalSeconds: 3600, Now: time.Now()})
	assert.True(t, res.Due)
	assert.Equal(t, 1, res.TradeTarget)
}

func TestCompute_DailyBudgetReached(t *testing.T) {
	long := time.Now().Add(-48 * time.Hour)
	res := Compute(Input{
		BuysPerDay:         24,
		MinIntervalSeconds: 30,
		MaxIntervalSeconds: 3600,
		LastRunAt:          &long,
		TradesToday:        24,
		Now:                time.Now(),
	})
	assert.False(t, res.Due)
	assert.Equal(t, ReasonDailyBudgetReached, res.Reason)
	assert.Equal(t, 0, res.RemainingQuota)
}

func TestCompute_SpreadsQuotaAcrossRuns(t *testing.T) {
	now := time.Now()
	// interval 30s → 2880 runs; ceil(5000/2880) = 2
	res := Compute(Input{BuysPerDay: 5000, MinIntervalSeconds: 30, MaxIntervalSeconds: 3600, Now: now})
	require.True(t, res.Due)
	assert.Equal(t, 2880, res.ExpectedRunsPerDay)
	assert.Equal(t, 2, res.TradeTarget)

	// interval capped at 1h → 24 runs; ceil(100/24) = 5
	res = Compute(Input{BuysPerDay: 100, MinIntervalSeconds: 3600, MaxIntervalSeconds: 3600, Now: now})
	assert.Equal(t, 5, res.TradeTarget)
}

func TestCompute_TargetCappedByQuotaAndCeiling(t *testing.T) {
	now := time.Now()
	res := Compute(Input{BuysPerDay: 100, MinIntervalSeconds: 3600, MaxIntervalSeconds: 3600, TradesToday: 98, Now: now})
	require.True(t, res.Due)
	assert.Equal(t, 2, res.TradeTarget)

	res = Compute(Input{BuysPerDay: 100, MinIntervalSeconds: 3600, MaxIntervalSeconds: 3600, MaxTradesPerScan: 3, Now: now})
	assert.Equal(t, 3, res.TradeTarget)
}
