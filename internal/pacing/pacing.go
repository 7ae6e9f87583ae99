// Package pacing decides when a tenant is due for another run and how many
// trades that run may place. A tenant's daily quota (buys per day) is spread
// evenly over the runs its interval allows in a day.
package pacing

import (
	"fmt"
	"math"
	"time"
)

const (
	secondsPerDay = 86400

	MinBuysPerDay = 1
	MaxBuysPerDay = 100_000

	ReasonDailyBudgetReached = "daily_budget_reached"
)

// Input is everything the calculator needs for one tenant at one instant.
// TradesToday must already be normalized to the current day bucket.
type Input struct {
	BuysPerDay         int
	MinIntervalSeconds int
	MaxIntervalSeconds int
	MaxTradesPerScan   int
	LastRunAt          *time.Time
	TradesToday        int
	Now                time.Time
}

// Result is the pacing verdict for one tenant.
type Result struct {
	Due                bool
	Reason             string
	BuysPerDay         int
	EffectiveInterval  time.Duration
	ExpectedRunsPerDay int
	RemainingQuota     int
	TradeTarget        int
}

// ClampBuysPerDay bounds a directive's buys-per-day to [MinBuysPerDay, MaxBuysPerDay].
func ClampBuysPerDay(n int) int {
	return min(max(n, MinBuysPerDay), MaxBuysPerDay)
}

// EffectiveIntervalSeconds is floor(86400 / buysPerDay) clamped into [minSec, maxSec].
func EffectiveIntervalSeconds(buysPerDay, minSec, maxSec int) int {
	buysPerDay = ClampBuysPerDay(buysPerDay)
	minSec = max(minSec, 1)
	if maxSec < minSec {
		maxSec = minSec
	}
	return min(max(secondsPerDay/buysPerDay, minSec), maxSec)
}

// Compute applies the daily-quota rule, then the interval rule, then sizes the run.
func Compute(in Input) Result {
	buys := ClampBuysPerDay(in.BuysPerDay)
	intervalSec := EffectiveIntervalSeconds(buys, in.MinIntervalSeconds, in.MaxIntervalSeconds)
	runsPerDay := max(1, secondsPerDay/intervalSec)

	res := Result{
		BuysPerDay:         buys,
		EffectiveInterval:  time.Duration(intervalSec) * time.Second,
		ExpectedRunsPerDay: runsPerDay,
		RemainingQuota:     max(0, buys-in.TradesToday),
	}

	if in.TradesToday >= buys {
		res.Reason = ReasonDailyBudgetReached
		return res
	}

	if in.LastRunAt != nil {
		elapsed := in.Now.Sub(*in.LastRunAt)
		if elapsed < res.EffectiveInterval {
			wait := int(math.Ceil((res.EffectiveInterval - elapsed).Seconds()))
			res.Reason = TooSoonReason(wait)
			return res
		}
	}

	target := max(1, int(math.Ceil(float64(buys)/float64(runsPerDay))))
	target = min(target, res.RemainingQuota)
	if in.MaxTradesPerScan > 0 {
		target = min(target, in.MaxTradesPerScan)
	}

	res.Due = true
	res.TradeTarget = target
	return res
}

// TooSoonReason formats the skip reason for a tenant that is not yet due.
func TooSoonReason(waitSeconds int) string {
	return fmt.Sprintf("too_soon_%ds", waitSeconds)
}
