package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// sample is the outcome of one tick request
type sample struct {
	Latency         time.Duration
	Status          int
	OK              bool
	Err             string
	UsersConsidered int
	UsersExecuted   int
	Trades          int
}

// report aggregates a burst run
type report struct {
	Requests        int
	Succeeded       int
	SuccessRate     float64
	Wall            time.Duration
	RequestsPerSec  float64
	TradesPerSec    float64
	TotalTrades     int
	UsersConsidered int
	UsersExecuted   int
	P50, P90, P99   time.Duration
	Errors          map[string]int
}

func summarize(samples []sample, wall time.Duration) report {
	r := report{
		Requests: len(samples),
		Wall:     wall,
		Errors:   make(map[string]int),
	}

	latencies := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		latencies = append(latencies, s.Latency)
		if !s.OK {
			r.Errors[s.Err]++
			continue
		}
		r.Succeeded++
		r.TotalTrades += s.Trades
		r.UsersConsidered += s.UsersConsidered
		r.UsersExecuted += s.UsersExecuted
	}

	if r.Requests > 0 {
		r.SuccessRate = float64(r.Succeeded) / float64(r.Requests) * 100
	}
	if secs := wall.Seconds(); secs > 0 {
		r.RequestsPerSec = float64(r.Requests) / secs
		r.TradesPerSec = float64(r.TotalTrades) / secs
	}

	slices.Sort(latencies)
	r.P50 = percentile(latencies, 50)
	r.P90 = percentile(latencies, 90)
	r.P99 = percentile(latencies, 99)
	return r
}

// percentile returns the nearest-rank p-th percentile of sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}

func printReport(w io.Writer, r report) {
	fmt.Fprintln(w, "\nRESULTS:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "  Success rate: %.1f%% (%d/%d)\n", r.SuccessRate, r.Succeeded, r.Requests)
	fmt.Fprintf(w, "  Wall time: %v\n", r.Wall.Round(time.Millisecond))
	fmt.Fprintf(w, "  Throughput: %.2f req/s, %.2f trades/s\n", r.RequestsPerSec, r.TradesPerSec)
	fmt.Fprintf(w, "  Trades executed: %d (tenants considered: %d, executed: %d)\n",
		r.TotalTrades, r.UsersConsidered, r.UsersExecuted)
	fmt.Fprintf(w, "  Latency p50: %v  p90: %v  p99: %v\n",
		r.P50.Round(time.Millisecond), r.P90.Round(time.Millisecond), r.P99.Round(time.Millisecond))

	if len(r.Errors) == 0 {
		return
	}
	fmt.Fprintln(w, "\n  Errors:")
	msgs := make([]string, 0, len(r.Errors))
	for msg := range r.Errors {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return r.Errors[msgs[i]] > r.Errors[msgs[j]] })
	for _, msg := range msgs {
		fmt.Fprintf(w, "    %dx %s\n", r.Errors[msg], msg)
	}
}
