// Command burst fires repeated tick requests at a running polytrader service
// and reports success rate, throughput and latency percentiles.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	targetURL   = flag.String("url", "http://localhost:8080/api/scheduler/tick", "Tick endpoint URL")
	secret      = flag.String("secret", os.Getenv("POLYTRADER_SERVER_TICK_SECRET"), "Bearer secret (defaults to POLYTRADER_SERVER_TICK_SECRET)")
	requests    = flag.Int("requests", 20, "Total tick requests to send")
	concurrency = flag.Int("concurrency", 4, "Requests in flight at once")
	timeout     = flag.Duration("timeout", 60*time.Second, "Per-request timeout")
)

// tickEnvelope is the subset of the tick response the harness reads
type tickEnvelope struct {
	OK                  bool   `json:"ok"`
	Error               string `json:"error"`
	UsersConsidered     int    `json:"usersConsidered"`
	UsersExecuted       int    `json:"usersExecuted"`
	TotalTradesExecuted int    `json:"totalTradesExecuted"`
}

func main() {
	flag.Parse()

	if *secret == "" {
		log.Fatal("a bearer secret is required (-secret or POLYTRADER_SERVER_TICK_SECRET)")
	}
	if *requests < 1 || *concurrency < 1 {
		log.Fatal("requests and concurrency must be at least 1")
	}

	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println("POLYTRADER TICK BURST TEST")
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Printf("Target: %s\n", *targetURL)
	fmt.Printf("Requests: %d, concurrency: %d, timeout: %v\n", *requests, *concurrency, *timeout)

	client := &http.Client{Timeout: *timeout}
	samples := make([]sample, *requests)

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(*concurrency)
	for i := 0; i < *requests; i++ {
		g.Go(func() error {
			samples[i] = fire(context.Background(), client, *targetURL, *secret)
			return nil
		})
	}
	_ = g.Wait()
	wall := time.Since(start)

	r := summarize(samples, wall)
	printReport(os.Stdout, r)

	if r.Succeeded == 0 {
		os.Exit(1)
	}
}

// fire sends one tick request and records its outcome
func fire(ctx context.Context, client *http.Client, url, token string) sample {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return sample{Err: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return sample{Latency: time.Since(start), Err: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return sample{Latency: latency, Status: resp.StatusCode, Err: err.Error()}
	}

	var env tickEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return sample{Latency: latency, Status: resp.StatusCode, Err: fmt.Sprintf("invalid response: %v", err)}
	}
	s := sample{
		Latency:         latency,
		Status:          resp.StatusCode,
		OK:              resp.StatusCode == http.StatusOK && env.OK,
		UsersConsidered: env.UsersConsidered,
		UsersExecuted:   env.UsersExecuted,
		Trades:          env.TotalTradesExecuted,
	}
	if !s.OK {
		s.Err = env.Error
		if s.Err == "" {
			s.Err = http.StatusText(resp.StatusCode)
		}
	}
	return s
}
