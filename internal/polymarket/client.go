// Package polymarket is the upstream market feed. It reads active markets from
// the Gamma API, and order-book depth and recent activity from the CLOB and data
// APIs. Malformed entries are skipped rather than failing the whole response.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/polytrader/internal/logger"
	"github.com/rewired-gh/polytrader/internal/models"
)

// Client provides access to Polymarket APIs
type Client struct {
	gammaURL       string
	clobURL        string
	dataURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds HTTP tuning options for the client
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	RateLimit      float64 // requests per second shared by all callers
	RateBurst      int
}

// APIError is a non-2xx response from an upstream API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewClient creates a new Polymarket client
func NewClient(gammaURL, clobURL, dataURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = 500 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}

	return &Client{
		gammaURL:       strings.TrimRight(gammaURL, "/"),
		clobURL:        strings.TrimRight(clobURL, "/"),
		dataURL:        strings.TrimRight(dataURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, cfg.RateBurst),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchMarkets returns up to limit active markets for the given focus areas,
// highest 24h volume first. An empty focus set, or one containing "all",
// queries without a tag filter. Markets appearing under several tags are
// returned once.
func (c *Client) FetchMarkets(ctx context.Context, focusAreas []string, limit int) ([]models.MarketSnapshot, error) {
	if limit < 1 {
		limit = 1
	}

	tags := queryTags(focusAreas)
	seen := make(map[string]bool)
	var snapshots []models.MarketSnapshot

	for _, tag := range tags {
		events, err := c.fetchEvents(ctx, tag, limit)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			for _, snap := range convertEvent(ev, tag) {
				if seen[snap.ID] {
					continue
				}
				seen[snap.ID] = true
				snapshots = append(snapshots, snap)
			}
		}
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Volume24hr > snapshots[j].Volume24hr
	})
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}

	logger.Debug("Fetched %d markets (tags=%v, limit=%d)", len(snapshots), tags, limit)
	return snapshots, nil
}

// queryTags returns the sorted, de-duplicated tag list to query. A single empty
// tag means "no filter".
func queryTags(focusAreas []string) []string {
	set := make(map[string]bool)
	for _, f := range focusAreas {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if f == models.FocusAll {
			return []string{""}
		}
		set[f] = true
	}
	if len(set) == 0 {
		return []string{""}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (c *Client) fetchEvents(ctx context.Context, tag string, limit int) ([]PolymarketEvent, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("archived", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	params.Set("limit", strconv.Itoa(limit))
	if tag != "" {
		params.Set("tag_slug", tag)
	}

	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.gammaURL+"/events?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := make([]PolymarketEvent, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var ev PolymarketEvent
		if err := json.Unmarshal(r, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if skipped > 0 {
		logger.Debug("Skipped %d malformed events (tag=%q)", skipped, tag)
	}
	return events, nil
}

// convertEvent flattens an event into market snapshots. Closed or inactive
// markets and markets without an ID or prices are dropped.
func convertEvent(ev PolymarketEvent, tag string) []models.MarketSnapshot {
	if ev.Closed {
		return nil
	}

	category := ev.Category
	if category == "" {
		category = tag
	}
	if category == "" && len(ev.Tags) > 0 {
		category = ev.Tags[0].Slug
	}
	tagSlugs := make([]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tagSlugs = append(tagSlugs, t.Slug)
	}

	out := make([]models.MarketSnapshot, 0, len(ev.Markets))
	for _, m := range ev.Markets {
		if m.ID == "" || m.Closed {
			continue
		}
		prices, err := decodeStringArray(m.OutcomePrices)
		if err != nil || len(prices) < 2 {
			continue
		}
		tokens, _ := decodeStringArray(m.ClobTokenIds)

		question := m.Question
		if question == "" {
			question = ev.Title
		}
		volume := float64(m.Volume24hr)
		if volume == 0 {
			volume = float64(ev.Volume24hr)
		}
		liquidity := float64(m.Liquidity)
		if liquidity == 0 {
			liquidity = float64(ev.Liquidity)
		}
		end := parseTime(m.EndDate)
		if end.IsZero() {
			end = parseTime(ev.EndDate)
		}

		out = append(out, models.MarketSnapshot{
			ID:            m.ID,
			ConditionID:   m.ConditionID,
			Question:      question,
			Category:      category,
			Tags:          tagSlugs,
			OutcomePrices: prices,
			ClobTokenIDs:  tokens,
			Volume24hr:    volume,
			Liquidity:     liquidity,
			EndDate:       end,
		})
	}
	return out
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// OrderBook retrieves order-book depth for one outcome token
func (c *Client) OrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	if tokenID == "" {
		return nil, errors.New("token ID is required")
	}
	var book OrderBook
	if err := c.getJSON(ctx, c.clobURL+"/book?token_id="+url.QueryEscape(tokenID), &book); err != nil {
		return nil, fmt.Errorf("failed to fetch order book: %w", err)
	}
	return &book, nil
}

// RecentActivity retrieves the most recent trades for a market condition ID
func (c *Client) RecentActivity(ctx context.Context, conditionID string, limit int) ([]Activity, error) {
	if conditionID == "" {
		return nil, errors.New("condition ID is required")
	}
	params := url.Values{}
	params.Set("market", conditionID)
	params.Set("limit", strconv.Itoa(max(limit, 1)))

	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.dataURL+"/trades?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch activity: %w", err)
	}
	out := make([]Activity, 0, len(raw))
	for _, r := range raw {
		var a Activity
		if err := json.Unmarshal(r, &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// getJSON performs a rate-limited GET with retry and decodes the JSON body into v
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelayBase * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.doRequest(ctx, rawURL)
		if err != nil {
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !containsJSON(ct) {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return body, nil
}

// containsJSON reports whether a Content-Type header denotes JSON
func containsJSON(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(ct, "application/json") {
		return false
	}
	rest := ct[len("application/json"):]
	return rest == "" || rest[0] == ';'
}
