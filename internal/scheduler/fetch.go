package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/polytrader/internal/models"
)

type fetchResult struct {
	markets []models.MarketSnapshot
	err     error
}

// fetchCache shares upstream fetches between tenants of one tick. Concurrent
// callers with the same key join one in-flight request; later callers read
// the stored result, errors included. A cache never outlives its tick.
type fetchCache struct {
	feed    MarketFeed
	timeout time.Duration
	group   singleflight.Group

	mu   sync.Mutex
	done map[string]fetchResult
}

func newFetchCache(feed MarketFeed, timeout time.Duration) *fetchCache {
	return &fetchCache{
		feed:    feed,
		timeout: timeout,
		done:    make(map[string]fetchResult),
	}
}

// fetchKey expects focus already normalized (sorted, de-duplicated).
func fetchKey(focus []string, limit int) string {
	return strings.Join(focus, ",") + "|" + strconv.Itoa(limit)
}

func (c *fetchCache) lookup(key string) (fetchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.done[key]
	return r, ok
}

func (c *fetchCache) get(ctx context.Context, focus []string, limit int) ([]models.MarketSnapshot, error) {
	key := fetchKey(focus, limit)
	if r, ok := c.lookup(key); ok {
		return r.markets, r.err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// a caller may have finished between lookup and Do
		if r, ok := c.lookup(key); ok {
			return r.markets, r.err
		}

		fctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		markets, err := c.feed.FetchMarkets(fctx, focus, limit)

		c.mu.Lock()
		c.done[key] = fetchResult{markets: markets, err: err}
		c.mu.Unlock()
		return markets, err
	})
	if err != nil {
		return nil, err
	}
	markets, _ := v.([]models.MarketSnapshot)
	return markets, nil
}
