package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polytrader/internal/scheduler"
)

type fakeTicker struct {
	summary scheduler.Summary
	err     error
	delay   time.Duration

	calls   int32
	running int32
	overlap int32
}

func (f *fakeTicker) Tick(_ context.Context, now time.Time) (scheduler.Summary, error) {
	atomic.AddInt32(&f.calls, 1)
	if atomic.AddInt32(&f.running, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.running, -1)
	time.Sleep(f.delay)

	s := f.summary
	s.StartedAt = now
	return s, f.err
}

func tickRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/scheduler/tick", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestTick_Success(t *testing.T) {
	ticker := &fakeTicker{summary: scheduler.Summary{
		TickID:              "tick-1",
		UsersConsidered:     3,
		UsersExecuted:       1,
		TotalTradesExecuted: 2,
		Results: []scheduler.TenantResult{
			{TenantID: "a", Status: scheduler.StatusExecuted, Trades: 2},
			{TenantID: "b", Status: scheduler.StatusSkipped, Reason: "too_soon_60s"},
			{TenantID: "c", Status: scheduler.StatusError, Reason: "fetch markets: timeout"},
		},
	}}

	var hookCalls int
	srv := New(Config{TickSecret: "s3cret", OnTick: func(s scheduler.Summary, err error, _ time.Duration) {
		hookCalls++
		assert.NoError(t, err)
		assert.Equal(t, "tick-1", s.TickID)
	}}, ticker)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, tickRequest("s3cret"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, hookCalls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "tick-1", body["tickId"])
	assert.Equal(t, 3.0, body["usersConsidered"])
	assert.Equal(t, 1.0, body["usersExecuted"])
	assert.Equal(t, 2.0, body["totalTradesExecuted"])

	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)
	first := results[0].(map[string]any)
	assert.Equal(t, "a", first["tenantId"])
	assert.Equal(t, "executed", first["status"])
}

func TestTick_EmptyResultsEncodeAsArray(t *testing.T) {
	srv := New(Config{TickSecret: "x"}, &fakeTicker{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, tickRequest("x"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestTick_Unauthorized(t *testing.T) {
	ticker := &fakeTicker{}
	srv := New(Config{TickSecret: "s3cret"}, ticker)

	for _, req := range []*http.Request{
		tickRequest(""),
		tickRequest("wrong"),
		func() *http.Request {
			r := tickRequest("")
			r.Header.Set("Authorization", "Basic s3cret")
			return r
		}(),
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Equal(t, int32(0), ticker.calls)
}

func TestTick_DisabledWithoutSecret(t *testing.T) {
	ticker := &fakeTicker{}
	srv := New(Config{}, ticker)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, tickRequest("anything"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int32(0), ticker.calls)
}

func TestTick_FatalError(t *testing.T) {
	ticker := &fakeTicker{err: errors.New("failed to load tenants: db locked")}
	var hookErr error
	srv := New(Config{TickSecret: "s", OnTick: func(_ scheduler.Summary, err error, _ time.Duration) { hookErr = err }}, ticker)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, tickRequest("s"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Contains(t, body.Error, "db locked")
	assert.Error(t, hookErr)
}

func TestTick_MethodNotAllowed(t *testing.T) {
	srv := New(Config{TickSecret: "s"}, &fakeTicker{})

	req := httptest.NewRequest(http.MethodGet, "/api/scheduler/tick", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTick_Serialized(t *testing.T) {
	ticker := &fakeTicker{delay: 20 * time.Millisecond}
	srv := New(Config{TickSecret: "s"}, ticker)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, tickRequest("s"))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), atomic.LoadInt32(&ticker.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&ticker.overlap))
}

func TestHealth(t *testing.T) {
	healthy := New(Config{}, &fakeTicker{})
	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	sick := New(Config{HealthCheck: func(context.Context) error { return errors.New("database is closed") }}, &fakeTicker{})
	rec = httptest.NewRecorder()
	sick.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is closed")
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0"}, &fakeTicker{})
	errCh := srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Shutdown may race ListenAndServe; either order ends without a listen error
	_ = srv.Shutdown(ctx)

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
