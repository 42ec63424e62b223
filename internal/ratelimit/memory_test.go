package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllow(t *testing.T) {
	lim := NewMemoryLimiter("test:", time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := lim.Allow(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, 3-(i+1), remaining)
		require.True(t, reset.After(time.Now()))
	}
	allowed, remaining, _, err := lim.Allow(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = lim.Allow(ctx, "other", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed, "keys are independent")
}

func TestMiddlewareByClientIPWithMemoryLimiter(t *testing.T) {
	handler := Handler{
		Limiter: NewMemoryLimiter("", time.Minute),
		Config:  Config{Key: ByClientIP("quotes:"), Window: time.Minute, Max: 1},
	}
	next := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		next.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	handler := Handler{Config: Config{Key: ByClientIP(""), Window: time.Minute, Max: 1}}
	next := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		next.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rr.Code)
	}
}
