package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemRejectsReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path, key string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send("/api/v1/quotes/a/items/web/addons/seo/toggle", "k1"))
	require.Equal(t, http.StatusConflict, send("/api/v1/quotes/a/items/web/addons/seo/toggle", "k1"))
	require.Equal(t, http.StatusOK, send("/api/v1/quotes/a/items/web/addons/cms/toggle", "k1"))
	require.Equal(t, http.StatusOK, send("/api/v1/quotes/a/clear", ""))
	require.Equal(t, http.StatusOK, send("/api/v1/quotes/a/clear", ""))
	require.Equal(t, 4, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fail := true
	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/a/items", nil)
		r.Header.Set("Idempotency-Key", "retry-me")
		return r
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req())
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	fail = false
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req())
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestIdemReleasesKeyOnPanic(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fail := true
	handler := middleware.Recoverer(Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			panic("boom")
		}
		w.WriteHeader(http.StatusOK)
	})))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/a/items", nil)
		r.Header.Set("Idempotency-Key", "panicky")
		return r
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req())
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Empty(t, mr.Keys())

	fail = false
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req())
	require.Equal(t, http.StatusOK, rr.Code)
}
