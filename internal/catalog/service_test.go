package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/pricing"
)

func newService(t *testing.T, cache *catalog.Cache) *catalog.Service {
	t.Helper()
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)
	svc, err := catalog.NewService(catalog.ServiceConfig{Registry: reg, Cache: cache})
	require.NoError(t, err)
	return svc
}

func TestServiceCatalogRendersEffectiveSchedule(t *testing.T) {
	svc := newService(t, nil)

	view, err := svc.Catalog(context.Background(), "plan")
	require.NoError(t, err)
	require.Equal(t, "plan", view.Builder)
	require.NotEmpty(t, view.Version)
	require.Equal(t, pricing.DefaultBundleSchedule, view.BundleDiscounts)
	require.Equal(t, "website", view.Services[0].ID)

	site, err := svc.Catalog(context.Background(), "website")
	require.NoError(t, err)
	require.Equal(t, pricing.BundleSchedule{{MinItems: 2, Percent: 5}, {MinItems: 3, Percent: 10}}, site.BundleDiscounts)
}

func TestServiceCatalogUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := newService(t, catalog.NewCache(client, time.Minute))
	ctx := context.Background()

	first, err := svc.Catalog(ctx, "plan")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Contains(t, keys[0], "catalog:v1:plan:")

	second, err := svc.Catalog(ctx, "plan")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCacheBreakerOpensOnRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	var transitions []gobreaker.State
	cache := catalog.NewCache(client, time.Minute, catalog.WithBreakerStateHook(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))
	svc := newService(t, cache)
	mr.Close()

	for i := 0; i < 5; i++ {
		view, err := svc.Catalog(context.Background(), "plan")
		require.NoError(t, err, "catalog stays available without redis")
		require.Equal(t, "plan", view.Builder)
	}
	require.Equal(t, gobreaker.StateOpen.String(), cache.State())
	require.Contains(t, transitions, gobreaker.StateOpen)
}

func TestCacheDisabledWithoutClient(t *testing.T) {
	cache := catalog.NewCache(nil, 0)
	require.Equal(t, "disabled", cache.State())
	var dst map[string]any
	hit, err := cache.GetJSON(context.Background(), "k", &dst)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, cache.SetJSON(context.Background(), "k", map[string]any{"a": 1}))
}

func TestCatalogHandlers(t *testing.T) {
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: newService(t, nil)})
	r := chi.NewRouter()
	r.Get("/api/v1/builders", handler.Builders)
	r.Get("/api/v1/builders/{builder}/catalog", handler.Catalog)

	t.Run("builders", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/builders", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data []catalog.BuilderInfo `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(t, body.Data)
	})

	t.Run("catalog with etag", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/builders/app/catalog", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		var body struct {
			Data catalog.View `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "app", body.Data.Builder)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/builders/app/catalog", nil)
		req.Header.Set("If-None-Match", etag)
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("if-none-match forms", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/builders/app/catalog", nil))
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		cases := []struct {
			name   string
			header string
			status int
		}{
			{"list", `"stale", ` + etag, http.StatusNotModified},
			{"weak", "W/" + etag, http.StatusNotModified},
			{"wildcard", "*", http.StatusNotModified},
			{"stale", `"stale"`, http.StatusOK},
			{"unquoted", etag[1 : len(etag)-1], http.StatusOK},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/api/v1/builders/app/catalog", nil)
				req.Header.Set("If-None-Match", tc.header)
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, req)
				require.Equal(t, tc.status, rec.Code)
			})
		}
	})

	t.Run("unknown builder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/builders/nope/catalog", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}
