package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/handler"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/ratelimit"
)

func api(t *testing.T, limiter *ratelimit.Limiter) (http.Handler, *analytics.Aggregator) {
	t.Helper()
	sources := ingestion.StaticLoader{
		{Name: "cats.txt", Text: "The cat sat on the mat."},
		{Name: "dogs.txt", Text: "The dog chased the ball."},
	}
	engine := indexer.NewEngine(indexer.WithLoader(sources))
	engine.Build([]corpus.Source(sources))

	agg := analytics.NewAggregator(0)
	checker := health.NewChecker(time.Second)
	m := metrics.New(prometheus.NewRegistry())

	h := New(Handlers{
		Search:    searchhandler.New(engine, searchhandler.Options{Tracker: agg, Metrics: m}),
		Ingestion: ingesthandler.New(engine, ingestion.NewFileLoader(ingestion.Options{}), nil),
		Analytics: analytics.NewHandler(agg),
		Health:    checker,
	}, Options{
		Metrics:               m,
		RequestTimeout:        5 * time.Second,
		MaxConcurrentSearches: 4,
		Limiter:               limiter,
		CORSOrigins:           []string{"*"},
	})
	return h, agg
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	h, agg := api(t, nil)

	rec := get(h, "/api/v1/search?q=cat")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	for _, target := range []string{
		"/api/v1/documents",
		"/api/v1/documents/0/keywords",
		"/api/v1/documents/1/text",
		"/api/v1/stats",
		"/api/v1/cache/stats",
		"/api/v1/analytics",
		"/api/v1/analytics/recent",
		"/health/live",
	} {
		assert.Equal(t, http.StatusOK, get(h, target).Code, target)
	}
	assert.Equal(t, http.StatusNotFound, get(h, "/api/v1/documents/7/keywords").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(h, "/api/v1/refresh").Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"cat"}, agg.RecentQueries())
	rec = get(h, "/api/v1/analytics/recent")
	var recent map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	assert.Equal(t, []string{"cat"}, recent["queries"])
}

func TestSearchRateLimited(t *testing.T) {
	h, _ := api(t, ratelimit.New(1, time.Minute))
	assert.Equal(t, http.StatusOK, get(h, "/api/v1/search?q=cat").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/api/v1/search?q=dog").Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/v1/documents").Code, "only search is limited")
}
