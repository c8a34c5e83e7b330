// Package router assembles the DocVista HTTP API from the search,
// ingestion and analytics handlers and wraps it in the middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/handler"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/ratelimit"
)

// Handlers are the endpoint groups. Ingestion, Analytics and Health may be
// nil; their routes are then not registered.
type Handlers struct {
	Search    *searchhandler.Handler
	Ingestion *ingesthandler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
}

// Options tunes the middleware chain.
type Options struct {
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	// MaxConcurrentSearches caps in-flight searches; 0 disables the cap.
	MaxConcurrentSearches int
	// Limiter throttles searches per client; nil disables throttling.
	Limiter     *ratelimit.Limiter
	CORSOrigins []string
}

// New builds the API handler.
//
// Route table:
//
//	GET    /api/v1/search
//	GET    /api/v1/documents
//	GET    /api/v1/documents/{id}/keywords
//	GET    /api/v1/documents/{id}/text
//	GET    /api/v1/stats
//	GET    /api/v1/cache/stats
//	POST   /api/v1/cache/invalidate
//	GET    /api/v1/folder
//	POST   /api/v1/folder
//	POST   /api/v1/refresh
//	GET    /api/v1/analytics
//	GET    /api/v1/analytics/recent
//	GET    /health/live
//	GET    /health/ready
//
// Middleware, outermost first: RequestID, Logging, CORS, Metrics, Timeout.
// Searches additionally pass RateLimit and ConcurrencyLimit.
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	search := middleware.Chain(http.HandlerFunc(h.Search.Search),
		middleware.RateLimit(opts.Limiter),
		middleware.ConcurrencyLimit(opts.MaxConcurrentSearches, opts.Metrics),
	)
	mux.Handle("GET /api/v1/search", search)
	mux.HandleFunc("GET /api/v1/documents", h.Search.Documents)
	mux.HandleFunc("GET /api/v1/documents/{id}/keywords", h.Search.Keywords)
	mux.HandleFunc("GET /api/v1/documents/{id}/text", h.Search.Text)
	mux.HandleFunc("GET /api/v1/stats", h.Search.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.Search.CacheInvalidate)

	if h.Ingestion != nil {
		mux.HandleFunc("GET /api/v1/folder", h.Ingestion.Folder)
		mux.HandleFunc("POST /api/v1/folder", h.Ingestion.LoadFolder)
		mux.HandleFunc("POST /api/v1/refresh", h.Ingestion.Refresh)
	}
	if h.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", h.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/recent", h.Analytics.Recent)
	}
	if h.Health != nil {
		mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging,
		middleware.CORS(middleware.DefaultCORSConfig(opts.CORSOrigins)),
	}
	if opts.Metrics != nil {
		chain = append(chain, middleware.Metrics(opts.Metrics))
	}
	chain = append(chain, middleware.Timeout(opts.RequestTimeout))
	return middleware.Chain(mux, chain...)
}
