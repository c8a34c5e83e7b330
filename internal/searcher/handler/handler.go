// Package handler serves the search API: ranked search, document listing,
// per-document keywords, plain-text download, snapshot stats and the
// result-cache endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/snippet"
	apperrors "github.com/Adithya-Monish-Kumar-K/docvista/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/tracing"
)

// Engine is the read side of *indexer.Engine.
type Engine interface {
	Current() *index.Snapshot
	SearchSnapshot(ctx context.Context, snap *index.Snapshot, req executor.Request) (*executor.SearchResult, error)
	Stats() indexer.Stats
}

// Options carries the request defaults and optional collaborators. Nil
// collaborators are skipped.
type Options struct {
	DefaultMethod parser.Method
	DefaultLimit  int
	MaxResults    int
	KeywordCount  int
	Tracing       bool

	Cache   *cache.QueryCache
	Tracker analytics.Tracker
	Metrics *metrics.Metrics
}

type Handler struct {
	engine Engine
	opts   Options
	logger *slog.Logger
}

func New(engine Engine, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	if opts.KeywordCount <= 0 {
		opts.KeywordCount = 12
	}
	return &Handler{
		engine: engine,
		opts:   opts,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Search answers GET /api/v1/search?q=&method=&limit=. A blank or
// degenerate query yields an empty result list, an unknown method falls
// back to TF-IDF, and limits above the configured maximum are clamped.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	method := h.opts.DefaultMethod
	if m := params.Get("method"); m != "" {
		method = parser.ParseMethod(m)
	}
	limit := h.opts.DefaultLimit
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = min(n, h.opts.MaxResults)
	}
	req := executor.Request{Query: params.Get("q"), Method: method, Limit: limit}

	var span *tracing.Span
	if h.opts.Tracing {
		ctx, span = tracing.StartSpan(ctx, "search")
		span.SetAttr("method", method.String())
		defer span.Finish(log)
	}

	snap := h.engine.Current()
	status := cache.StatusBypass
	var (
		result *executor.SearchResult
		err    error
	)
	compute := func() (*executor.SearchResult, error) {
		return h.engine.SearchSnapshot(ctx, snap, req)
	}
	if h.opts.Cache != nil && strings.TrimSpace(req.Query) != "" && limit > 0 {
		result, status, err = h.opts.Cache.GetOrCompute(ctx, snap, req, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		h.observe(method.String(), "", "error", status, start, 0)
		log.Error("search execution failed", "query", req.Query, "error", err)
		h.writeError(w, fmt.Errorf("executing search: %w", err))
		return
	}

	latency := time.Since(start)
	outcome := "hit"
	if len(result.Results) == 0 {
		outcome = "zero_result"
	}
	h.observe(result.Method, result.Mode, outcome, status, start, len(result.Results))
	if span != nil {
		span.SetAttr("cache", string(status))
		span.SetAttr("hits", result.TotalHits)
	}

	log.Info("search completed",
		"query", req.Query,
		"method", result.Method,
		"mode", result.Mode,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", string(status),
		"latency_ms", latency.Milliseconds(),
	)
	if h.opts.Tracker != nil {
		h.opts.Tracker.TrackSearch(analytics.SearchEvent{
			Query:       req.Query,
			Method:      result.Method,
			Mode:        result.Mode,
			TotalHits:   result.TotalHits,
			Returned:    len(result.Results),
			LatencyMs:   latency.Milliseconds(),
			CacheStatus: string(status),
			Generation:  result.Generation,
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) observe(method, mode, outcome string, status cache.Status, start time.Time, returned int) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(method, mode, outcome).Inc()
	m.SearchLatency.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	if outcome != "error" {
		m.SearchResultsCount.Observe(float64(returned))
	}
}

// DocumentSummary is one entry of the document listing.
type DocumentSummary struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Chars  int    `json:"chars"`
	Tokens int    `json:"tokens"`
}

// DocumentList is the response of the document listing.
type DocumentList struct {
	Generation uint64            `json:"generation"`
	Total      int               `json:"total"`
	Documents  []DocumentSummary `json:"documents"`
}

// Documents answers GET /api/v1/documents.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Current()
	docs := snap.Corpus.Docs()
	out := DocumentList{
		Generation: snap.Generation,
		Total:      len(docs),
		Documents:  make([]DocumentSummary, 0, len(docs)),
	}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentSummary{
			ID:     d.ID,
			Name:   d.Name,
			Path:   d.Path,
			Chars:  len([]rune(d.Text)),
			Tokens: len(d.Tokens),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// KeywordsResponse lists the highest-weighted terms of one document.
type KeywordsResponse struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Generation uint64            `json:"generation"`
	Keywords   []snippet.Keyword `json:"keywords"`
}

// Keywords answers GET /api/v1/documents/{id}/keywords?n=. Unknown IDs are
// 404; n defaults to the configured keyword count.
func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Current()
	id, ok := h.documentID(w, r, snap)
	if !ok {
		return
	}
	n := h.opts.KeywordCount
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "n must be a non-negative integer"))
			return
		}
		n = v
	}
	doc, _ := snap.Corpus.Doc(id)
	h.writeJSON(w, http.StatusOK, KeywordsResponse{
		ID:         id,
		Name:       doc.Name,
		Generation: snap.Generation,
		Keywords:   snippet.TopKeywords(snap.Vector, id, n),
	})
}

// Text answers GET /api/v1/documents/{id}/text with the extracted text as
// a plain-text attachment.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Current()
	id, ok := h.documentID(w, r, snap)
	if !ok {
		return
	}
	doc, _ := snap.Corpus.Doc(id)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(doc.Name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc.Text)); err != nil {
		h.logger.Error("failed to write document text", "doc_id", id, "error", err)
	}
}

func downloadName(name string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "document"
	}
	return base + ".txt"
}

// documentID parses the {id} path value and checks it against snap,
// writing a 404 when it names no document.
func (h *Handler) documentID(w http.ResponseWriter, r *http.Request, snap *index.Snapshot) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "no document with id %q", raw))
		return 0, false
	}
	if _, ok := snap.Corpus.Doc(id); !ok {
		h.writeError(w, apperrors.NotFound(id))
		return 0, false
	}
	return id, true
}

// Stats answers GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.opts.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrNotReady, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.opts.Cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Messages of AppErrors are shown
// to the client; anything else is reported generically.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
