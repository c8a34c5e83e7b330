// Package handler serves the corpus maintenance endpoints: selecting the
// document folder and triggering a refresh.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docvista/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Engine is the write side of *indexer.Engine.
type Engine interface {
	Current() *index.Snapshot
	Loader() indexer.Loader
	Refresh(ctx context.Context) (*index.Snapshot, error)
	SwapLoader(ctx context.Context, l indexer.Loader) (*index.Snapshot, error)
}

// RefreshPublisher fans a refresh out to every replica.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, reason, dir string, paths []string) error
}

// FolderFunc is called after the engine switched to a new folder.
type FolderFunc func(dir string, recursive bool)

// Handler serves the folder and refresh endpoints. base supplies the
// extractor settings for newly selected folders.
type Handler struct {
	engine    Engine
	base      *ingestion.FileLoader
	publisher RefreshPublisher
	onFolder  []FolderFunc
	logger    *slog.Logger
}

// New creates a Handler. publisher may be nil, in which case refreshes run
// synchronously on this replica.
func New(engine Engine, base *ingestion.FileLoader, publisher RefreshPublisher, onFolder ...FolderFunc) *Handler {
	return &Handler{
		engine:    engine,
		base:      base,
		publisher: publisher,
		onFolder:  onFolder,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// FolderResponse describes the folder in service.
type FolderResponse struct {
	Dir        string `json:"dir"`
	Recursive  bool   `json:"recursive"`
	Documents  int    `json:"documents"`
	Generation uint64 `json:"generation"`
}

// Folder answers GET /api/v1/folder.
func (h *Handler) Folder(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Current()
	resp := FolderResponse{Documents: snap.Len(), Generation: snap.Generation}
	if fl, ok := h.engine.Loader().(*ingestion.FileLoader); ok {
		resp.Dir = fl.Dir()
		resp.Recursive = fl.Recursive()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// LoadFolder answers POST /api/v1/folder. The engine only switches once
// the new folder loaded; on failure the previous folder stays in service.
func (h *Handler) LoadFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.LoadFolderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateLoadFolderRequest(&req); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.engine.SwapLoader(ctx, h.base.WithFolder(req.Path, req.Recursive))
	if err != nil {
		log.Error("loading folder failed", "dir", req.Path, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "loading folder failed")
		return
	}
	for _, fn := range h.onFolder {
		fn(req.Path, req.Recursive)
	}
	log.Info("document folder selected",
		"dir", req.Path,
		"recursive", req.Recursive,
		"documents", snap.Len(),
		"generation", snap.Generation,
	)
	h.writeJSON(w, http.StatusOK, ingestion.LoadFolderResponse{
		Dir:        req.Path,
		Recursive:  req.Recursive,
		Documents:  snap.Len(),
		Generation: snap.Generation,
	})
}

// RefreshResponse reports a synchronous rebuild.
type RefreshResponse struct {
	Status     string `json:"status"`
	Generation uint64 `json:"generation,omitempty"`
	Documents  int    `json:"documents"`
	DurationMs int64  `json:"duration_ms"`
}

// Refresh answers POST /api/v1/refresh. With a publisher the request is
// queued for every replica and answered with 202; if publishing fails, or
// there is no publisher, this replica rebuilds before answering.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.publisher != nil {
		dir := ""
		if fl, ok := h.engine.Loader().(*ingestion.FileLoader); ok {
			dir = fl.Dir()
		}
		err := h.publisher.PublishRefresh(ctx, "api", dir, nil)
		if err == nil {
			h.writeJSON(w, http.StatusAccepted, RefreshResponse{Status: "queued", Documents: h.engine.Current().Len()})
			return
		}
		log.Warn("refresh event not published, refreshing locally", "error", err)
	}

	start := time.Now()
	snap, err := h.engine.Refresh(ctx)
	if err != nil {
		if errors.Is(err, indexer.ErrNoLoader) {
			h.writeError(w, http.StatusServiceUnavailable, "no document folder configured")
			return
		}
		log.Error("refresh failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "refresh failed")
		return
	}
	h.writeJSON(w, http.StatusOK, RefreshResponse{
		Status:     "refreshed",
		Generation: snap.Generation,
		Documents:  snap.Len(),
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
