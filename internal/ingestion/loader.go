package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
)

// DefaultExtensions are loaded when Options.Extensions is empty.
var DefaultExtensions = []string{".txt", ".md", ".pdf", ".docx"}

// Options configures a FileLoader.
type Options struct {
	Dir          string
	Recursive    bool
	Extensions   []string
	Workers      int
	MaxFileBytes int64
	// CreateDir makes Load create a missing folder instead of failing.
	CreateDir bool
	Registry  *Registry
	Metrics   *metrics.Metrics
}

// FileLoader reads documents from a folder. Files are visited in
// lexical order of their path relative to the folder, so document IDs are
// stable across loads of an unchanged folder.
type FileLoader struct {
	opts   Options
	exts   map[string]struct{}
	logger *slog.Logger
}

// NewFileLoader creates a FileLoader. Extensions without an extractor in
// the registry are ignored.
func NewFileLoader(opts Options) *FileLoader {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = normalizeExt(ext)
		if _, ok := opts.Registry.Lookup(ext); ok {
			exts[ext] = struct{}{}
		}
	}
	return &FileLoader{
		opts:   opts,
		exts:   exts,
		logger: slog.Default().With("component", "loader", "dir", opts.Dir),
	}
}

// Dir returns the folder the loader reads.
func (l *FileLoader) Dir() string {
	return l.opts.Dir
}

// Recursive reports whether sub-folders are included.
func (l *FileLoader) Recursive() bool {
	return l.opts.Recursive
}

// WithFolder returns a loader with the same settings reading dir.
func (l *FileLoader) WithFolder(dir string, recursive bool) *FileLoader {
	opts := l.opts
	opts.Dir = dir
	opts.Recursive = recursive
	opts.CreateDir = false
	return NewFileLoader(opts)
}

type fileEntry struct {
	path string
	name string
	ext  string
	size int64
}

// Load lists the folder and extracts every matching file. A file whose
// extraction fails is still returned, with empty text, so a later corpus
// filter drops it. Only failures to read the folder itself are errors.
func (l *FileLoader) Load(ctx context.Context) ([]corpus.Source, error) {
	if l.opts.CreateDir {
		if err := os.MkdirAll(l.opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating document folder: %w", err)
		}
	}
	files, err := l.list()
	if err != nil {
		return nil, err
	}

	sources := make([]corpus.Source, len(files))
	pool, err := ants.NewPool(l.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating extraction pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			sources[i] = l.extract(f)
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.logger.Info("documents loaded", "files", len(sources), "recursive", l.opts.Recursive)
	return sources, nil
}

func (l *FileLoader) extract(f fileEntry) corpus.Source {
	src := corpus.Source{Name: f.name, Path: f.path}
	status := "ok"
	defer func() {
		if l.opts.Metrics != nil {
			l.opts.Metrics.DocumentsLoaded.WithLabelValues(f.ext, status).Inc()
		}
	}()

	if l.opts.MaxFileBytes > 0 && f.size > l.opts.MaxFileBytes {
		status = "too_large"
		l.logger.Warn("skipping oversized file", "file", f.name, "size", f.size, "limit", l.opts.MaxFileBytes)
		return src
	}
	text, err := l.opts.Registry.Extract(f.path, f.ext)
	if err != nil {
		status = "error"
		l.logger.Warn("text extraction failed", "file", f.name, "error", err)
		return src
	}
	src.Text = text
	return src
}

func (l *FileLoader) list() ([]fileEntry, error) {
	info, err := os.Stat(l.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading document folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reading document folder: %s is not a directory", l.opts.Dir)
	}

	var files []fileEntry
	walkErr := filepath.WalkDir(l.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.opts.Dir {
				return err
			}
			l.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != l.opts.Dir && !l.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := l.exts[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(l.opts.Dir, path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		files = append(files, fileEntry{
			path: path,
			name: filepath.ToSlash(rel),
			ext:  ext,
			size: fi.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("reading document folder: %w", walkErr)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// Matches reports whether path has an extension this loader reads.
func (l *FileLoader) Matches(path string) bool {
	_, ok := l.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// StaticLoader serves a fixed set of sources; used by the CLI for inline
// documents and by tests.
type StaticLoader []corpus.Source

// Load returns a copy of the sources.
func (s StaticLoader) Load(ctx context.Context) ([]corpus.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]corpus.Source(nil), s...), nil
}
