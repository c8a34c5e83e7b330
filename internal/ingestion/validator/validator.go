// Package validator checks folder-selection requests before the engine
// is pointed at a new document folder, returning per-field error details.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion"
)

const maxPathLength = 4096

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateLoadFolderRequest checks that the requested path names an
// existing, readable directory. On success the path is replaced by its
// cleaned absolute form.
func ValidateLoadFolderRequest(req *ingestion.LoadFolderRequest) error {
	errs := make(map[string]string)

	path := strings.TrimSpace(req.Path)
	switch {
	case path == "":
		errs["path"] = "path is required"
	case len(path) > maxPathLength:
		errs["path"] = fmt.Sprintf("path must be at most %d characters", maxPathLength)
	default:
		abs, err := filepath.Abs(path)
		if err != nil {
			errs["path"] = "path cannot be resolved"
			break
		}
		info, err := os.Stat(abs)
		switch {
		case os.IsNotExist(err):
			errs["path"] = "folder does not exist"
		case err != nil:
			errs["path"] = "folder cannot be read"
		case !info.IsDir():
			errs["path"] = "path is not a folder"
		default:
			req.Path = abs
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
