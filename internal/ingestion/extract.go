package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	apperrors "github.com/Adithya-Monish-Kumar-K/docvista/pkg/errors"
)

// ExtractFunc returns the plain text of the file at path.
type ExtractFunc func(path string) (string, error)

// Registry maps lower-case file extensions (with the leading dot) to
// extractors. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]ExtractFunc
}

// NewRegistry returns a registry with the built-in text, Markdown, PDF and
// DOCX extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]ExtractFunc)}
	r.Register(".txt", ExtractText)
	r.Register(".md", ExtractMarkdown)
	r.Register(".markdown", ExtractMarkdown)
	r.Register(".pdf", ExtractPDF)
	r.Register(".docx", ExtractDOCX)
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, fn ExtractFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[normalizeExt(ext)] = fn
}

// Lookup returns the extractor for ext, matched case-insensitively.
func (r *Registry) Lookup(ext string) (ExtractFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.extractors[normalizeExt(ext)]
	return fn, ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract dispatches on the extension of path.
func (r *Registry) Extract(path string, ext string) (string, error) {
	fn, ok := r.Lookup(ext)
	if !ok {
		return "", apperrors.Newf(apperrors.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "no extractor for %q", ext)
	}
	return fn(path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ExtractText reads a plain-text file. Invalid UTF-8 sequences are dropped.
func ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeText(data), nil
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExtractMarkdown renders a Markdown file down to its visible text: markup
// is removed, code blocks are kept verbatim and blocks are separated by
// newlines.
func ExtractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return markdownText([]byte(decodeText(data))), nil
}

func markdownText(source []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(source))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.URL(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(source))
				}
				sb.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// ExtractPDF returns the plain text of every page of a PDF. Malformed files
// that make the parser panic are reported as errors.
func ExtractPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing pdf %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf %s: %w", path, err)
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return "", fmt.Errorf("reading pdf %s: %w", path, err)
	}
	return strings.TrimSpace(decodeText(data)), nil
}

// ExtractDOCX pulls paragraph text out of word/document.xml in a .docx
// archive.
func ExtractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx %s: %w", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s in %s: %w", f.Name, path, err)
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", fmt.Errorf("docx %s: word/document.xml not found", path)
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
