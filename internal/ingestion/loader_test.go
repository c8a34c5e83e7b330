package ingestion

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docvista/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeDOCX(t *testing.T, path string, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// writePDF writes a single-page PDF that shows line in Helvetica.
func writePDF(t *testing.T, path, line string) {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	writeFile(t, path, sb.String())
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "Plain text about retrieval engines.")
	writeFile(t, filepath.Join(dir, "B.TXT"), "Upper-case extension still loads.")
	writeFile(t, filepath.Join(dir, "notes.md"), "# Ranking\n\nBM25 and *TF-IDF* notes.\n")
	writePDF(t, filepath.Join(dir, "paper.pdf"), "Hello PDF world")
	writeFile(t, filepath.Join(dir, "scan.pdf"), "%PDF-1.4 truncated")
	writeFile(t, filepath.Join(dir, "broken.docx"), "this is not a zip archive")
	writeDOCX(t, filepath.Join(dir, "report.docx"), `<w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> report</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>`)
	writeFile(t, filepath.Join(dir, "sub", "nested.txt"), "Nested folder document text.")
	return dir
}

func names(t *testing.T, l *FileLoader) ([]string, map[string]string) {
	t.Helper()
	sources, err := l.Load(context.Background())
	require.NoError(t, err)
	out := make([]string, len(sources))
	texts := make(map[string]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name
		texts[s.Name] = s.Text
	}
	return out, texts
}

func TestFileLoaderNonRecursive(t *testing.T) {
	dir := fixtureDir(t)
	got, texts := names(t, NewFileLoader(Options{Dir: dir, Workers: 3}))

	assert.Equal(t, []string{"B.TXT", "a.txt", "broken.docx", "notes.md", "paper.pdf", "report.docx", "scan.pdf"}, got)
	assert.Equal(t, "Plain text about retrieval engines.", texts["a.txt"])
	assert.Empty(t, texts["broken.docx"])
	assert.Contains(t, texts["paper.pdf"], "Hello PDF world")
	assert.Empty(t, texts["scan.pdf"])
	assert.Equal(t, "Quarterly report\nSecond paragraph", texts["report.docx"])
	assert.Contains(t, texts["notes.md"], "BM25 and TF-IDF notes.")
	assert.NotContains(t, texts["notes.md"], "#")
}

func TestFileLoaderRecursive(t *testing.T) {
	dir := fixtureDir(t)
	got, texts := names(t, NewFileLoader(Options{Dir: dir, Recursive: true}))
	assert.Contains(t, got, "sub/nested.txt")
	assert.Equal(t, "Nested folder document text.", texts["sub/nested.txt"])
	assert.IsNonDecreasing(t, got)
}

func TestFileLoaderExtensionFilter(t *testing.T) {
	dir := fixtureDir(t)
	got, _ := names(t, NewFileLoader(Options{Dir: dir, Extensions: []string{"TXT", ".pdf", ".rtf"}}))
	// .rtf has no extractor and is ignored
	assert.Equal(t, []string{"B.TXT", "a.txt", "paper.pdf", "scan.pdf"}, got)
}

func TestFileLoaderMaxFileBytes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.txt"), "0123456789abcdef")
	_, texts := names(t, NewFileLoader(Options{Dir: dir, MaxFileBytes: 8}))
	assert.Empty(t, texts["big.txt"])
}

func TestFileLoaderMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := NewFileLoader(Options{Dir: missing}).Load(context.Background())
	assert.Error(t, err)

	sources, err := NewFileLoader(Options{Dir: missing, CreateDir: true}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.DirExists(t, missing)
}

func TestFileLoaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLoader(Options{Dir: fixtureDir(t)}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithFolder(t *testing.T) {
	base := NewFileLoader(Options{Dir: "a", Workers: 2, CreateDir: true})
	l := base.WithFolder("b", true)
	assert.Equal(t, "b", l.Dir())
	assert.True(t, l.Recursive())
	assert.False(t, l.opts.CreateDir)
	assert.True(t, l.Matches("x/Y.MD"))
	assert.True(t, l.Matches("x/y.pdf"))
	assert.False(t, l.Matches("x/y.rtf"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{".docx", ".markdown", ".md", ".pdf", ".txt"}, r.Extensions())

	_, err := r.Extract("file.rtf", ".rtf")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	r.Register("RTF", func(string) (string, error) { return "rtf text", nil })
	text, err := r.Extract("file.rtf", ".rtf")
	require.NoError(t, err)
	assert.Equal(t, "rtf text", text)
}

func TestExtractPDF(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.pdf")
	writePDF(t, good, "Hello PDF world")
	text, err := ExtractPDF(good)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello PDF world")

	bad := filepath.Join(dir, "bad.pdf")
	writeFile(t, bad, "%PDF-1.4 truncated")
	_, err = ExtractPDF(bad)
	assert.Error(t, err)
}

func TestMarkdownText(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\nSecond line.\n\n- item one\n- item two\n\n```go\nfenced := true\n```\n\n<div>html</div>\n"
	got := markdownText([]byte(src))
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Some emphasis and code. Second line.")
	assert.Contains(t, got, "item one")
	assert.Contains(t, got, "fenced := true")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "html")
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "ok", decodeText([]byte("\xef\xbb\xbfok")))
	assert.Equal(t, "ab", decodeText([]byte("a\xffb")))
}

func TestStaticLoader(t *testing.T) {
	l := StaticLoader{{Name: "x", Text: "hello world"}}
	got, err := l.Load(context.Background())
	require.NoError(t, err)
	got[0].Name = "changed"
	assert.Equal(t, "x", l[0].Name)
}
