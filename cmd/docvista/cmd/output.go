package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	colorAccent = "39"
	colorGray   = "245"
	colorMark   = "220"
)

// styles holds the terminal styles of the text output.
type styles struct {
	Title lipgloss.Style
	Score lipgloss.Style
	Dim   lipgloss.Style
	Mark  lipgloss.Style
	color bool
}

func colorStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Score: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Mark:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorMark)),
		color: true,
	}
}

func plainStyles() styles {
	return styles{
		Title: lipgloss.NewStyle(),
		Score: lipgloss.NewStyle(),
		Dim:   lipgloss.NewStyle(),
		Mark:  lipgloss.NewStyle(),
	}
}

// stylesFor picks colored styles for terminals unless NO_COLOR is set.
func stylesFor(w io.Writer) styles {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return plainStyles()
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return colorStyles()
	}
	return plainStyles()
}

// renderSnippet replaces <mark> spans with the mark style. Plain styles
// keep the terms visible by bracketing them.
func (s styles) renderSnippet(snippet string) string {
	var sb strings.Builder
	rest := snippet
	for {
		open := strings.Index(rest, "<mark>")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open:], "</mark>")
		if end < 0 {
			break
		}
		term := rest[open+len("<mark>") : open+end]
		sb.WriteString(rest[:open])
		if s.color {
			sb.WriteString(s.Mark.Render(term))
		} else {
			sb.WriteString("[" + term + "]")
		}
		rest = rest[open+end+len("</mark>"):]
	}
	sb.WriteString(rest)
	return sb.String()
}
