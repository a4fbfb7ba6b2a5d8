package api

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

const (
	excerptLineWidth  = 79
	excerptIndentStep = 4
	excerptMaxLines   = 5
)

// Excerpt wraps text for an error message at the given indent level. Lines
// are indented four spaces per level and wrapped within 79 columns less
// the indent on each side. Long words are broken. Only the first five lines
// are kept and the rest is replaced with a "<truncated>" marker.
func Excerpt(text string, level int) string {
	prefix := strings.Repeat(" ", excerptIndentStep*level)
	limit := excerptLineWidth - 2*len(prefix)
	if limit < 1 {
		limit = 1
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		wrapped := wordwrap.WrapString(paragraph, uint(limit))
		for _, line := range strings.Split(wrapped, "\n") {
			lines = append(lines, breakLongLine(line, limit)...)
		}
	}

	truncated := len(lines) > excerptMaxLines
	if truncated {
		lines = lines[:excerptMaxLines]
	}
	for i, line := range lines {
		lines[i] = prefix + line
	}
	if truncated {
		lines = append(lines, prefix+"<truncated>")
	}
	return strings.Join(lines, "\n")
}

func breakLongLine(line string, limit int) []string {
	runes := []rune(line)
	if len(runes) <= limit {
		return []string{line}
	}
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	return append(out, string(runes))
}
