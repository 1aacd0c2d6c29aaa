// Package util provides shared utility functions used across the codebase.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
// It does not account for ANSI escape codes or wide characters; for styled
// terminal output use TruncateANSI.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// Escape sequences are preserved.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, "...")
}

// FormatNames renders file names as a bracketed, comma separated list.
// At most limit names are shown; the rest are summarized as "(+N more)".
// A limit <= 0 shows every name.
func FormatNames(names []string, limit int) string {
	if limit <= 0 || len(names) <= limit {
		return "[" + strings.Join(names, ", ") + "]"
	}
	shown := strings.Join(names[:limit], ", ")
	return fmt.Sprintf("[%s, ... (+%d more)]", shown, len(names)-limit)
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
