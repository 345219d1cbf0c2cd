package tui

import (
	"fmt"
	"strings"
)

// renderHeader draws a header bar with breadcrumb navigation.
func renderHeader(parts ...string) string {
	breadcrumb := "zerotrace"
	for _, p := range parts {
		breadcrumb += " > " + p
	}
	return headerBarStyle.Render(breadcrumb) + "\n\n"
}

// renderFooter draws a footer with keybind hints.
func renderFooter(hints ...string) string {
	return footerStyle.Render(strings.Join(hints, " | "))
}

// renderStatus draws the one-line status bar, or nothing for an empty status.
func renderStatus(status string) string {
	if status == "" {
		return ""
	}
	return "\n" + statusBarStyle.Render(status)
}

// window returns the [start, end) range of a list of total rows that keeps
// cursor visible in a viewport of visible rows starting at offset.
func window(cursor, offset, visible, total int) (int, int) {
	if visible < 1 {
		visible = 1
	}
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+visible {
		offset = cursor - visible + 1
	}
	if offset < 0 {
		offset = 0
	}
	end := min(offset+visible, total)
	return offset, end
}

// rangeHint renders "[a-b of n]" when the list is scrolled.
func rangeHint(start, end, total int) string {
	if end-start >= total {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, total)) + "\n"
}

func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
