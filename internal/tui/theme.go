package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all TUI colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorSubtle    = lipgloss.Color("236")
	colorText      = lipgloss.Color("252")
	colorWhite     = lipgloss.Color("255")
	colorDangerBg  = lipgloss.Color("52")
)

// ---------------------------------------------------------------------------
// Kind colors -- used for the section headers of the audit list.
// ---------------------------------------------------------------------------

var kindColors = map[scanner.Kind]lipgloss.Color{
	scanner.Path:          lipgloss.Color("75"),
	scanner.RegistryKey:   lipgloss.Color("141"),
	scanner.Service:       lipgloss.Color("214"),
	scanner.ScheduledTask: lipgloss.Color("119"),
	scanner.FirewallRule:  lipgloss.Color("208"),
}

// KindColor returns the theme color for a target kind.
// Unknown kinds fall back to colorPrimary.
func KindColor(k scanner.Kind) lipgloss.Color {
	if c, ok := kindColors[k]; ok {
		return c
	}
	return colorPrimary
}

// ---------------------------------------------------------------------------
// Confidence colors -- green for High, orange for Medium, red for Low.
// ---------------------------------------------------------------------------

func confidenceColor(c scanner.Confidence) lipgloss.Color {
	switch c {
	case scanner.High:
		return colorSuccess
	case scanner.Medium:
		return colorWarning
	default:
		return colorDanger
	}
}
