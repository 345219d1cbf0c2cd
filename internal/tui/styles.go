package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	statusBarStyle = lipgloss.NewStyle().
			Background(colorSubtle).
			Foreground(colorText).
			Padding(0, 1)

	headerBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorPrimary).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	dangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger).
			Background(colorDangerBg).
			Padding(0, 1)

	blockedStyle = lipgloss.NewStyle().
			Foreground(colorDanger)
)
