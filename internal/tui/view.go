package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/utils"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

func (m Model) View() string {
	if m.state.Busy {
		return m.viewBusy()
	}
	switch m.state.Step {
	case workflow.Audit:
		if m.confirming {
			return m.viewConfirm()
		}
		return m.viewAudit()
	case workflow.Done:
		return m.viewDone()
	default:
		return m.viewPicker()
	}
}

func (m Model) viewBusy() string {
	var b strings.Builder
	name := ""
	if m.state.App != nil {
		name = m.state.App.DisplayName
	}
	b.WriteString(renderHeader(m.state.Step.String(), name))
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.state.Status))
	b.WriteString(renderFooter("esc cancel"))
	return b.String()
}

func (m Model) viewPicker() string {
	var b strings.Builder
	b.WriteString(renderHeader("Applications"))

	if m.searching {
		b.WriteString(m.searchInput.View() + "\n\n")
	} else if q := m.searchInput.Value(); q != "" {
		b.WriteString(dimStyle.Render("filter: "+q) + "\n\n")
	}

	switch {
	case m.appsLoading:
		b.WriteString(fmt.Sprintf("%s Loading installed applications...\n", m.spinner.View()))
	case m.appsErr != nil:
		b.WriteString(blockedStyle.Render("Error: "+m.appsErr.Error()) + "\n")
	case len(m.apps) == 0:
		b.WriteString(dimStyle.Render("No applications match.") + "\n")
	default:
		start, end := window(m.appCursor, m.appOffset, m.visibleRows(), len(m.apps))
		for i := start; i < end; i++ {
			a := m.apps[i]
			size := ""
			if a.SizeBytes != nil {
				size = utils.FormatSize(*a.SizeBytes)
			}
			line := fmt.Sprintf("%-44s %-24s %10s", truncText(a.DisplayName, 44), truncText(a.Publisher, 24), size)
			if i == m.appCursor {
				b.WriteString(selectedStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
		b.WriteString(rangeHint(start, end, len(m.apps)))
	}

	mode := "residuals only"
	if m.fullCleanup {
		mode = "full cleanup"
	}
	b.WriteString(renderStatus(m.state.Status))
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("mode: %s  sort: %s  hide microsoft: %t", mode, sortLabel(m.filter.SortBy), m.filter.HideMicrosoft)))
	b.WriteString(renderFooter("enter scan", "u uninstall", "/ filter", "f mode", "s sort", "m microsoft", "r reload", "q quit"))
	return b.String()
}

func sortLabel(s string) string {
	if s == "" {
		return "name"
	}
	return s
}

func (m Model) viewAudit() string {
	var b strings.Builder
	name := ""
	if m.state.App != nil {
		name = m.state.App.DisplayName
	}
	b.WriteString(renderHeader("Audit", name))

	items := m.state.Items
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("No residuals found.") + "\n")
	} else {
		start, end := window(m.itemCursor, m.itemOffset, m.visibleRows(), len(items))
		for i := start; i < end; i++ {
			b.WriteString(m.renderItem(i, items[i]) + "\n")
		}
		b.WriteString(rangeHint(start, end, len(items)))
	}

	b.WriteString(renderStatus(m.state.Status))
	b.WriteString(fmt.Sprintf("\n%d of %d selected", len(m.state.Selected()), len(items)))
	b.WriteString(renderFooter("space toggle", "a all/none", "d delete", "x finish without changes", "esc back"))
	return b.String()
}

func (m Model) renderItem(i int, it workflow.Item) string {
	check := "[ ]"
	if it.Included && it.Selectable() {
		check = "[x]"
	}
	kind := lipgloss.NewStyle().Foreground(KindColor(it.Target.Kind)).Width(14).Render(it.Target.Kind.String())
	conf := lipgloss.NewStyle().Foreground(confidenceColor(it.Target.Confidence)).Width(7).Render(it.Target.Confidence.String())
	value := truncPath(it.Target.Value, 70)

	var note string
	switch {
	case it.Target.Blocked:
		note = blockedStyle.Render(" protected")
	case !it.Target.Exists:
		note = dimStyle.Render(" missing")
	case it.Target.Meta != "":
		note = dimStyle.Render(" " + it.Target.Meta)
	}

	cursor := "  "
	if i == m.itemCursor {
		cursor = "> "
		value = selectedStyle.Render(value)
	} else if !it.Selectable() {
		value = dimStyle.Render(value)
	}
	return cursor + check + " " + kind + conf + value + note
}

func (m Model) viewConfirm() string {
	var b strings.Builder
	name := ""
	if m.state.App != nil {
		name = m.state.App.DisplayName
	}
	b.WriteString(renderHeader("Audit", name, "Confirm"))

	counts := map[string]int{}
	for _, t := range m.state.Selected() {
		counts[t.Kind.String()]++
	}
	b.WriteString(dangerStyle.Render(fmt.Sprintf(" Delete %d item(s)? This cannot be undone. ", len(m.state.Selected()))) + "\n\n")
	for _, k := range kindOrder() {
		if n := counts[k]; n > 0 {
			b.WriteString(fmt.Sprintf("  %-14s %d\n", k, n))
		}
	}
	b.WriteString(renderFooter("y confirm", "n cancel"))
	return b.String()
}

func (m Model) viewDone() string {
	var b strings.Builder
	b.WriteString(renderHeader("Done"))
	b.WriteString(titleStyle.Render(m.state.Status) + "\n")
	b.WriteString(renderFooter("enter back to list", "q quit"))
	return b.String()
}

func truncText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func kindOrder() []string {
	out := make([]string, 0, len(scanner.Kinds))
	for _, k := range scanner.Kinds {
		out = append(out, k.String())
	}
	return out
}
