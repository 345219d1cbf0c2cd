package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

// AppLister loads the installed applications.
type AppLister interface {
	List(ctx context.Context) ([]catalog.App, error)
}

// StateMsg carries a workflow state change into the program. The caller
// wires the coordinator's observer to Program.Send. It is applied only
// while a scan, uninstall or cleanup is in flight.
type StateMsg workflow.State

type appsLoadedMsg struct {
	apps []catalog.App
	err  error
}

type opDoneMsg struct {
	state workflow.State
	err   error
}

type Model struct {
	lister AppLister
	coord  *workflow.Coordinator

	filter      catalog.Filter
	fullCleanup bool

	allApps     []catalog.App
	apps        []catalog.App
	appsLoading bool
	appsErr     error

	state      workflow.State
	confirming bool
	opCancel   context.CancelFunc

	searchInput textinput.Model
	searching   bool

	appCursor  int
	appOffset  int
	itemCursor int
	itemOffset int
	spinner    spinner.Model
	width      int
	height     int
}

func New(lister AppLister, coord *workflow.Coordinator, filter catalog.Filter, fullCleanup bool) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	ti := textinput.New()
	ti.Placeholder = "Filter by name or publisher..."
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		lister:      lister,
		coord:       coord,
		filter:      filter,
		fullCleanup: fullCleanup,
		appsLoading: true,
		state:       coord.State(),
		searchInput: ti,
		spinner:     sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadApps(), m.spinner.Tick)
}

func (m Model) loadApps() tea.Cmd {
	return func() tea.Msg {
		apps, err := m.lister.List(context.Background())
		return appsLoadedMsg{apps: apps, err: err}
	}
}

// busy reports whether a spinner should run.
func (m Model) busy() bool {
	return m.appsLoading || m.state.Busy
}

// runOp runs a long coordinator action off the event loop. Esc cancels it
// through the returned context.
func (m Model) runOp(fn func(ctx context.Context) (workflow.State, error)) (Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.opCancel = cancel
	m.state.Busy = true
	return m, tea.Batch(func() tea.Msg {
		st, err := fn(ctx)
		return opDoneMsg{state: st, err: err}
	}, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case appsLoadedMsg:
		m.appsLoading = false
		m.appsErr = msg.err
		m.allApps = msg.apps
		m.applyFilter()
		return m, nil

	case StateMsg:
		// Progress only matters while an operation runs; opDoneMsg carries
		// the final state and late notifications must not overwrite it.
		if m.opCancel != nil {
			m.state = workflow.State(msg)
		}
		return m, nil

	case opDoneMsg:
		if m.opCancel != nil {
			m.opCancel()
			m.opCancel = nil
		}
		m.state = msg.state
		if msg.err != nil {
			m.state.Status = "Error: " + msg.err.Error()
		}
		m.confirming = false
		m.itemCursor, m.itemOffset = 0, 0
		if m.state.Step == workflow.AppPicker && m.state.LastResult != nil {
			// Reload after a cleanup so removed apps disappear from the list.
			m.appsLoading = true
			return m, tea.Batch(m.loadApps(), m.spinner.Tick)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		if msg.String() == "q" && !m.state.Busy {
			return m, tea.Quit
		}
		if m.state.Busy {
			if msg.String() == "esc" && m.opCancel != nil {
				m.opCancel()
			}
			return m, nil
		}

		switch m.state.Step {
		case workflow.AppPicker:
			return m.updatePicker(msg)
		case workflow.Audit:
			if m.confirming {
				return m.updateConfirm(msg)
			}
			return m.updateAudit(msg)
		case workflow.Done:
			return m.updateDone(msg)
		}

	default:
		if m.searching {
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *Model) applyFilter() {
	f := m.filter
	f.Query = m.searchInput.Value()
	m.apps = f.Apply(m.allApps)
	if m.appCursor >= len(m.apps) {
		m.appCursor = max(0, len(m.apps)-1)
	}
	m.appOffset = 0
}

func (m Model) selectedApp() (catalog.App, bool) {
	if m.appCursor < 0 || m.appCursor >= len(m.apps) {
		return catalog.App{}, false
	}
	return m.apps[m.appCursor], true
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.searchInput.Blur()
		if msg.String() == "esc" {
			m.searchInput.SetValue("")
		}
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.appCursor > 0 {
			m.appCursor--
		}
		m.appOffset, _ = window(m.appCursor, m.appOffset, m.visibleRows(), len(m.apps))
	case "down", "j":
		if m.appCursor < len(m.apps)-1 {
			m.appCursor++
		}
		m.appOffset, _ = window(m.appCursor, m.appOffset, m.visibleRows(), len(m.apps))
	case "/":
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case "m":
		m.filter.HideMicrosoft = !m.filter.HideMicrosoft
		m.applyFilter()
	case "s":
		if m.filter.SortBy == catalog.SortBySize {
			m.filter.SortBy = catalog.SortByName
		} else {
			m.filter.SortBy = catalog.SortBySize
		}
		m.applyFilter()
	case "f":
		m.fullCleanup = !m.fullCleanup
	case "r":
		if !m.appsLoading {
			m.appsLoading = true
			return m, tea.Batch(m.loadApps(), m.spinner.Tick)
		}
	case "enter":
		app, ok := m.selectedApp()
		if !ok {
			return m, nil
		}
		full := m.fullCleanup
		return m.runOp(func(ctx context.Context) (workflow.State, error) {
			return m.coord.Scan(ctx, app, full)
		})
	case "u":
		app, ok := m.selectedApp()
		if !ok {
			return m, nil
		}
		full := m.fullCleanup
		return m.runOp(func(ctx context.Context) (workflow.State, error) {
			return m.coord.Uninstall(ctx, app, full)
		})
	}
	return m, nil
}

func (m Model) updateAudit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var (
		st  workflow.State
		err error
	)
	switch msg.String() {
	case "up", "k":
		if m.itemCursor > 0 {
			m.itemCursor--
		}
		m.itemOffset, _ = window(m.itemCursor, m.itemOffset, m.visibleRows(), len(m.state.Items))
		return m, nil
	case "down", "j":
		if m.itemCursor < len(m.state.Items)-1 {
			m.itemCursor++
		}
		m.itemOffset, _ = window(m.itemCursor, m.itemOffset, m.visibleRows(), len(m.state.Items))
		return m, nil
	case " ":
		st, err = m.coord.Toggle(m.itemCursor)
	case "a":
		st, err = m.coord.SetAll(len(m.state.Selected()) == 0)
	case "d", "enter":
		if len(m.state.Selected()) == 0 {
			// Nothing selected: let the coordinator send us back to the picker.
			return m.runOp(m.coord.Cleanup)
		}
		m.confirming = true
		return m, nil
	case "x":
		st, err = m.coord.FinishScanOnly()
	case "esc", "backspace":
		st, err = m.coord.Reset()
	default:
		return m, nil
	}
	if err == nil {
		m.state = st
	} else {
		m.state.Status = "Error: " + err.Error()
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		m.confirming = false
		return m.runOp(m.coord.Cleanup)
	case "n", "esc", "backspace":
		m.confirming = false
	}
	return m, nil
}

func (m Model) updateDone(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", "backspace":
		if st, err := m.coord.Reset(); err == nil {
			m.state = st
		}
	}
	return m, nil
}

// visibleRows is the number of list rows that fit between header and footer.
func (m Model) visibleRows() int {
	if m.height == 0 {
		return 20
	}
	return max(5, m.height-12)
}
