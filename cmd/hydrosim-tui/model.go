package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0087AF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	summaryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	stepsView view = iota
	nodesView
	linksView
	controlsView
	numViews
)

var viewNames = []string{"Steps", "Nodes", "Links", "Status changes"}

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Prev     key.Binding
	Next     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev step"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next step"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Prev, k.Next, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.ShiftTab}, {k.Prev, k.Next}, {k.Quit}}
}

type model struct {
	sim         *results.Simulation
	step        int
	currentView view
	tables      [numViews]table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
}

func newModel(sim *results.Simulation) model {
	flow, head, pressure := "flow", "head", "pressure"
	if sim.Units != "" {
		flow = string(sim.Units)
		if sim.Units.System() == units.SI {
			head, pressure = "m", "m"
		} else {
			head, pressure = "ft", "psi"
		}
	}
	m := model{sim: sim, help: help.New(), keys: keys}
	m.tables[stepsView] = newTable([]table.Column{
		{Title: "Time", Width: 8}, {Title: "Status", Width: 12}, {Title: "Trials", Width: 7},
		{Title: "Rel. error", Width: 11}, {Title: "Warnings", Width: 9},
	})
	m.tables[nodesView] = newTable([]table.Column{
		{Title: "Node", Width: 14}, {Title: "Head (" + head + ")", Width: 12},
		{Title: "Pressure (" + pressure + ")", Width: 15}, {Title: "Demand (" + flow + ")", Width: 14},
		{Title: "Isolated", Width: 9},
	})
	m.tables[linksView] = newTable([]table.Column{
		{Title: "Link", Width: 14}, {Title: "Flow (" + flow + ")", Width: 13}, {Title: "Velocity", Width: 9},
		{Title: "Headloss", Width: 10}, {Title: "Status", Width: 8}, {Title: "Setting", Width: 8},
	})
	m.tables[controlsView] = newTable([]table.Column{
		{Title: "Time", Width: 8}, {Title: "Link", Width: 14}, {Title: "Status", Width: 8},
		{Title: "Setting", Width: 8}, {Title: "Reason", Width: 30},
	})
	m.tables[stepsView].SetRows(stepRows(sim))
	m.tables[controlsView].SetRows(controlRows(sim))
	m.refresh()
	return m
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#0087AF")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// refresh fills the node and link tables for the selected step
func (m *model) refresh() {
	if len(m.sim.Steps) == 0 {
		return
	}
	st := m.sim.Steps[m.step]
	m.tables[nodesView].SetRows(nodeRows(st))
	m.tables[linksView].SetRows(linkRows(st))
	m.tables[stepsView].SetCursor(m.step)
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		for i := range m.tables {
			m.tables[i].SetHeight(max(msg.Height-12, 5))
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % numViews
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + numViews - 1) % numViews
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if m.step > 0 {
				m.step--
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Next):
			if m.step < len(m.sim.Steps)-1 {
				m.step++
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.tables[m.currentView], cmd = m.tables[m.currentView].Update(msg)
	if m.currentView == stepsView && len(m.sim.Steps) > 0 {
		if c := m.tables[stepsView].Cursor(); c != m.step && c >= 0 && c < len(m.sim.Steps) {
			m.step = c
			m.refresh()
		}
	}
	return m, cmd
}

func (m model) View() string {
	var s strings.Builder
	name := m.sim.Network
	if name == "" {
		name = m.sim.Fingerprint
	}
	s.WriteString(titleStyle.Render("Hydraulic results: " + name))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n")

	var body strings.Builder
	if len(m.sim.Steps) == 0 {
		body.WriteString(warnStyle.Render("The run has no steps"))
	} else {
		body.WriteString(summaryStyle.Render(m.summary()))
		body.WriteString("\n")
		body.WriteString(m.tables[m.currentView].View())
		if w := m.sim.Steps[m.step].Warnings; len(w) > 0 && m.currentView != controlsView {
			body.WriteString("\n")
			body.WriteString(warnStyle.Render(strings.Join(w, "\n")))
		}
	}
	s.WriteString(contentStyle.Render(body.String()))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m model) renderTabs() string {
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.currentView {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) summary() string {
	st := m.sim.Steps[m.step]
	return fmt.Sprintf("Step %d/%d at %s   %s after %d trials   %d unbalanced steps",
		m.step+1, len(m.sim.Steps), hhmm(st.Time.Seconds()), st.Status, st.Trials, m.sim.Unbalanced())
}

func stepRows(sim *results.Simulation) []table.Row {
	rows := make([]table.Row, len(sim.Steps))
	for i, st := range sim.Steps {
		rows[i] = table.Row{
			hhmm(st.Time.Seconds()), st.Status.String(), fmt.Sprint(st.Trials),
			fmt.Sprintf("%.2e", st.RelativeError), fmt.Sprint(len(st.Warnings)),
		}
	}
	return rows
}

func nodeRows(st *results.Step) []table.Row {
	ids := results.SortedIDs(st.Nodes)
	rows := make([]table.Row, len(ids))
	for i, id := range ids {
		r := st.Nodes[id]
		isolated := ""
		if r.Isolated {
			isolated = "yes"
		}
		rows[i] = table.Row{id, fmt.Sprintf("%.2f", r.Head), fmt.Sprintf("%.2f", r.Pressure), fmt.Sprintf("%.2f", r.Demand), isolated}
	}
	return rows
}

func linkRows(st *results.Step) []table.Row {
	ids := results.SortedIDs(st.Links)
	rows := make([]table.Row, len(ids))
	for i, id := range ids {
		r := st.Links[id]
		rows[i] = table.Row{
			id, fmt.Sprintf("%.2f", r.Flow), fmt.Sprintf("%.2f", r.Velocity),
			fmt.Sprintf("%.3f", r.HeadLoss), r.Status.String(), fmt.Sprintf("%g", r.Setting),
		}
	}
	return rows
}

func controlRows(sim *results.Simulation) []table.Row {
	rows := make([]table.Row, len(sim.ControlLog))
	for i, e := range sim.ControlLog {
		rows[i] = table.Row{hhmm(e.Time.Seconds()), e.Link, e.Status.String(), fmt.Sprintf("%g", e.Setting), e.Reason}
	}
	return rows
}

func hhmm(seconds float64) string {
	s := int64(seconds)
	return fmt.Sprintf("%d:%02d", s/3600, (s%3600)/60)
}
