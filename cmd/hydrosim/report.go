package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00"))
)

// unitLabels names flow, head and pressure units for a flow unit
func unitLabels(u units.FlowUnits) (flow, head, pressure string) {
	if u.System() == units.SI {
		return string(u), "m", "m"
	}
	return string(u), "ft", "psi"
}

func statusText(s hydraulics.Status) string {
	switch s {
	case hydraulics.Converged:
		return okStyle.Render(s.String())
	case hydraulics.Unbalanced:
		return warnStyle.Render(s.String())
	}
	return errorStyle.Render(s.String())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderReport(net *network.Network, sim *results.Simulation, resilience []float64) string {
	var s strings.Builder
	name := sim.Network
	if name == "" {
		name = "network"
	}
	s.WriteString(titleStyle.Render("Hydraulic report: " + name))
	s.WriteString("\n")

	summary := fmt.Sprintf("Run:         %s\nFingerprint: %.16s\nNodes:       %d\nLinks:       %d\nSteps:       %d\nUnbalanced:  %d",
		sim.RunID, sim.Fingerprint, net.NumNodes(), net.NumLinks(), len(sim.Steps), sim.Unbalanced())
	s.WriteString(boxStyle.Render(summary))
	s.WriteString("\n")

	steps := newTable("Time", "Status", "Trials", "Rel. error", "Resilience")
	for i, st := range sim.Steps {
		idx := "-"
		if i < len(resilience) {
			idx = fmt.Sprintf("%.3f", resilience[i])
		}
		steps.Row(clock(st), statusText(st.Status), fmt.Sprint(st.Trials), fmt.Sprintf("%.2e", st.RelativeError), idx)
	}
	s.WriteString(steps.String())
	s.WriteString("\n")

	last := sim.Last()
	if last == nil {
		return s.String()
	}
	flow, head, pressure := unitLabels(sim.Units)
	s.WriteString(titleStyle.Render("Nodes at " + clock(last)))
	s.WriteString("\n")
	nodes := newTable("Node", "Kind", "Head ("+head+")", "Pressure ("+pressure+")", "Demand ("+flow+")")
	for _, n := range net.Nodes() {
		r, ok := last.Nodes[n.ID]
		if !ok {
			continue
		}
		id := n.ID
		if r.Isolated {
			id = warnStyle.Render(id + " (isolated)")
		}
		nodes.Row(id, n.Kind.String(), fmt.Sprintf("%.2f", r.Head), fmt.Sprintf("%.2f", r.Pressure), fmt.Sprintf("%.2f", r.Demand))
	}
	s.WriteString(nodes.String())
	s.WriteString("\n")

	s.WriteString(titleStyle.Render("Links at " + clock(last)))
	s.WriteString("\n")
	links := newTable("Link", "Kind", "Flow ("+flow+")", "Velocity", "Headloss ("+head+")", "Status")
	for _, l := range net.Links() {
		r, ok := last.Links[l.ID]
		if !ok {
			continue
		}
		links.Row(l.ID, l.Kind.String(), fmt.Sprintf("%.2f", r.Flow), fmt.Sprintf("%.2f", r.Velocity), fmt.Sprintf("%.3f", r.HeadLoss), r.Status.String())
	}
	s.WriteString(links.String())

	if len(sim.ControlLog) > 0 {
		s.WriteString("\n")
		s.WriteString(titleStyle.Render("Status changes"))
		s.WriteString("\n")
		log := newTable("Time", "Link", "Status", "Reason")
		for _, e := range sim.ControlLog {
			log.Row(hhmm(e.Time.Seconds()), e.Link, e.Status.String(), e.Reason)
		}
		s.WriteString(log.String())
	}
	for _, st := range sim.Steps {
		for _, w := range st.Warnings {
			s.WriteString("\n")
			s.WriteString(warnStyle.Render(clock(st) + "  " + w))
		}
	}
	return s.String()
}

func renderBatch(net *network.Network, out []simulation.BatchResult) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("Demand sweep: %d scenarios, %d nodes", len(out), net.NumNodes())))
	s.WriteString("\n")
	t := newTable("Scenario", "Steps", "Unbalanced", "Min pressure", "At node", "Result")
	for _, r := range out {
		steps, unbalanced, minP, at := "-", "-", "-", "-"
		if r.Simulation != nil {
			steps = fmt.Sprint(len(r.Simulation.Steps))
			unbalanced = fmt.Sprint(r.Simulation.Unbalanced())
			if id, p, ok := minPressure(net, r.Simulation); ok {
				minP, at = fmt.Sprintf("%.2f", p), id
			}
		}
		result := okStyle.Render("ok")
		if r.Err != nil {
			result = errorStyle.Render(r.Err.Error())
		}
		t.Row(r.Scenario, steps, unbalanced, minP, at, result)
	}
	s.WriteString(t.String())
	return s.String()
}

// minPressure finds the lowest junction pressure over every step
func minPressure(net *network.Network, sim *results.Simulation) (string, float64, bool) {
	var at string
	var low float64
	found := false
	for _, st := range sim.Steps {
		for _, j := range net.Junctions() {
			r, ok := st.Nodes[j.ID]
			if !ok || r.Isolated {
				continue
			}
			if !found || r.Pressure < low {
				at, low, found = j.ID, r.Pressure, true
			}
		}
	}
	return at, low, found
}

func clock(st *results.Step) string { return hhmm(st.Time.Seconds()) }

func hhmm(seconds float64) string {
	s := int64(seconds)
	return fmt.Sprintf("%d:%02d", s/3600, (s%3600)/60)
}
