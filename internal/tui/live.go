// Package tui is a terminal live view over a single convergence run. It is
// a consumer of the core's snapshots, not part of the engine.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/engine"
	"github.com/tlazar/geoflux/internal/forcing"
)

const historyCapacity = 240

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)

	phaseStyles = map[energy.PhaseLabel]lipgloss.Style{
		energy.Stable:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		energy.Stress:        lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		energy.Coupling:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		energy.Amplification: lipgloss.NewStyle().Foreground(lipgloss.Color("202")).Bold(true),
		energy.Cascade:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

type tickMsg time.Time

// Model steps a convergence engine one tick at a time and renders the
// trajectory as it grows.
type Model struct {
	eng     *engine.Engine
	src     forcing.Source
	state   *energy.State
	initial *energy.State
	reseed  func() forcing.Source

	steps    int
	maxSteps int
	running  bool
	failed   error

	phase   energy.PhaseLabel
	ecrit   func(int) float64
	runaway func(total, crit float64) float64
	history []float64
	fps     int
}

// New builds a live view. The reseed factory restarts the forcing source
// when the user resets the run.
func New(eng *engine.Engine, initial *energy.State, maxSteps, fps int, reseed func() forcing.Source, ecrit func(int) float64, runaway func(total, crit float64) float64) Model {
	if fps <= 0 {
		fps = 30
	}
	seeded := initial.Clone()
	eng.SeedZones(seeded)
	return Model{
		eng:      eng,
		src:      reseed(),
		state:    seeded.Clone(),
		initial:  seeded,
		reseed:   reseed,
		maxSteps: maxSteps,
		running:  true,
		phase:    eng.Classifier().Classify(initial.Total()),
		ecrit:    ecrit,
		runaway:  runaway,
		history:  make([]float64, 0, historyCapacity),
		fps:      fps,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.state = m.initial.Clone()
			m.src = m.reseed()
			m.steps = 0
			m.failed = nil
			m.phase = m.eng.Classifier().Classify(m.state.Total())
			m.history = m.history[:0]
			m.running = true
		}
	case tickMsg:
		if m.running && m.failed == nil && m.steps < m.maxSteps {
			sample := m.src.Next()
			if err := m.eng.Step(m.state, sample); err != nil {
				m.failed = err
				m.running = false
			} else {
				m.steps++
				m.phase = m.eng.Classifier().Next(m.phase, m.state.Total())
				m.history = append(m.history, m.state.Total())
				if len(m.history) > historyCapacity {
					m.history = m.history[1:]
				}
			}
		}
		return m, tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("geoflux live"))
	b.WriteString("\n")

	total := m.state.Total()
	crit := m.ecrit(m.state.Step)

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("step", fmt.Sprintf("%d / %d", m.steps, m.maxSteps))
	row("total energy", fmt.Sprintf("%.2f", total))
	b.WriteString(labelStyle.Render("phase"))
	b.WriteString(phaseStyles[m.phase].Render(m.phase.String()))
	b.WriteString("\n")
	row("runaway", fmt.Sprintf("%.5f", m.runaway(total, crit)))

	for _, sub := range m.state.Order() {
		row(string(sub), fmt.Sprintf("%.2f", m.state.Get(sub)))
	}
	for z := energy.Polar; z < energy.NumZones; z++ {
		row("zone "+z.String(), fmt.Sprintf("%.2f", m.state.Zones[z]))
	}

	if len(m.history) >= 2 {
		graph := asciigraph.Plot(m.history, asciigraph.Height(10), asciigraph.Width(70))
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if m.failed != nil {
		b.WriteString(phaseStyles[energy.Cascade].Render("run invalid: " + m.failed.Error()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space pause · r reset · q quit"))
	b.WriteString("\n")
	return b.String()
}
