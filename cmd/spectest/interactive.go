package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-bridge/runner"
	"github.com/wippyai/wasm-bridge/script"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0C068"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// visibleOutcomes is how many recent steps the view lists.
const visibleOutcomes = 12

type interactiveModel struct {
	err      error
	runner   *runner.Runner
	cfg      *runner.Config
	script   *script.Script
	filename string
	progress progress.Model
	recent   []script.Outcome
	report   script.Report
	next     int
	paused   bool
	running  bool
}

func newInteractiveModel(filename string, s *script.Script, cfg *runner.Config) *interactiveModel {
	return &interactiveModel{
		cfg:      cfg,
		script:   s,
		filename: filename,
		progress: progress.New(progress.WithDefaultGradient()),
		report:   script.Report{Source: s.Source},
	}
}

type startedMsg struct {
	err    error
	runner *runner.Runner
}

type stepMsg struct {
	out script.Outcome
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.start
}

func (m *interactiveModel) start() tea.Msg {
	r, err := runner.New(context.Background(), m.cfg)
	return startedMsg{runner: r, err: err}
}

// stepCmd runs the next step. Only one step is in flight at a time.
func (m *interactiveModel) stepCmd() tea.Cmd {
	if m.running || m.done() {
		return nil
	}
	m.running = true
	step := m.script.Steps[m.next]
	r := m.runner
	return func() tea.Msg {
		return stepMsg{out: script.RunStep(context.Background(), r, step)}
	}
}

func (m *interactiveModel) done() bool {
	return m.next >= len(m.script.Steps)
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.runner != nil {
				m.runner.Close(context.Background())
			}
			return m, tea.Quit

		case " ", "p":
			m.paused = !m.paused
			if !m.paused {
				return m, m.stepCmd()
			}

		case "n", "enter":
			if m.paused {
				return m, m.stepCmd()
			}
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-4, 80)

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.runner = msg.runner
		return m, m.stepCmd()

	case stepMsg:
		m.running = false
		m.next++
		m.report.Add(msg.out)
		m.recent = append(m.recent, msg.out)
		if len(m.recent) > visibleOutcomes {
			m.recent = m.recent[len(m.recent)-visibleOutcomes:]
		}

		cmds := []tea.Cmd{m.progress.SetPercent(float64(m.next) / float64(max(len(m.script.Steps), 1)))}
		if !m.paused {
			cmds = append(cmds, m.stepCmd())
		}
		return m, tea.Batch(cmds...)

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.runner == nil {
		return "Starting engine..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Spectest"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.next, len(m.script.Steps)))

	for _, out := range m.recent {
		b.WriteString(formatOutcome(out))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(passStyle.Render(fmt.Sprintf("%d passed", m.report.Passed)))
	b.WriteString("  ")
	b.WriteString(errorStyle.Render(fmt.Sprintf("%d failed", m.report.Failed)))
	b.WriteString("  ")
	b.WriteString(skipStyle.Render(fmt.Sprintf("%d skipped", m.report.Skipped)))
	b.WriteString("\n\n")

	switch {
	case m.done():
		b.WriteString(helpStyle.Render("done • q quit"))
	case m.paused:
		b.WriteString(helpStyle.Render("paused • n step • space resume • q quit"))
	default:
		b.WriteString(helpStyle.Render("space pause • q quit"))
	}

	return b.String()
}

func formatOutcome(out script.Outcome) string {
	prefix := fmt.Sprintf("%5d %s ", out.Step.Line, kindStyle.Render(fmt.Sprintf("%-22s", out.Step.Kind)))
	switch {
	case out.Skipped:
		return prefix + skipStyle.Render("skip "+out.Step.Skip)
	case out.Failure != nil:
		return prefix + errorStyle.Render("FAIL "+out.Failure.Error())
	default:
		return prefix + passStyle.Render("ok")
	}
}

func runInteractive(filename string, s *script.Script, cfg *runner.Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, s, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
