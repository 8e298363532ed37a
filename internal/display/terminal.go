package display

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightportal/pkg/runway"
)

// Terminal simulates the LED matrix in a full-screen terminal UI and lists
// the approach traffic beneath it.
type Terminal struct {
	program *tea.Program
}

// NewTerminal creates the terminal UI. It runs until ctx is done or the
// user presses q.
func NewTerminal(ctx context.Context, colors [3]string, opts ...tea.ProgramOption) *Terminal {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	return &Terminal{program: tea.NewProgram(newTerminalModel(colors), opts...)}
}

// Render sends u to the UI. It blocks until the UI loop accepts it, so wrap
// the terminal in Async.
func (t *Terminal) Render(u Update) {
	t.program.Send(updateMsg(u))
}

// Run blocks until the UI exits. Cancellation of the construction context
// is a clean exit.
func (t *Terminal) Run() error {
	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

type updateMsg Update

type terminalModel struct {
	colors  [3]string
	update  Update
	frame   Frame
	hasData bool
	width   int
}

func newTerminalModel(colors [3]string) terminalModel {
	return terminalModel{colors: colors}
}

func (m terminalModel) Init() tea.Cmd {
	return nil
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case updateMsg:
		m.update = Update(msg)
		m.frame = Compose(m.update, m.colors)
		m.hasData = true
	}
	return m, nil
}

func (m terminalModel) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	b.WriteString(titleStyle.Render("FlightPortal"))
	b.WriteString("\n\n")

	if !m.hasData {
		b.WriteString(helpStyle.Render("  Determining runway configuration..."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q: quit"))
		return b.String()
	}

	b.WriteString(m.renderMatrix())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.update.Mode == runway.ModeFlightTracking {
		b.WriteString(m.renderTraffic())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}

// renderMatrix draws the three rows inside a black panel sized like the
// 64x32 matrix at one cell per two pixels.
func (m terminalModel) renderMatrix() string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(lipgloss.Color("240")).
		Background(lipgloss.Color("0")).
		Width(32).
		Padding(0, 1)

	rows := make([]string, 0, 3)
	for i, text := range m.frame.Rows {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.frame.Colors[i])).Background(lipgloss.Color("0"))
		rows = append(rows, style.Render(text))
	}
	return panel.Render(strings.Join(rows, "\n"))
}

func (m terminalModel) renderStatus() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	staleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	var b strings.Builder
	b.WriteString(labelStyle.Render("Mode: "))
	b.WriteString(valueStyle.Render(m.update.Mode.String()))
	if m.update.Runway != nil {
		b.WriteString(labelStyle.Render("  ARR: "))
		b.WriteString(valueStyle.Render(orUnknown(m.update.Runway.ArrivalRunway)))
		b.WriteString(labelStyle.Render("  DEP: "))
		b.WriteString(valueStyle.Render(orUnknown(m.update.Runway.DepartureRunway)))
	}
	if !m.update.FetchedAt.IsZero() {
		b.WriteString(labelStyle.Render("  Data: "))
		b.WriteString(valueStyle.Render(m.update.FetchedAt.Local().Format("15:04:05")))
	}
	if m.update.Stale {
		b.WriteString(staleStyle.Render("  STALE"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m terminalModel) renderTraffic() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("Approach traffic"))
	b.WriteString("\n")
	if len(m.update.Flights) == 0 {
		b.WriteString(dimStyle.Render("  No aircraft in the corridor"))
		b.WriteString("\n")
		return b.String()
	}
	for i, f := range m.update.Flights {
		line := fmt.Sprintf("  %-8s %-5s %5dft %3dkt  %s", f.Label(), f.AircraftType, f.AltitudeFt, f.SpeedKt, f.Route())
		if i == 0 {
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
