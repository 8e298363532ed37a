package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console prints each frame as a small colored panel, one after another.
// It is the desktop stand-in for the LED matrix.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	colors [3]string
	panel  lipgloss.Style
	rows   [3]lipgloss.Style
	footer lipgloss.Style
}

// NewConsole creates a console renderer writing to out.
func NewConsole(out io.Writer, colors [3]string) *Console {
	c := &Console{
		out:    out,
		colors: colors,
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(22),
		footer: lipgloss.NewStyle().Faint(true),
	}
	for i, col := range colors {
		c.rows[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(col)).Bold(i == 0)
	}
	return c
}

// Render prints the frame for u.
func (c *Console) Render(u Update) {
	frame := Compose(u, c.colors)

	lines := make([]string, 0, 3)
	for i, row := range frame.Rows {
		lines = append(lines, c.rows[i].Render(row))
	}

	footer := fmt.Sprintf("%s %s", u.Mode, u.GeneratedAt.Format("15:04:05"))
	if frame.Stale {
		footer += " (stale)"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.panel.Render(strings.Join(lines, "\n")))
	fmt.Fprintln(c.out, c.footer.Render(footer))
}
