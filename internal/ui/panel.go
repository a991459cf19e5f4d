// Package ui holds the lipgloss styling shared by the CLI and the TUI.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders a bar with percentage, e.g. "██░░░  40%".
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Panel frames lines with the theme's border.
func (t Theme) Panel(lines []string) string {
	return t.Frame(strings.Join(lines, "\n"))
}

// Frame draws the theme border around already-joined content.
func (t Theme) Frame(content string) string {
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(content)
}

// Printer writes status lines in the theme's colors.
type Printer struct {
	Theme  Theme
	Out    io.Writer
	ErrOut io.Writer
}

func (p Printer) OK(msg string) {
	fmt.Fprintln(p.Out, p.Theme.Success.Render(p.Theme.SymDone+" "+msg))
}

func (p Printer) Fail(msg string) {
	fmt.Fprintln(p.ErrOut, p.Theme.Error.Render("✖ "+msg))
}

// Hint prints a muted line to ErrOut.
func (p Printer) Hint(msg string) {
	fmt.Fprintln(p.ErrOut, p.Theme.Muted.Render(msg))
}

// Print writes s followed by a newline to Out.
func (p Printer) Print(s string) {
	fmt.Fprintln(p.Out, s)
}
