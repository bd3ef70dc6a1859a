package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorSolved  = lipgloss.Color("#2ECC71")
	colorPending = lipgloss.Color("#F4D03F")
	colorMuted   = lipgloss.Color("#7F8C8D")
	colorAlert   = lipgloss.Color("#E74C3C")
)

// styles are bound to one writer so colour is only emitted to terminals.
type styles struct {
	Title   lipgloss.Style
	Solved  lipgloss.Style
	Pending lipgloss.Style
	Muted   lipgloss.Style
	Alert   lipgloss.Style
	Label   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(colorAccent),
		Solved:  r.NewStyle().Bold(true).Foreground(colorSolved),
		Pending: r.NewStyle().Foreground(colorPending),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Alert:   r.NewStyle().Bold(true).Foreground(colorAlert),
		Label:   r.NewStyle().Width(20),
	}
}
