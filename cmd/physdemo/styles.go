package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666688")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)
)

type row struct {
	label string
	value any
}

// panel renders a titled block of label/value rows.
func panel(title string, rows ...row) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(r.label))
		b.WriteString(valueStyle.Render(fmt.Sprint(r.value)))
	}
	return panelStyle.Render(b.String())
}
