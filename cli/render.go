package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NextMind-AI/repstats/execution"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(24)
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderState(state execution.State) string {
	switch state {
	case execution.StateOnline:
		return onlineStyle.Render(string(state))
	case execution.StateError:
		return errorStyle.Render(string(state))
	default:
		return offlineStyle.Render(string(state))
	}
}

type field struct {
	label string
	value string
}

func renderFields(w io.Writer, title string, fields []field) {
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, f := range fields {
		fmt.Fprintln(w, labelStyle.Render(f.label)+f.value)
	}
}

func formatLatency(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + " min"
}
