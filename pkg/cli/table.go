package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is implemented by results that have a tabular rendering.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Headers and borders
	Dim     lipgloss.Color // Secondary text
	OK      lipgloss.Color
	Warn    lipgloss.Color
	Fail    lipgloss.Color
}

// DefaultTheme is the default green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	OK:      lipgloss.Color("#3fb950"),
	Warn:    lipgloss.Color("#d29922"),
	Fail:    lipgloss.Color("#f85149"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Dim    lipgloss.Style
	OK     lipgloss.Style
	Warn   lipgloss.Style
	Fail   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		OK:     lipgloss.NewStyle().Foreground(t.OK),
		Warn:   lipgloss.NewStyle().Foreground(t.Warn),
		Fail:   lipgloss.NewStyle().Bold(true).Foreground(t.Fail),
	}
}

// DefaultStyles are derived from DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// Priority renders a threat priority label in its alert color.
func (s Styles) Priority(p string) string {
	switch strings.ToUpper(p) {
	case "CRITICAL":
		return s.Fail.Render(p)
	case "HIGH":
		return s.Warn.Bold(true).Render(p)
	case "MEDIUM":
		return s.Warn.Render(p)
	default:
		return s.Dim.Render(p)
	}
}

// RenderTable renders t with a rounded border.
func RenderTable(t Table, theme Theme) string {
	st := NewStyles(theme)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header
			}
			return st.Cell
		}).
		Headers(t.Header()...).
		Rows(t.Rows()...).
		String()
}

// KV is a two-column key/value table.
type KV [][2]string

// Header implements Table.
func (kv KV) Header() []string { return []string{"KEY", "VALUE"} }

// Rows implements Table.
func (kv KV) Rows() [][]string {
	rows := make([][]string, len(kv))
	for i, p := range kv {
		rows[i] = []string{p[0], p[1]}
	}
	return rows
}
