package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// ask prints label and reads one line. EOF yields an empty answer.
func (a *App) ask(label string) string {
	fmt.Fprint(a.out, promptStyle.Render(label))
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// confirm asks a yes/no question unless --yes was given.
func (a *App) confirm(question string) bool {
	if a.Yes {
		return true
	}
	switch strings.ToLower(a.ask(question + " [y/N] ")) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *App) success(format string, args ...any) {
	fmt.Fprintln(a.out, okStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) warn(format string, args ...any) {
	fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(a.out, mutedStyle.Render("(none)"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(a.out, t.Render())
}
