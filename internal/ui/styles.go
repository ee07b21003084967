// Package ui holds the lipgloss styles shared by the run and interactive
// entry points.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func Warn(s string) string    { return warnStyle.Render(s) }
func Danger(s string) string  { return dangerStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }
func Header(s string) string  { return headerStyle.Render(s) }
