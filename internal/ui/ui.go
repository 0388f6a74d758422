// Package ui holds the terminal styles shared by the clinsync commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#6366F1")
	passColor   = lipgloss.Color("#10B981")
	warnColor   = lipgloss.Color("#F59E0B")
	failColor   = lipgloss.Color("#EF4444")
	mutedColor  = lipgloss.Color("#6B7280")

	accentStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(passColor)
	warnStyle   = lipgloss.NewStyle().Foreground(warnColor)
	failStyle   = lipgloss.NewStyle().Foreground(failColor).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderAccent styles highlighted text.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass styles success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles warnings.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles errors.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles section headings.
func RenderHeader(s string) string { return headerStyle.Render(s) }
