// SPDX-License-Identifier: MPL-2.0

package console

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Color palette shared by reporter lines and log level labels.
var (
	ColorSuccess  = lipgloss.Color("#10B981")
	ColorWarning  = lipgloss.Color("#F59E0B")
	ColorError    = lipgloss.Color("#EF4444")
	ColorInfo     = lipgloss.Color("#3B82F6")
	ColorProgress = lipgloss.Color("#06B6D4")
	ColorMuted    = lipgloss.Color("#6B7280")
)

var (
	successStyle  = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(ColorProgress)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
)

// levelStyles returns charmbracelet/log styles using the palette above.
func levelStyles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().SetString("INFO").Bold(true).Foreground(ColorInfo)
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().SetString("WARN").Bold(true).Foreground(ColorWarning)
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().SetString("ERROR").Bold(true).Foreground(ColorError)
	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().SetString("DEBUG").Bold(true).Foreground(ColorMuted)
	styles.Prefix = mutedStyle
	return styles
}
