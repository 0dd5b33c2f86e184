// Package tui implements the interactive two-panel interface: a
// conversation pane alongside an activity pane showing the agent's tool
// calls and intermediate steps as they happen.
package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#1a2536"),
		Primary:    lipgloss.Color("#1d4ed8"),
		Accent:     lipgloss.Color("#047857"),
		Muted:      lipgloss.Color("#6b7280"),
		Border:     lipgloss.Color("#d1d5db"),
		IsDark:     false,
	}
}

func DarkTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#e5e7eb"),
		Primary:    lipgloss.Color("#60a5fa"),
		Accent:     lipgloss.Color("#34d399"),
		Muted:      lipgloss.Color("#9ca3af"),
		Border:     lipgloss.Color("#374151"),
		IsDark:     true,
	}
}

// DetectTheme picks a theme from the COLORFGBG hint, defaulting to dark.
func DetectTheme() Theme {
	colorTerm := os.Getenv("COLORFGBG")
	if colorTerm != "" {
		// Format is "foreground;background"; ANSI indexes 0-6 and 8 are
		// dark backgrounds.
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if bgIdx == 7 || (bgIdx >= 9 && bgIdx <= 15) {
					return LightTheme()
				}
			}
		}
	}
	return DarkTheme()
}

// Styles holds the styled components used across the interface.
type Styles struct {
	Theme Theme

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	Muted          lipgloss.Style
	Error          lipgloss.Style
	Warning        lipgloss.Style
	Spinner        lipgloss.Style

	InputBox      lipgloss.Style
	ActivityPane  lipgloss.Style
	ActivityTitle lipgloss.Style
	ToolCall      lipgloss.Style
	ToolResult    lipgloss.Style
	Footer        lipgloss.Style
}

// NewStyles creates a Styles instance with the given theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginTop(1),

		AssistantLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			MarginTop(1),

		UserText: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444")).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent).
			Padding(0, 1),

		ActivityPane: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(theme.Border).
			PaddingLeft(1),

		ActivityTitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		ToolCall: lipgloss.NewStyle().
			Foreground(theme.Primary),

		ToolResult: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),
	}
}

// DefaultStyles returns styles for the detected terminal theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
