// Package styles contains Lip Gloss style definitions and theme selection.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
	"github.com/zjrosen/agentdesk/internal/config"
)

var (
	// Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#CCCCCC"}
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#8C959F", Dark: "#696969"}
	TextDescriptionColor = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#999999"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#54A0FF"}

	// Session status
	StatusIdleColor    = lipgloss.AdaptiveColor{Light: "#8C959F", Dark: "#BBBBBB"}
	StatusRunningColor = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#54A0FF"}
	StatusStoppedColor = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF8787"}

	// Transcript turns
	UserTurnColor  = lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#CBA6F7"}
	AgentTurnColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#73F59F"}

	ToastBorderSuccessColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#73F59F"}
	ToastBorderErrorColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF8787"}
	ToastBorderInfoColor    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#54A0FF"}
	ToastBorderWarnColor    = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#FECA57"}

	OverlayTitleColor  = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#FFFFFF"}
	OverlayBorderColor = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#8C8C8C"}

	SelectionIndicatorColor = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#FFFFFF"}
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(SelectionIndicatorColor)

	ButtonTextColor       = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ButtonPrimaryBgColor  = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#1A5276"}
	ButtonDangerBgColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#922B21"}
	ButtonDisabledBgColor = lipgloss.AdaptiveColor{Light: "#8C959F", Dark: "#2D2D2D"}

	baseButtonStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(ButtonTextColor)

	PrimaryButtonStyle  = baseButtonStyle.Background(ButtonPrimaryBgColor)
	DangerButtonStyle   = baseButtonStyle.Background(ButtonDangerBgColor)
	DisabledButtonStyle = baseButtonStyle.Background(ButtonDisabledBgColor).Bold(false)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	MutedStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
)

// StatusColor returns the color used for a session status badge.
func StatusColor(s event.Status) lipgloss.TerminalColor {
	switch s {
	case event.StatusRunning:
		return StatusRunningColor
	case event.StatusStopped:
		return StatusStoppedColor
	case event.StatusErrored:
		return StatusErrorColor
	default:
		return StatusIdleColor
	}
}

// DetectDark asks the terminal for its background color.
func DetectDark() bool {
	return termenv.HasDarkBackground()
}

// Resolve maps a configured theme to "light" or "dark". detectDark is only
// consulted for "system" (and unknown values).
func Resolve(theme string, detectDark func() bool) string {
	switch theme {
	case config.ThemeLight:
		return config.ThemeLight
	case config.ThemeDark:
		return config.ThemeDark
	}
	if detectDark != nil && !detectDark() {
		return config.ThemeLight
	}
	return config.ThemeDark
}

// Apply resolves theme and points every adaptive color at the result.
// Returns the resolved mode.
func Apply(theme string, detectDark func() bool) string {
	mode := Resolve(theme, detectDark)
	lipgloss.SetHasDarkBackground(mode == config.ThemeDark)
	return mode
}

// MarkdownStyle picks the glamour style: an explicit override wins,
// otherwise the resolved mode.
func MarkdownStyle(override, mode string) string {
	if override != "" {
		return override
	}
	if mode == config.ThemeLight {
		return "light"
	}
	return "dark"
}
