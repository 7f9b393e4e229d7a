package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box drawing characters
const (
	TopLeft     = "╭"
	TopRight    = "╮"
	BottomLeft  = "╰"
	BottomRight = "╯"
	Horizontal  = "─"
	Vertical    = "│"
	LeftT       = "├"
	RightT      = "┤"
	TopT        = "┬"
	BottomT     = "┴"
	Cross       = "┼"
)

// Color palette
const (
	ColorBorder  = "240"
	ColorHeader  = "252"
	ColorID      = "214"
	ColorName    = "81"
	ColorIP      = "252"
	ColorOK      = "82"
	ColorPending = "214"
	ColorFailed  = "203"
	ColorMuted   = "240"
	ColorHint    = "245"
)

// Shared styles
var (
	BorderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBorder))
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorHeader))
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorName))
	IDStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorID))
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorName))
	IPStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorIP))
	OKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOK))
	PendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPending))
	FailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorFailed))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	HintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorHint))
)

// stateStyle picks a color for an EC2 lifecycle state or a teardown action.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "available", "active", "attached", "deleted", "released", "detached":
		return OKStyle
	case "pending", "deleting", "planned":
		return PendingStyle
	case "failed", "blackhole":
		return FailedStyle
	default:
		return MutedStyle
	}
}

// padRight pads a string to the specified display width using runewidth
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-sw)
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
