package tui

import "github.com/charmbracelet/lipgloss"

var (
	borderColor = lipgloss.Color("#444444")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)

	badgeOkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	badgeWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	badgeMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	logHeadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	logBodyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF6B6B")).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FF6B6B")).
				Padding(0, 1)

	tumorBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#FF6B6B")).
			Padding(0, 1)

	clearBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4CAF50")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#4CAF50")).
			Padding(0, 1)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0AEC0")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)
