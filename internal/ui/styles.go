package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed      = lipgloss.Color("#EF4444")
	ColorGreen    = lipgloss.Color("#22C55E")
	ColorYellow   = lipgloss.Color("#EAB308")
	ColorCyan     = lipgloss.Color("#06B6D4")
	ColorGray     = lipgloss.Color("#666666")
	ColorDimGray  = lipgloss.Color("#444444")
	ColorWhite    = lipgloss.Color("#FFFFFF")
	ColorWave     = lipgloss.Color("#9CA3AF")
	ColorProgress = lipgloss.Color("#F9FAFB")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	TimerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Padding(0, 1)

	RecordButtonStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWhite).
				Background(ColorRed).
				Padding(0, 2)

	StopButtonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorDimGray).
			Padding(0, 2)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimGray).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	WaveStyle = lipgloss.NewStyle().
			Foreground(ColorWave)

	WaveProgressStyle = lipgloss.NewStyle().
				Foreground(ColorProgress)

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true).
			Underline(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
