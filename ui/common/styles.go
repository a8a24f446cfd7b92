package common

import "github.com/charmbracelet/lipgloss"

const (
	COLOR_GREY      = "241"
	COLOR_DARK_GREY = "238"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
	COLOR_BLUE      = "39"
	COLOR_GREEN     = "42"
	COLOR_RED       = "196"
	COLOR_PURPLE    = "#7D56F4"
)

var (
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Padding(0, 2)
	CaptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_MAGENTA)).Padding(2)
	StatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREEN))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_RED))
)

func DefaultWindowWidth(width int) int {
	return width - 10
}

func DefaultWindowHeight(heigth int) int {
	return heigth - 10
}
