package tui

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	skyBlue     = lipgloss.Color("#A0C4FF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
	stripeBlue  = lipgloss.Color("#635BFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(stripeBlue).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Background(stripeBlue).
			Bold(true).
			Padding(0, 2)

	disabledButtonStyle = lipgloss.NewStyle().
				Foreground(mutedGray).
				Background(lipgloss.Color("#374151")).
				Padding(0, 2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 1).
			Width(56)

	infoStyle    = lipgloss.NewStyle().Foreground(skyBlue)
	successStyle = lipgloss.NewStyle().Foreground(mintGreen)
	errorStyle   = lipgloss.NewStyle().Foreground(salmonPink)

	promptStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)
)
