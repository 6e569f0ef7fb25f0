package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Adaptive colors for dark/light terminals
	colorPrimary   = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#5FD7FF"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#E4E4E4"}
	colorDim       = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent    = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorLink      = lipgloss.AdaptiveColor{Light: "#3C5BD6", Dark: "#6C8EFF"}
	colorGreen     = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorYellow    = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#F1C40F"}
	colorRed       = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}

	separatorStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	indexStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	linkStyle = lipgloss.NewStyle().
			Foreground(colorLink)

	relatedStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	ownTagStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	sharedTagStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	quotaStyles = [...]lipgloss.Style{
		lipgloss.NewStyle().Foreground(colorRed),
		lipgloss.NewStyle().Foreground(colorYellow),
		lipgloss.NewStyle().Foreground(colorGreen),
	}
)
