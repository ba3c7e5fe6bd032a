package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	Header            lipgloss.Style
	UserMessage       lipgloss.Style
	UnselectedMessage lipgloss.Style
	SelectedMessage   lipgloss.Style
	FocusedMessage    lipgloss.Style
	ErrorMessage      lipgloss.Style
	Citation          lipgloss.Style
	Status            lipgloss.Style
	Rating            lipgloss.Style
}

type BorderColors struct {
	Unselected string
	Selected   string
	Focused    string
	Error      string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		Unselected: "#CCCCCC",
		Selected:   "#FFB6C1", // Light pink
		Focused:    "#FFFF99", // Light yellow
		Error:      "#D70000",
	}

	darkModeColors := BorderColors{
		Unselected: "#444444",
		Selected:   "#DD7090",
		Focused:    "#DDDD77",
		Error:      "#FF5F5F",
	}

	border := func(f func(BorderColors) string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: f(lightModeColors), Dark: f(darkModeColors)}
	}
	unselected := border(func(c BorderColors) string { return c.Unselected })

	return &Style{
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		UserMessage: lipgloss.NewStyle().Padding(0, 2).
			Foreground(lipgloss.AdaptiveColor{Light: "#1F5FAF", Dark: "#87AFFF"}),
		UnselectedMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(unselected),
		SelectedMessage: lipgloss.NewStyle().Border(lipgloss.ThickBorder()).
			Padding(0, 1).
			BorderForeground(border(func(c BorderColors) string { return c.Selected })),
		FocusedMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(border(func(c BorderColors) string { return c.Focused })),
		ErrorMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(border(func(c BorderColors) string { return c.Error })).
			Foreground(border(func(c BorderColors) string { return c.Error })),
		Citation: lipgloss.NewStyle().Faint(true).Padding(0, 2),
		Status:   lipgloss.NewStyle().Italic(true).Faint(true).Padding(0, 1),
		Rating:   lipgloss.NewStyle().Bold(true),
	}
}
