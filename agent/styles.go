package agent

import "github.com/charmbracelet/lipgloss"

type styles struct {
	line lipgloss.Style
	echo lipgloss.Style
	info lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		line: lipgloss.NewStyle(),
		echo: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		info: lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
	}
}
