// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the interface.
type Theme struct {
	Header      lipgloss.Style
	HeaderMeta  lipgloss.Style
	UserLabel   lipgloss.Style
	AssistLabel lipgloss.Style
	BranchHead  lipgloss.Style
	BranchBody  lipgloss.Style
	Streaming   lipgloss.Style
	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	ListItem    lipgloss.Style
	ListActive  lipgloss.Style
	ListMeta    lipgloss.Style
	Faint       lipgloss.Style
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		HeaderMeta:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		UserLabel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		AssistLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		BranchHead:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("178")),
		BranchBody:  lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("252")),
		Streaming:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		InputPrompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		StatusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		StatusError: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		ListItem:    lipgloss.NewStyle().PaddingLeft(2),
		ListActive:  lipgloss.NewStyle().PaddingLeft(0).Bold(true).Foreground(lipgloss.Color("212")),
		ListMeta:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		Faint:       lipgloss.NewStyle().Faint(true),
	}
}

// LightTheme returns the light theme.
func LightTheme() Theme {
	return Theme{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("53")),
		HeaderMeta:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		UserLabel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("26")),
		AssistLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("90")),
		BranchHead:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("130")),
		BranchBody:  lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("236")),
		Streaming:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		InputPrompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("26")),
		StatusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		StatusError: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("124")),
		ListItem:    lipgloss.NewStyle().PaddingLeft(2),
		ListActive:  lipgloss.NewStyle().PaddingLeft(0).Bold(true).Foreground(lipgloss.Color("53")),
		ListMeta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Faint:       lipgloss.NewStyle().Faint(true),
	}
}

// ThemeByName resolves a configured theme name, defaulting to dark.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme()
	}
	return DarkTheme()
}
