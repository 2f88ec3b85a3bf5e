package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Federal gold for BundesFAQ branding.
const bundesGold = "#FFCC00"

// BundesFAQ ASCII art (filled block style).
var bannerArt = []string{
	"██████╗ ██╗   ██╗███╗   ██╗██████╗ ███████╗███████╗███████╗ █████╗  ██████╗ ",
	"██╔══██╗██║   ██║████╗  ██║██╔══██╗██╔════╝██╔════╝██╔════╝██╔══██╗██╔═══██╗",
	"██████╔╝██║   ██║██╔██╗ ██║██║  ██║█████╗  ███████╗█████╗  ███████║██║   ██║",
	"██╔══██╗██║   ██║██║╚██╗██║██║  ██║██╔══╝  ╚════██║██╔══╝  ██╔══██║██║▄▄ ██║",
	"██████╔╝╚██████╔╝██║ ╚████║██████╔╝███████╗███████║██║     ██║  ██║╚██████╔╝",
	"╚═════╝  ╚═════╝ ╚═╝  ╚═══╝╚═════╝ ╚══════╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚══▀▀═╝ ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Sources   lipgloss.Style // citation list under an answer
	Followup  lipgloss.Style // suggested follow-up questions
	Prompt    lipgloss.Style
	Separator lipgloss.Style // horizontal line separator
	StatusBar lipgloss.Style
	Health    lipgloss.Style // server status line under the banner
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(bundesGold)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Sources:   lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245")),
		Followup:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("117")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Health:    lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245")),
	}
}

// RenderBanner returns the ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range bannerArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask about Kindergeld, BAföG, tax returns and other federal services",
	"  • Answers cite the documents they are grounded in",
	"  • Press Ctrl+C to cancel, Ctrl+D to exit",
}

// RenderWelcomeTips returns styled welcome tips.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
