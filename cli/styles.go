package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styling for status lines on stderr.
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Bold(true).
			Padding(0, 2)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))
)

func header(format string, a ...any) {
	fmt.Fprintln(os.Stderr, headerStyle.Render(fmt.Sprintf(format, a...)))
}

func info(format string, a ...any) {
	fmt.Fprintln(os.Stderr, infoStyle.Render(fmt.Sprintf(format, a...)))
}

func success(format string, a ...any) {
	fmt.Fprintln(os.Stderr, successStyle.Render(fmt.Sprintf(format, a...)))
}

// fatal prints an error and exits.
func fatal(format string, a ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+fmt.Sprintf(format, a...)))
	os.Exit(1)
}
