package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type colorMode string

const (
	colorAuto colorMode = "auto"
	colorOn   colorMode = "on"
	colorOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorAuto, nil
	case "on":
		return colorOn, nil
	case "off":
		return colorOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

// setupColor applies --color to fatih/color, which every renderer here consults.
func setupColor(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := readColorMode(value)
	if err != nil {
		return err
	}
	switch mode {
	case colorOn:
		color.NoColor = false
	case colorOff:
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout) || os.Getenv("NO_COLOR") != ""
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorColor  = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen, color.Bold)
)

func header(s string) string {
	if color.NoColor {
		return s
	}
	return headerStyle.Render(s)
}

func dim(s string) string {
	if color.NoColor {
		return s
	}
	return dimStyle.Render(s)
}
