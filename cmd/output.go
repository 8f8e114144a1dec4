// cmd/output.go
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

func colorizePercent(p float64) string {
	s := fmt.Sprintf("%.1f%%", p)
	if p > 90.0 {
		return badColor.Sprint(s)
	}
	if p > 75.0 {
		return warnColor.Sprint(s)
	}
	return goodColor.Sprint(s)
}

func colorizePing(ms uint64) string {
	s := fmt.Sprintf("%d ms", ms)
	if ms > 250 {
		return badColor.Sprint(s)
	}
	if ms > 100 {
		return warnColor.Sprint(s)
	}
	return goodColor.Sprint(s)
}

// formatMB prints a megabyte count in the largest fitting unit.
func formatMB(mb uint64) string {
	if mb < 1024 {
		return fmt.Sprintf("%d MB", mb)
	}
	return fmt.Sprintf("%.1f GB", float64(mb)/1024)
}

func formatUptime(seconds uint64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// stdoutIsTerminal reports whether stdout is an interactive terminal with
// color enabled.
func stdoutIsTerminal() bool {
	return !color.NoColor && term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalWidth returns the stdout width, or fallback when it is unknown.
func terminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
