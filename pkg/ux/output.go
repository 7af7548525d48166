// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the unitgen CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette - deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Code    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Code: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorTealPrimary).
		PaddingLeft(1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// Printer writes CLI output either styled (terminals) or as plain
// machine-readable lines (pipes, CI logs).
type Printer struct {
	w       io.Writer
	machine bool
}

// NewPrinter creates a Printer. machine=true disables styling.
func NewPrinter(w io.Writer, machine bool) *Printer {
	return &Printer{w: w, machine: machine}
}

// Stdout returns a Printer for os.Stdout that styles output only when
// stdout is a terminal.
func Stdout() *Printer {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return NewPrinter(os.Stdout, !tty)
}

// Machine reports whether styling is disabled.
func (p *Printer) Machine() bool { return p.machine }

// Title prints a styled title. Suppressed in machine mode.
func (p *Printer) Title(text string) {
	if p.machine {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.machine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Box prints content in a rounded box with a title.
func (p *Printer) Box(title, content string) {
	if p.machine {
		fmt.Fprintf(p.w, "%s:\n%s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// Code prints a block of source with a left rule.
func (p *Printer) Code(source string) {
	source = strings.TrimRight(source, "\n")
	if p.machine {
		fmt.Fprintln(p.w, source)
		return
	}
	fmt.Fprintln(p.w, Styles.Code.Render(source))
}

// FunctionResult prints the per-function outcome line of a generation run.
func (p *Printer) FunctionResult(name string, accepted, rejected, skipped int) {
	if p.machine {
		fmt.Fprintf(p.w, "FUNCTION\t%s\taccepted=%d\trejected=%d\tskipped=%d\n", name, accepted, rejected, skipped)
		return
	}
	fmt.Fprintln(p.w, functionLine(name, accepted, rejected, skipped))
}

func functionLine(name string, accepted, rejected, skipped int) string {
	icon := IconSuccess
	switch {
	case accepted == 0 && (rejected > 0 || skipped > 0):
		icon = IconError
	case rejected > 0 || skipped > 0:
		icon = IconWarning
	}
	return fmt.Sprintf("%s %s %s", icon.Render(), Styles.Bold.Render(name),
		Styles.Muted.Render(fmt.Sprintf("(%d accepted, %d rejected, %d skipped)", accepted, rejected, skipped)))
}

// Summary prints the totals line.
func (p *Printer) Summary(accepted, rejected, skipped int) {
	if p.machine {
		fmt.Fprintf(p.w, "SUMMARY: accepted=%d rejected=%d skipped=%d\n", accepted, rejected, skipped)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", accepted)), Styles.Muted.Render("accepted"),
		Styles.Error.Render(fmt.Sprintf("%d", rejected)), Styles.Muted.Render("rejected"),
		Styles.Warning.Render(fmt.Sprintf("%d", skipped)), Styles.Muted.Render("skipped"),
	)
}
