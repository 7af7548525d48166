// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// FunctionStartedMsg marks the function currently being generated.
type FunctionStartedMsg struct{ Name string }

// FunctionDoneMsg reports a finished function.
type FunctionDoneMsg struct {
	Name     string
	Accepted int
	Rejected int
	Skipped  int
}

// progressDoneMsg ends the program.
type progressDoneMsg struct{}

// ProgressModel is the bubbletea model behind Progress.
type ProgressModel struct {
	spinner     spinner.Model
	title       string
	current     string
	lines       []string
	finished    bool
	interrupted bool
	onInterrupt func()
}

// NewProgressModel creates the model. onInterrupt runs on ctrl+c.
func NewProgressModel(title string, onInterrupt func()) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = Styles.Title
	return ProgressModel{spinner: s, title: title, onInterrupt: onInterrupt}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			m.current = "cancelling"
		}
		return m, nil
	case FunctionStartedMsg:
		m.current = msg.Name
		return m, nil
	case FunctionDoneMsg:
		m.lines = append(m.lines, functionLine(msg.Name, msg.Accepted, msg.Rejected, msg.Skipped))
		m.current = ""
		return m, nil
	case progressDoneMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(Styles.Title.Render(m.title))
	b.WriteString("\n")
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if !m.finished && m.current != "" {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.current)
	}
	return b.String()
}

// Interrupted reports whether ctrl+c was pressed.
func (m ProgressModel) Interrupted() bool { return m.interrupted }

// Progress shows a spinner and per-function results while a session runs.
// It is safe to call its methods from the session goroutine.
type Progress struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// StartProgress runs the progress display on out until Stop is called.
func StartProgress(out io.Writer, title string, onInterrupt func()) *Progress {
	p := &Progress{
		program: tea.NewProgram(NewProgressModel(title, onInterrupt), tea.WithOutput(out)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// FunctionStarted shows name as in progress.
func (p *Progress) FunctionStarted(name string) {
	p.program.Send(FunctionStartedMsg{Name: name})
}

// Done reports a finished function.
func (p *Progress) Done(name string, accepted, rejected, skipped int) {
	p.program.Send(FunctionDoneMsg{Name: name, Accepted: accepted, Rejected: rejected, Skipped: skipped})
}

// Stop ends the display and waits for the final frame to be drawn.
func (p *Progress) Stop() {
	p.once.Do(func() {
		p.program.Send(progressDoneMsg{})
		<-p.done
	})
}
