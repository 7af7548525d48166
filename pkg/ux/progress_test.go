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
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressModel_Lifecycle(t *testing.T) {
	var m tea.Model = NewProgressModel("Generating tests for Vault", nil)

	m, _ = m.Update(FunctionStartedMsg{Name: "deposit"})
	if !strings.Contains(m.View(), "deposit") {
		t.Errorf("view should show the running function: %q", m.View())
	}

	m, _ = m.Update(FunctionDoneMsg{Name: "deposit", Accepted: 2})
	view := m.View()
	if !strings.Contains(view, "2 accepted, 0 rejected, 0 skipped") {
		t.Errorf("view missing finished line: %q", view)
	}

	m, cmd := m.Update(progressDoneMsg{})
	if cmd == nil {
		t.Fatal("done message should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "Generating tests for Vault") {
		t.Error("title missing from final view")
	}
}

func TestProgressModel_CtrlCInterrupts(t *testing.T) {
	called := false
	var m tea.Model = NewProgressModel("x", func() { called = true })

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	if !called {
		t.Error("onInterrupt not called")
	}
	if !m.(ProgressModel).Interrupted() {
		t.Error("Interrupted() = false")
	}
}

func TestProgress_StopReturns(t *testing.T) {
	var buf bytes.Buffer
	p := tea.NewProgram(NewProgressModel("t", nil), tea.WithOutput(&buf), tea.WithInput(nil))
	prog := &Progress{program: p, done: make(chan struct{})}
	go func() {
		defer close(prog.done)
		_, _ = p.Run()
	}()

	prog.FunctionStarted("deposit")
	prog.Done("deposit", 1, 0, 0)

	stopped := make(chan struct{})
	go func() {
		prog.Stop()
		prog.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
