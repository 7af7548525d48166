// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{" warn ", LevelWarn, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "unitgen", Output: &buf})

	logger.Info("loop accepted", "contract", "Vault")

	out := buf.String()
	for _, want := range []string{"loop accepted", "contract=Vault", "service=unitgen"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})

	logger.Info("hello", "k", 1)

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug-line")
	logger.Info("info-line")
	logger.Warn("warn-line")
	logger.Error("error-line")

	out := buf.String()
	if strings.Contains(out, "debug-line") || strings.Contains(out, "info-line") {
		t.Errorf("records below Warn leaked: %q", out)
	}
	if !strings.Contains(out, "warn-line") || !strings.Contains(out, "error-line") {
		t.Errorf("records at or above Warn missing: %q", out)
	}
}

func TestNew_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})

	logger.Error("should not appear")

	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Quiet: true, LogDir: dir, Service: "testsvc"})
	logger.Info("to file", "n", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("log file content = %q", string(data))
	}
}

func TestNew_WithLogDir_DefaultServiceName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Quiet: true, LogDir: dir})
	logger.Info("x")
	_ = logger.Close()

	name := "unitgen_" + time.Now().Format("2006-01-02") + ".log"
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("expected %s to exist: %v", name, err)
	}
}

func TestNew_WithLogDir_InvalidPathFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "sub"), Output: &buf})

	logger.Info("still logs")

	if !strings.Contains(buf.String(), "still logs") {
		t.Errorf("console output missing after file failure: %q", buf.String())
	}
	if logger.file != nil {
		t.Error("file handle should be nil when the directory cannot be created")
	}
}

func TestLogger_Slog_ReachesExporter(t *testing.T) {
	exp := NewBufferedExporter(0)
	logger := New(Config{Quiet: true, Service: "unitgen", Exporter: exp})

	logger.Slog().With("session_id", "abc").WithGroup("loop").Warn("exhausted", "attempts", 3)

	entries := exp.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "exhausted" || e.Level != LevelWarn || e.Service != "unitgen" {
		t.Errorf("entry = %+v", e)
	}
	if e.Attrs["session_id"] != "abc" {
		t.Errorf("session_id attr = %v", e.Attrs["session_id"])
	}
	if e.Attrs["loop.attempts"] != int64(3) {
		t.Errorf("loop.attempts attr = %#v", e.Attrs["loop.attempts"])
	}
}

func TestLogger_ExporterRespectsLevel(t *testing.T) {
	exp := NewBufferedExporter(0)
	logger := New(Config{Quiet: true, Level: LevelInfo, Exporter: exp})

	logger.Debug("hidden")
	logger.Info("shown")

	entries := exp.Entries()
	if len(entries) != 1 || entries[0].Message != "shown" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	child := logger.With("contract", "Token")
	child.Info("child record")

	if !strings.Contains(buf.String(), "contract=Token") {
		t.Errorf("child attrs missing: %q", buf.String())
	}
	if child.Slog() == logger.Slog() {
		t.Error("With should return a distinct slog logger")
	}
}

type failingExporter struct {
	flushErr error
}

func (f *failingExporter) Export(ctx context.Context, entry LogEntry) error { return nil }
func (f *failingExporter) Flush(ctx context.Context) error                  { return f.flushErr }
func (f *failingExporter) Close() error                                     { return nil }

func TestLogger_Close_ExporterError(t *testing.T) {
	want := errors.New("flush failed")
	logger := New(Config{Quiet: true, Exporter: &failingExporter{flushErr: want}})

	err := logger.Close()
	if !errors.Is(err, want) {
		t.Errorf("Close() error = %v, want wrapping %v", err, want)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	exp := NewBufferedExporter(0)
	logger := New(Config{Quiet: true, Exporter: exp})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent", "n", n)
		}(i)
	}
	wg.Wait()

	if got := len(exp.Entries()); got != 20 {
		t.Errorf("got %d entries, want 20", got)
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestBufferedExporter_Limit(t *testing.T) {
	exp := NewBufferedExporter(2)
	ctx := context.Background()
	for _, msg := range []string{"a", "b", "c"} {
		_ = exp.Export(ctx, LogEntry{Message: msg})
	}

	entries := exp.Entries()
	if len(entries) != 2 || entries[0].Message != "b" || entries[1].Message != "c" {
		t.Errorf("entries = %+v, want [b c]", entries)
	}
}

func TestLogEntry_JSONUsesLevelNames(t *testing.T) {
	exp := NewBufferedExporter(0)
	logger := New(Config{Quiet: true, Service: "unitgen", Exporter: exp})
	logger.Warn("lineage skipped", "function", "deposit")

	data, err := json.Marshal(exp.Entries())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{`"level":"WARN"`, `"message":"lineage skipped"`, `"function":"deposit"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/.unitgen/logs"); got != filepath.Join(home, ".unitgen/logs") {
		t.Errorf("expandPath() = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(abs) = %q", got)
	}
}
