package logging

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrameError(t *testing.T) {
	if NewFrameError("scan.frame", "", 0, 5, nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	err := NewFrameError("scan.frame", "abc", 1, 45, io.ErrUnexpectedEOF)
	if got, want := err.Error(), "scan.frame frame=45 engine=1 session_id=abc: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should see the wrapped error")
	}

	var wrapped error = fmt.Errorf("engine: %w", err)
	var frameErr *FrameError
	if !errors.As(wrapped, &frameErr) || frameErr.Frame != 45 {
		t.Errorf("errors.As failed: %v", wrapped)
	}

	plain := NewFrameError("scan.frame", "", 0, 10, io.EOF)
	if got, want := plain.Error(), "scan.frame frame=10 engine=0: EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFrameErrorFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	err := NewFrameError("scan.frame", "abc", 2, 30, io.ErrUnexpectedEOF)
	zap.New(core).Warn("frame skipped", err.Fields()...)

	fields := logs.All()[0].ContextMap()
	if fields["engine"] != int64(2) || fields["frame"] != int64(30) {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["error"] != "unexpected EOF" {
		t.Errorf("error field = %v", fields["error"])
	}
}

func TestWithOperation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := WithOperation(zap.New(core), "run", "sess-1")
	logger.Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "run" || fields["session_id"] != "sess-1" {
		t.Errorf("unexpected fields: %v", fields)
	}

	core, logs = observer.New(zapcore.InfoLevel)
	WithOperation(zap.New(core), "scan", "").Info("hello")
	if _, ok := logs.All()[0].ContextMap()["session_id"]; ok {
		t.Error("empty session id should not be logged")
	}
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		logger, err := NewLogger(verbose)
		if err != nil {
			t.Fatalf("NewLogger(%v) failed: %v", verbose, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != verbose {
			t.Errorf("NewLogger(%v): debug enabled = %v", verbose, got)
		}
		if got := logger.Core().Enabled(zapcore.InfoLevel); got != verbose {
			t.Errorf("NewLogger(%v): info enabled = %v", verbose, got)
		}
		if !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Errorf("NewLogger(%v): warn must always be enabled", verbose)
		}
	}
}
