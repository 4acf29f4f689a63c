package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// FrameError is a failure on one video frame inside the scan engine pool.
type FrameError struct {
	Operation string
	SessionID string
	Engine    int
	Frame     int
	Err       error
}

func (e *FrameError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	where := fmt.Sprintf("%s frame=%d engine=%d", e.Operation, e.Frame, e.Engine)
	if e.SessionID != "" {
		where += " session_id=" + e.SessionID
	}
	return where + ": " + e.Err.Error()
}

func (e *FrameError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fields renders the error for a structured log entry. The operation is left
// to the logger, which carries it from WithOperation.
func (e *FrameError) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("engine", e.Engine),
		zap.Int("frame", e.Frame),
		zap.Error(e.Err),
	}
}

// NewFrameError wraps err with the frame it failed on. It returns nil when err is nil.
func NewFrameError(operation, sessionID string, engine, frame int, err error) *FrameError {
	if err == nil {
		return nil
	}
	return &FrameError{Operation: operation, SessionID: sessionID, Engine: engine, Frame: frame, Err: err}
}
