package slogx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// KeyLoggerName is the key for the logger name attribute.
	KeyLoggerName = "logger"
	// KeyRunID is the key for the run id attribute.
	KeyRunID = "run_id"
	// KeyNodeID is the key for the node instance id attribute.
	KeyNodeID = "node_id"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the string representation of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName returns an attribute for the logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// RunID tags a log line with the run it belongs to. Run-independent work
// (uuid.Nil) is tagged as "global".
func RunID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.String(KeyRunID, "global")
	}
	return slog.String(KeyRunID, id.String())
}

// NodeID tags a log line with a node instance id.
func NodeID(id string) slog.Attr {
	return slog.String(KeyNodeID, id)
}
