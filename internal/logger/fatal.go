package logger

import (
	"log/slog"
	"os"
)

// FatalWithLogger logs the message at error level and exits. Used during
// startup before the error channel exists.
func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
