package logger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/ollagate/ollagate/theme"
)

// StyledLogger wraps slog.Logger with Theme-aware formatting
type StyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithBackend(msg string, backend string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint(backend))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithBackend(msg string, backend string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint(backend))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithBackend(msg string, backend string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint(backend))
	sl.logger.Error(styledMsg, args...)
}

// InfoHealthStatus logs a backend transitioning between health states.
func (sl *StyledLogger) InfoHealthStatus(msg string, name string, healthy bool, args ...any) {
	statusColor := sl.Theme.Good
	statusText := "healthy"
	if !healthy {
		statusColor = sl.Theme.Danger
		statusText = "quarantined"
	}
	styledMsg := fmt.Sprintf("%s %s is %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint(name), pterm.Style{statusColor}.Sprint(statusText))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *StyledLogger) WithRequestID(requestID string) *StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}

	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styledLogger := NewStyledLogger(logger, appTheme)

	return logger, styledLogger, cleanup, nil
}

// LogContext splits user-facing args from the detailed set that only the
// log file should carry.
type LogContext struct {
	UserArgs     []interface{}
	DetailedArgs []interface{}
}

func (sl *StyledLogger) InfoWithContext(msg string, backend string, ctx LogContext) {
	sl.logWithContext("info", msg, backend, ctx)
}

func (sl *StyledLogger) WarnWithContext(msg string, backend string, ctx LogContext) {
	sl.logWithContext("warn", msg, backend, ctx)
}

func (sl *StyledLogger) ErrorWithContext(msg string, backend string, ctx LogContext) {
	sl.logWithContext("error", msg, backend, ctx)
}

func (sl *StyledLogger) logWithContext(level string, msg string, backend string, ctx LogContext) {
	// CLI: clean messaging
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Secondary}.Sprint(backend))

	switch level {
	case "info":
		sl.logger.Info(styledMsg, ctx.UserArgs...)
	case "warn":
		sl.logger.Warn(styledMsg, ctx.UserArgs...)
	case "error":
		sl.logger.Error(styledMsg, ctx.UserArgs...)
	}

	// log file: detailed hopefully
	if len(ctx.DetailedArgs) > 0 {
		allArgs := make([]interface{}, 0, len(ctx.UserArgs)+len(ctx.DetailedArgs)+2)
		allArgs = append(allArgs, "backend_name", backend)
		allArgs = append(allArgs, ctx.UserArgs...)
		allArgs = append(allArgs, ctx.DetailedArgs...)

		detailedCtx := context.WithValue(context.Background(), DetailOnlyKey, true)

		switch level {
		case "info":
			sl.logger.InfoContext(detailedCtx, msg, allArgs...)
		case "warn":
			sl.logger.WarnContext(detailedCtx, msg, allArgs...)
		case "error":
			sl.logger.ErrorContext(detailedCtx, msg, allArgs...)
		}
	}
}
