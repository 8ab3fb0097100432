package logging

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// PrintfLogger adapts slog to the Println/Printf loggers the MQTT client expects.
type PrintfLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func NewPrintfLogger(logger *slog.Logger, level slog.Level) *PrintfLogger {
	return &PrintfLogger{logger: logger, level: level}
}

func (l *PrintfLogger) Println(v ...any) {
	l.print(fmt.Sprint(v...))
}

func (l *PrintfLogger) Printf(format string, v ...any) {
	l.print(fmt.Sprintf(format, v...))
}

func (l *PrintfLogger) print(msg string) {
	switch l.level {
	case slog.LevelError:
		l.logger.Error(msg)
	case slog.LevelWarn:
		l.logger.Warn(msg)
	case slog.LevelDebug:
		l.logger.Debug(msg)
	default:
		l.logger.Info(msg)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

// CronLogger routes scheduler messages to slog. Info messages are chatty
// and go out at debug level.
func CronLogger(logger *slog.Logger) cron.Logger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
