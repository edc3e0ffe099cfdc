// Package logger builds the zerolog loggers used across surrealshift.
//
// A [LogBuild] collects the destination (stdout, a file, or any writer) and
// the output format, then [LogBuild.Make] returns a [LogData] owning the
// logger and, when a path was given, the underlying file. Coordinators derive
// child loggers from it with [WithComponent] and [WithOperation] so every line
// produced by one logical operation carries the same correlation_id.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	console bool
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level from its textual name. Unknown names keep info.
func (build *LogBuild) Level(name string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(name); err == nil && lvl != zerolog.NoLevel {
		build.level = lvl
	}
	return build
}

// Console switches to human-readable output instead of JSON lines.
func (build *LogBuild) Console(enabled bool) *LogBuild {
	build.console = enabled
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	var w io.Writer = os.Stdout
	if build.writer != nil {
		w = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(logData.LogFile)
	}
	if build.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logData.Logger = zerolog.New(w).Level(build.level).With().Timestamp().Logger()
	return
}

// Close releases the log file, if any.
func (l *LogData) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// WithComponent creates a child logger with a component field.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// WithOperation creates a child logger scoped to one coordinator invocation.
func WithOperation(l zerolog.Logger, correlationID, entity, operation string) zerolog.Logger {
	return l.With().
		Str("correlation_id", correlationID).
		Str("entity", entity).
		Str("operation", operation).
		Logger()
}
