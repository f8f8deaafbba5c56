// Package logging configures the process-wide zerolog logger from the
// cluster config and provides the coordinator-owned event sink that
// serializes log output from concurrent node handling.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds a logger writing to the console and, when file is non-empty,
// to a rotating log file. showProgress gates console output below warn
// level so quiet runs still surface problems.
func Setup(level, file string, showProgress bool) zerolog.Logger {
	lvl := ParseLevel(level)

	var writers []io.Writer

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if showProgress {
		writers = append(writers, console)
	} else {
		writers = append(writers, levelFilter{w: console, min: zerolog.WarnLevel})
	}

	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 3,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel maps the config logging.level string onto a zerolog level,
// defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// levelFilter drops events below min before they reach the wrapped writer.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}
