// Package logging configures the process loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apsdehal/go-logger"
)

// Format is the line layout shared by every module logger.
const Format = "%{time} [%{module}] [%{level}] %{message}"

// New returns a logger for module writing to stdout.
func New(module, level string) (*logger.Logger, error) {
	return NewWithWriter(module, level, os.Stdout)
}

// NewWithWriter returns an uncoloured logger for module writing to out.
func NewWithWriter(module, level string, out io.Writer) (*logger.Logger, error) {
	log, err := logger.New(module, 0, out)
	if err != nil {
		return nil, fmt.Errorf("create logger %s: %w", module, err)
	}
	log.SetFormat(Format)
	log.SetLogLevel(ParseLevel(level))
	return log, nil
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logger.Logger {
	log, _ := NewWithWriter("discard", "CRITICAL", io.Discard)
	return log
}

// ParseLevel maps a level name to a logger level, defaulting to info.
func ParseLevel(level string) logger.LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logger.DebugLevel
	case "NOTICE":
		return logger.NoticeLevel
	case "WARN", "WARNING":
		return logger.WarningLevel
	case "ERROR":
		return logger.ErrorLevel
	case "CRITICAL":
		return logger.CriticalLevel
	default:
		return logger.InfoLevel
	}
}
