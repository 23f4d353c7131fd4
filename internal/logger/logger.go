// Package logger exposes the process-wide structured loggers.  Both write
// JSON to stdout and, when a log directory is configured, to size-rotated
// files.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.ErrorLevel)
)

// Options configures Init.  An empty Dir disables file output.
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init replaces the package loggers according to opts.  It is called once
// from main before any goroutine starts logging.
func Init(opts Options) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	var infoOut, errOut io.Writer = os.Stdout, os.Stderr
	if opts.Dir != "" {
		infoOut = io.MultiWriter(os.Stdout, rotating(opts, "info.log"))
		errOut = io.MultiWriter(os.Stderr, rotating(opts, "error.log"))
	}
	InfoLogger = newLogger(infoOut, level)
	ErrorLogger = newLogger(errOut, logrus.ErrorLevel)
}

func rotating(opts Options, name string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, name),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	return l
}

// Discard silences both loggers.  Tests call it to keep output readable.
func Discard() {
	InfoLogger.SetOutput(io.Discard)
	ErrorLogger.SetOutput(io.Discard)
}
