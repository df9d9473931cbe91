// Package util carries the ambient concerns shared by every stage of the
// pipeline: structured logging.
package util

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
)

var (
	once      sync.Once
	baseLevel = &slog.LevelVar{}
	logger    *slog.Logger
)

func init() {
	baseLevel.Set(slog.LevelInfo)
}

// SetVerbose raises the base logger to debug level. Operators that want to
// trace pipeline shape (subscribe/cancel/demand) log at Debug so they stay
// silent unless the caller opts in.
func SetVerbose(v bool) {
	if v {
		baseLevel.Set(slog.LevelDebug)
	} else {
		baseLevel.Set(slog.LevelInfo)
	}
}

// GetLogger returns the process-wide slog logger, constructing it on first use.
func GetLogger() *slog.Logger {
	once.Do(func() {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: baseLevel})
		logger = slog.New(handler)
	})
	return logger
}

// Logger wraps slog and provides traditional log.Printf style methods for
// collaborator code (codec decoders, container muxers) that predates
// structured logging.
type Logger struct {
	slogLogger *slog.Logger
}

// GetCompatLogger returns a Printf-style facade over the structured logger.
func GetCompatLogger() *Logger {
	return &Logger{slogLogger: GetLogger()}
}

func (l *Logger) Printf(format string, v ...interface{}) {
	l.slogLogger.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.slogLogger.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.slogLogger.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.slogLogger.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.slogLogger.Info(fmt.Sprintf(format, v...))
}

// SetupGlobalLogger redirects the standard log package onto the structured
// logger so vendored collaborator code that still calls log.Printf lands in
// the same place as the rest of the pipeline's logs.
func SetupGlobalLogger() {
	log.SetOutput(&logWriter{logger: GetLogger()})
	log.SetFlags(0)
}

type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}
