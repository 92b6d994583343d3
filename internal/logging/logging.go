package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "alert-service.log"

// Logger is the service-wide logger. It writes to stdout and, when created
// with New, to a rotated file.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New creates a logger writing to stdout and to dir/alert-service.log.
func New(dir, level string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    50, // megabytes
		MaxBackups: 7,
		MaxAge:     30, // days
		Compress:   true,
	}

	l, err := newLogrus(io.MultiWriter(os.Stdout, file), level)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Logger{Logger: l, file: file}, nil
}

// NewWithWriter creates a logger writing only to w. An unknown level falls back to info.
func NewWithWriter(w io.Writer, level string) *Logger {
	l, err := newLogrus(w, level)
	if err != nil {
		l, _ = newLogrus(w, "info")
	}
	return &Logger{Logger: l}
}

func newLogrus(w io.Writer, level string) (*logrus.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l, nil
}

// WithRequest returns an entry tagged with the request id.
func (l *Logger) WithRequest(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	if err := l.file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}
