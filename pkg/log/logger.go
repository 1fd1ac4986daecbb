package log

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a configured logrus.Logger writing to stderr.
// format "json" selects the JSON formatter; anything else is text with full timestamps.
// An unparsable level falls back to info with a warning.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	log.SetLevel(logrus.InfoLevel)

	if level == "" {
		return log
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
		return log
	}
	log.SetLevel(parsed)
	return log
}

// Discard returns an entry that drops everything. Useful for optional loggers.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
