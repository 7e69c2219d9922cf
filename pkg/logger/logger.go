package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	TypeText = "text"
	TypeJSON = "json"
)

// NewLogger creates a logger writing to stdout. An unknown level falls back
// to info, an unknown type to text.
func NewLogger(level, logType string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	switch strings.ToLower(logType) {
	case TypeJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return l
}
