package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger tagged with the service name. LOG_LEVEL picks
// the level (debug, info, warn, ...), LOG_FORMAT=json switches to JSON
// output for deployed environments.
func NewLogger(service string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(GetEnvOr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l.WithField("service", service)
}
