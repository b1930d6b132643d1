// Package logger holds the process-wide structured logger.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Get returns the singleton logger. The level comes from LOG_LEVEL and
// defaults to info.
func Get() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		level := os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}

		logLevel, err := logrus.ParseLevel(level)
		if err != nil {
			logLevel = logrus.InfoLevel
		}
		logger.SetLevel(logLevel)

		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})

		logger.SetOutput(os.Stdout)
	})

	return logger
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Get().WithField("component", name)
}
