package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logger with the specified level. Unknown levels fall back to
// info. When format is "json" the logger emits JSON lines for the log
// shipper; anything else gets the human-readable text formatter.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.SetOutput(os.Stdout)

	return logger
}
