package common

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogOption configures the logger of a component. Logs are discarded if not specified.
type LogOption struct {
	LogLevel logrus.Level
	Logger   *logrus.Logger
}

// NewLogger returns a log entry with the specified fields attached.
func NewLogger(fields logrus.Fields, opt ...LogOption) *logrus.Entry {
	if len(opt) > 0 && opt[0].Logger != nil {
		return opt[0].Logger.WithFields(fields)
	}

	logger := logrus.New()

	if len(opt) == 0 {
		logger.Out = io.Discard
	} else {
		logger.SetLevel(opt[0].LogLevel)
	}

	return logger.WithFields(fields)
}
