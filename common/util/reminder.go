package util

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Reminder is used for time consuming operations, e.g. polling transaction receipt,
// to remind user about progress. It logs at the level of logger in general, and
// escalates to warning once per interval.
type Reminder struct {
	start    time.Time
	last     time.Time
	interval time.Duration
	logger   *logrus.Entry
}

// NewReminder returns a new Reminder instance. Logs are discarded if logger is nil.
func NewReminder(logger *logrus.Entry, interval time.Duration) *Reminder {
	if logger == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		logger = logrus.NewEntry(discard)
	}

	now := time.Now()

	return &Reminder{
		start:    now,
		last:     now,
		interval: interval,
		logger:   logger,
	}
}

// Elapsed returns the duration since reminder created.
func (reminder *Reminder) Elapsed() time.Duration {
	return time.Since(reminder.start)
}

// RemindWith reminds about specified `message` along with `key` and `value`.
func (reminder *Reminder) RemindWith(message string, key string, value interface{}) {
	reminder.Remind(message, logrus.Fields{key: value})
}

// Remind reminds about specified `message` and optional `fields`.
func (reminder *Reminder) Remind(message string, fields ...logrus.Fields) {
	entry := reminder.logger.WithField("elapsed", reminder.Elapsed().Truncate(time.Millisecond))
	if len(fields) > 0 {
		entry = entry.WithFields(fields[0])
	}

	if time.Since(reminder.last) > reminder.interval {
		entry.Warn(message)
		reminder.last = time.Now()
	} else {
		entry.Log(reminder.logger.Logger.Level, message)
	}
}
