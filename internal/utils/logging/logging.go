package logging

import "github.com/sirupsen/logrus"

var (
	logger = logrus.NewEntry(logrus.StandardLogger())
)

// SetLevel changes the level of the shared CLI logger.
func SetLevel(l logrus.Level) {
	logger.Logger.SetLevel(l)
}

func WithError(e error) *logrus.Entry {
	return logger.WithError(e)
}

func Entry() *logrus.Entry {
	return logger
}
