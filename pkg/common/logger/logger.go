package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

func Init() {
	InitWithOutput(os.Stdout)
}

// InitWithOutput configures the JSON logger against w. Tests pass io.Discard.
func InitWithOutput(w io.Writer) {
	Log = logrus.New()
	Log.SetOutput(w)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// WithRun tags entries with the pipeline run they belong to.
func WithRun(runID string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"service": "etl-service",
		"run_id":  runID,
	})
}
