package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide instance; Init must run before use.
var Logger *logrus.Logger

// Init configures structured JSON logging for the named service.
func Init(serviceName string) *logrus.Logger {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			Logger.SetLevel(lvl)
		}
	} else {
		Logger.SetLevel(logrus.InfoLevel)
	}

	Logger = Logger.WithField("service", serviceName).Logger
	return Logger
}

// WithRequestID returns an entry carrying the request id, when present.
func WithRequestID(logger *logrus.Logger, requestID string) *logrus.Entry {
	if requestID == "" {
		return logrus.NewEntry(logger)
	}
	return logger.WithField("request_id", requestID)
}
