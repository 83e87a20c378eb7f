package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"lab-management-platform/internal/config"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger instance
func NewLogger(cfg *config.Config) *Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Optionally tee into a rotating file
	if cfg.Logging.File != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}))
	}

	return &Logger{Logger: log}
}

// NewDiscardLogger returns a logger that drops every entry, for tests.
func NewDiscardLogger() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{Logger: log}
}

// WithOrganization adds organization context to log entries
func (l *Logger) WithOrganization(orgID string) *logrus.Entry {
	return l.WithField("organization_id", orgID)
}

// WithLaboratory adds laboratory context to log entries
func (l *Logger) WithLaboratory(orgID, labID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{"organization_id": orgID, "laboratory_id": labID})
}

// WithUser adds user context to log entries
func (l *Logger) WithUser(userID string) *logrus.Entry {
	return l.WithField("user_id", userID)
}

// WithOperation adds the access operation name to log entries
func (l *Logger) WithOperation(op string) *logrus.Entry {
	return l.WithField("operation", op)
}
