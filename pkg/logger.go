package pkg

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"pcicam/pkg/types"
)

var defaultLogger = newLogger()

func newLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.InfoLevel)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// Logger returns the shared logrus logger
func Logger() *log.Logger {
	return defaultLogger
}

// ParseLogLevel maps a level name to a logrus level
func ParseLogLevel(levelStr string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level: %s", levelStr)
	}
}

// SetLogLevelFromString sets the log level from a string
func SetLogLevelFromString(levelStr string) error {
	level, err := ParseLogLevel(levelStr)
	if err != nil {
		return err
	}
	defaultLogger.SetLevel(level)
	return nil
}

// SetFormat switches between "text" and "json" output
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		defaultLogger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		defaultLogger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	return nil
}

// SetOutput sets the output for the default logger
func SetOutput(output io.Writer) {
	defaultLogger.SetOutput(output)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return defaultLogger.IsLevelEnabled(log.DebugLevel)
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// WithField adds a field to the logger
func WithField(key string, value interface{}) *log.Entry {
	return defaultLogger.WithField(key, value)
}

// WithFields adds multiple fields to the logger
func WithFields(fields log.Fields) *log.Entry {
	return defaultLogger.WithFields(fields)
}

// WithError adds an error field to the logger
func WithError(err error) *log.Entry {
	return defaultLogger.WithError(err)
}

// WithComponent tags entries with the subsystem that produced them
func WithComponent(name string) *log.Entry {
	return defaultLogger.WithField("component", name)
}

// DeviceFields returns the standard fields used when logging a function
func DeviceFields(d types.DiscoveredDevice) log.Fields {
	return log.Fields{
		"address": d.Address.String(),
		"vendor":  fmt.Sprintf("%04x", d.Header.VendorID),
		"device":  fmt.Sprintf("%04x", d.Header.DeviceID),
		"kind":    d.Kind(),
	}
}
