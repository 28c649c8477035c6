package observability

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// plainFormatter renders "2006-01-02 15:04:05 - message" lines, the format
// the run log has always used.
type plainFormatter struct{}

func (plainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format("2006-01-02 15:04:05")
	if len(entry.Data) > 0 {
		var data string
		for key, val := range entry.Data {
			data += fmt.Sprintf(" %s=%v", key, val)
		}
		return []byte(fmt.Sprintf("%s - %s%s\n", ts, entry.Message, data)), nil
	}
	return []byte(fmt.Sprintf("%s - %s\n", ts, entry.Message)), nil
}

// NewLogger returns a logger writing to stdout and an append-only log file.
// The file handle stays open for the process lifetime.
func NewLogger(logFile string) (*logrus.Logger, error) {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logFile, err)
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	logger.SetFormatter(plainFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger, nil
}

// NewConsoleLogger returns a stdout-only logger, used before the config
// (and therefore the log file path) is known.
func NewConsoleLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(plainFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}
