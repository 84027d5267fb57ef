// Package common provides the shared logging infrastructure for the Nvisy server.
// It configures a logrus logger with output routing that sends error-level
// messages to stderr while other levels go to stdout, keeping streams separated
// for containerized deployments and log aggregation.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger instance. All packages obtain scoped
// entries from it via Component.
var Logger = newLogger()

// OutputSplitter routes formatted log lines to stderr when they carry an
// error level marker and to stdout otherwise.
type OutputSplitter struct{}

// Write implements io.Writer for OutputSplitter.
func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// ConfigureLogging applies the runtime logging configuration. In debug mode
// the logger emits human-readable text at debug level; otherwise it emits
// JSON at info level.
func ConfigureLogging(debug bool) {
	if debug {
		Logger.SetLevel(logrus.DebugLevel)
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.JSONFormatter{})
}

// Component returns a log entry scoped to a subsystem. The component field is
// stable and used for filtering ("db", "nats", "webhook", "llm", "api",
// "auth", "worker").
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
