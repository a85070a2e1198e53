package main

import (
	"log"
	"os"
)

// stderrLogger implements fpec.Logger on top of the standard logger.
type stderrLogger struct {
	logger *log.Logger
	debug  bool
}

func newLogger() *stderrLogger {
	return &stderrLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		debug:  debug,
	}
}

func (l *stderrLogger) Debug(msg string, kv ...interface{}) {
	if l.debug {
		l.logger.Printf("[DEBUG] %s %v", msg, kv)
	}
}

func (l *stderrLogger) Info(msg string, kv ...interface{}) {
	if l.debug {
		l.logger.Printf("[INFO] %s %v", msg, kv)
	}
}

func (l *stderrLogger) Error(msg string, kv ...interface{}) {
	l.logger.Printf("[ERROR] %s %v", msg, kv)
}
