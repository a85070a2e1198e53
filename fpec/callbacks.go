package fpec

import "time"

// Operation phases reported through EventCallback.
const (
	PhaseUnlocking = "unlocking"
	PhaseStarting  = "starting"
	PhaseWaiting   = "waiting"
	PhaseComplete  = "complete"
	PhaseFailed    = "failed"
)

// Event describes a step of a flash operation.
type Event struct {
	// Op is "erase page" or "program word"
	Op string

	// Phase is one of the Phase* constants
	Phase string

	// Address is the target flash address
	Address uint32

	// Polls is the number of busy polls performed (complete and failed only)
	Polls int

	// Outcome is the final classification (complete and failed only)
	Outcome Outcome

	// Elapsed is the time since the operation was entered
	Elapsed time.Duration
}

// EventCallback observes operation phases. It runs on the calling goroutine
// while the controller is held, so it must return quickly and must not call
// back into the controller.
type EventCallback func(Event)

// Logger is an optional logging interface that can be provided to the controller.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	ctrl := fpec.New(regs, mem, fpec.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
