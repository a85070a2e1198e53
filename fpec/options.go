package fpec

import "time"

// Config holds the controller configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// EventCallback is called as each operation moves through its phases (optional)
	EventCallback EventCallback

	// Geometry is the flash layout used to validate addresses
	Geometry Geometry

	// Reserved lists regions that must never be erased or programmed
	Reserved []Region

	// PollLimit bounds the busy-wait by iteration count (0 = no count bound)
	PollLimit int

	// PollTimeout bounds the busy-wait by elapsed time (0 = no time bound)
	PollTimeout time.Duration

	// PollInterval is the pause between busy polls (0 = tight spin)
	PollInterval time.Duration

	// Poller overrides the poller built from the Poll* settings (optional)
	Poller Poller

	// VerifyAfterProgram reads every programmed word back and compares it
	VerifyAfterProgram bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Geometry:           STM32F303xC,
		PollTimeout:        DefaultPollTimeout,
		VerifyAfterProgram: true,
	}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithLogger sets a logger for controller operations.
//
// Example:
//
//	ctrl := fpec.New(regs, mem, fpec.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithEventCallback sets a callback that observes every operation phase.
//
// Example:
//
//	ctrl := fpec.New(regs, mem,
//	    fpec.WithEventCallback(func(e fpec.Event) {
//	        fmt.Printf("%s 0x%08X: %s\n", e.Op, e.Address, e.Phase)
//	    }),
//	)
func WithEventCallback(callback EventCallback) Option {
	return func(c *Config) {
		c.EventCallback = callback
	}
}

// WithGeometry sets the flash layout. Inconsistent layouts are ignored.
func WithGeometry(g Geometry) Option {
	return func(c *Config) {
		if g.validate() == nil {
			c.Geometry = g
		}
	}
}

// WithReservedRegion protects [start, start+size) from erase and program.
//
// Example:
//
//	// keep the first 32 KiB of firmware out of reach
//	ctrl := fpec.New(regs, mem, fpec.WithReservedRegion(0x08000000, 32*1024))
func WithReservedRegion(start, size uint32) Option {
	return func(c *Config) {
		if size > 0 {
			c.Reserved = append(c.Reserved, Region{Start: start, Size: size})
		}
	}
}

// WithPollLimit bounds the busy-wait to n reads of the busy flag.
func WithPollLimit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.PollLimit = n
		}
	}
}

// WithPollTimeout bounds the busy-wait by elapsed time.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.PollTimeout = timeout
		}
	}
}

// WithPollInterval sets the pause between busy polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval >= 0 {
			c.PollInterval = interval
		}
	}
}

// WithPoller replaces the busy-wait strategy. Tests use it to simulate slow
// or never-completing hardware without real delays.
func WithPoller(p Poller) Option {
	return func(c *Config) {
		if p != nil {
			c.Poller = p
		}
	}
}

// WithVerifyAfterProgram enables or disables read-back verification.
// Default is true.
func WithVerifyAfterProgram(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}
