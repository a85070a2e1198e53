package sim

// Default operation latencies, counted in status register reads.
const (
	DefaultEraseLatency   = 8
	DefaultProgramLatency = 2
)

// Config holds simulator settings.
type Config struct {
	// EraseLatency is the number of status reads that report busy after
	// a page erase starts
	EraseLatency int

	// ProgramLatency is the number of status reads that report busy after
	// a word store
	ProgramLatency int

	// StuckBusy keeps the busy flag set forever once an operation starts
	StuckBusy bool

	// SuppressEOP completes operations without setting end-of-operation
	SuppressEOP bool

	protected map[int]bool
}

func defaultConfig() Config {
	return Config{
		EraseLatency:   DefaultEraseLatency,
		ProgramLatency: DefaultProgramLatency,
		protected:      make(map[int]bool),
	}
}

// Option configures the simulator.
type Option func(*Config)

// WithEraseLatency sets the page erase latency in status reads.
// Negative values are ignored.
func WithEraseLatency(reads int) Option {
	return func(c *Config) {
		if reads >= 0 {
			c.EraseLatency = reads
		}
	}
}

// WithProgramLatency sets the word program latency in status reads.
// Negative values are ignored.
func WithProgramLatency(reads int) Option {
	return func(c *Config) {
		if reads >= 0 {
			c.ProgramLatency = reads
		}
	}
}

// WithProtectedPages write-protects the given page indices. Erasing or
// programming them raises the write-protect error flag.
func WithProtectedPages(pages ...int) Option {
	return func(c *Config) {
		for _, p := range pages {
			if p >= 0 {
				c.protected[p] = true
			}
		}
	}
}

// WithStuckBusy makes the busy flag never clear.
func WithStuckBusy() Option {
	return func(c *Config) {
		c.StuckBusy = true
	}
}

// WithSuppressEOP makes operations finish without end-of-operation.
func WithSuppressEOP() Option {
	return func(c *Config) {
		c.SuppressEOP = true
	}
}
