package bridge

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ErrReadTimeout is returned when the agent does not answer within the
// configured read timeout.
var ErrReadTimeout = errors.New("serial read timeout")

// Default serial settings.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)

// SerialConfig holds serial link settings.
type SerialConfig struct {
	// BaudRate is the link speed in bits per second
	BaudRate int

	// ReadTimeout bounds each read from the port
	ReadTimeout time.Duration
}

// Port is a Client attached to an open serial port.
type Port struct {
	*Client
	port serial.Port
}

// Open opens portName at 8N1 and returns a Client talking to the agent on
// the other end. Zero config fields take their defaults.
//
// Example:
//
//	port, err := bridge.Open("/dev/ttyACM0", bridge.SerialConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
func Open(portName string, cfg SerialConfig, opts ...ClientOption) (*Port, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate:          cfg.BaudRate,
		DataBits:          8,
		StopBits:          serial.OneStopBit,
		Parity:            serial.NoParity,
		InitialStatusBits: &serial.ModemOutputBits{RTS: false, DTR: true},
	}
	sp, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := sp.SetReadTimeout(cfg.ReadTimeout); err != nil {
		sp.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	if err := sp.ResetInputBuffer(); err != nil {
		sp.Close()
		return nil, fmt.Errorf("flush %s: %w", portName, err)
	}

	// A flush after a failed read drops late replies still in flight.
	opts = append([]ClientOption{WithResync(sp.ResetInputBuffer)}, opts...)
	return &Port{
		Client: NewClient(&timeoutPort{Port: sp}, opts...),
		port:   sp,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	return p.port.Close()
}

// timeoutPort turns the (0, nil) read that go.bug.st/serial returns on
// timeout into ErrReadTimeout, so io.ReadFull does not spin.
type timeoutPort struct {
	serial.Port
}

func (t *timeoutPort) Read(p []byte) (int, error) {
	n, err := t.Port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
