package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/moffa90/go-fpec/fpec"
	"github.com/moffa90/go-fpec/stm32"
)

// Server answers bridge requests against a local bus. It is the agent
// side of the protocol, used with the simulator for host-only testing.
type Server struct {
	bus    stm32.Bus
	logger fpec.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger logs refused requests and bus errors.
func WithServerLogger(logger fpec.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server forwarding accesses to bus.
func NewServer(bus stm32.Bus, opts ...ServerOption) *Server {
	if bus == nil {
		panic("bus cannot be nil")
	}
	s := &Server{bus: bus}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve answers requests read from rw until the stream ends or ctx is
// done. A blocked read only returns once rw is closed. A clean end of
// stream returns nil.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := ReadFrame(rw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, ErrInvalidFrame) {
			// The next read scans forward to a start-of-packet marker.
			s.logError("dropping malformed frame", "error", err.Error())
			if err := s.respond(rw, ErrData, nil); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		status, data := s.handle(frame)
		if err := s.respond(rw, status, data); err != nil {
			return err
		}
	}
}

// handle executes one request frame and returns the response status and
// payload. Replies to parsed requests start with the request's sequence
// number and command, then its address when it has one.
func (s *Server) handle(frame []byte) (byte, []byte) {
	cmd, data, err := ParseFrame(frame)
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		return ErrChecksum, nil
	case err != nil:
		return ErrData, nil
	}
	if len(data) == 0 {
		return ErrLength, nil
	}

	echo := []byte{data[0], cmd}
	args := data[1:]

	switch cmd {
	case CmdPing:
		if len(data) != PingRequestSize {
			return ErrLength, echo
		}
		return StatusSuccess, echo

	case CmdRead32:
		if len(data) != Read32RequestSize {
			return ErrLength, echo
		}
		addr := binary.LittleEndian.Uint32(args)
		echo = append(echo, args[:addrSize]...)
		value, err := s.bus.Load32(addr)
		if err != nil {
			return s.status("read32", addr, err), echo
		}
		return StatusSuccess, binary.LittleEndian.AppendUint32(echo, value)

	case CmdWrite32:
		if len(data) != Write32RequestSize {
			return ErrLength, echo
		}
		addr := binary.LittleEndian.Uint32(args)
		echo = append(echo, args[:addrSize]...)
		if err := s.bus.Store32(addr, binary.LittleEndian.Uint32(args[addrSize:])); err != nil {
			return s.status("write32", addr, err), echo
		}
		return StatusSuccess, echo

	case CmdWrite16:
		hw, ok := s.bus.(stm32.HalfWordBus)
		if !ok {
			return ErrCommand, echo
		}
		if len(data) != Write16RequestSize {
			return ErrLength, echo
		}
		addr := binary.LittleEndian.Uint32(args)
		echo = append(echo, args[:addrSize]...)
		if err := hw.Store16(addr, binary.LittleEndian.Uint16(args[addrSize:])); err != nil {
			return s.status("write16", addr, err), echo
		}
		return StatusSuccess, echo

	default:
		return ErrCommand, echo
	}
}

// status maps a bus error onto a status code.
func (s *Server) status(op string, addr uint32, err error) byte {
	s.logError("bus access failed", "op", op, "address", addr, "error", err.Error())

	var accessErr *stm32.AccessError
	if errors.As(err, &accessErr) {
		return ErrAddress
	}
	return ErrUnknown
}

func (s *Server) respond(w io.Writer, status byte, data []byte) error {
	frame, err := BuildFrame(status, data)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

func (s *Server) logError(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, keysAndValues...)
	}
}
