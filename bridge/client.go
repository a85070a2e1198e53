package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/moffa90/go-fpec/fpec"
	"github.com/moffa90/go-fpec/stm32"
)

// maxStaleReplies bounds how many replies to earlier requests a Client
// skips while waiting for the one that matches.
const maxStaleReplies = 8

// Client drives a register-bridge agent over a byte stream. It implements
// stm32.HalfWordBus, so a Controller can run against a remote target:
//
//	client := bridge.NewClient(port)
//	ctrl := fpec.New(stm32.NewRegisters(client), stm32.NewFlash(client))
//
// Every request carries a sequence number and every reply echoes it, so
// a reply that arrives after its request timed out is discarded instead
// of being taken as the answer to a later request.
//
// Requests are serialised; a Client is safe for concurrent use.
type Client struct {
	rw     io.ReadWriter
	logger fpec.Logger
	resync func() error

	mu  sync.Mutex
	seq byte
}

var _ stm32.HalfWordBus = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger logs every frame exchanged at debug level.
func WithClientLogger(logger fpec.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithResync sets a hook called after a failed read, typically one that
// flushes the input buffer of the underlying port.
func WithResync(resync func() error) ClientOption {
	return func(c *Client) {
		c.resync = resync
	}
}

// NewClient creates a Client over rw.
func NewClient(rw io.ReadWriter, opts ...ClientOption) *Client {
	if rw == nil {
		panic("stream cannot be nil")
	}
	c := &Client{rw: rw}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one exchange with the agent.
type request struct {
	op      string
	cmd     byte
	addr    uint32
	hasAddr bool
	build   func(seq byte) []byte
}

// Ping checks that the agent answers.
func (c *Client) Ping() error {
	_, err := c.transact(request{op: "ping", cmd: CmdPing, build: BuildPingCmd})
	return err
}

// Load32 implements stm32.Bus.
func (c *Client) Load32(addr uint32) (uint32, error) {
	data, err := c.transact(request{
		op: "read32", cmd: CmdRead32, addr: addr, hasAddr: true,
		build: func(seq byte) []byte { return BuildRead32Cmd(seq, addr) },
	})
	if err != nil {
		return 0, err
	}
	return ParseRead32Response(data)
}

// Store32 implements stm32.Bus.
func (c *Client) Store32(addr uint32, value uint32) error {
	_, err := c.transact(request{
		op: "write32", cmd: CmdWrite32, addr: addr, hasAddr: true,
		build: func(seq byte) []byte { return BuildWrite32Cmd(seq, addr, value) },
	})
	return err
}

// Store16 implements stm32.HalfWordBus.
func (c *Client) Store16(addr uint32, value uint16) error {
	_, err := c.transact(request{
		op: "write16", cmd: CmdWrite16, addr: addr, hasAddr: true,
		build: func(seq byte) []byte { return BuildWrite16Cmd(seq, addr, value) },
	})
	return err
}

// transact sends one request and waits for the reply that echoes it.
func (c *Client) transact(req request) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	seq := c.seq
	frame := req.build(seq)

	c.logDebug("sending frame", "op", req.op, "seq", seq, "frame", fmt.Sprintf("% X", frame))
	if _, err := c.rw.Write(frame); err != nil {
		return nil, fmt.Errorf("%s 0x%08X: write: %w", req.op, req.addr, err)
	}

	for skipped := 0; ; skipped++ {
		status, data, err := c.receive(req)
		if err != nil {
			c.flush(req)
			return nil, err
		}

		payload, ok := matchReply(req, seq, status, data)
		if !ok {
			if skipped == maxStaleReplies {
				c.flush(req)
				return nil, fmt.Errorf("%s 0x%08X: no matching reply after %d stale replies", req.op, req.addr, skipped)
			}
			c.logDebug("discarding stale reply", "op", req.op, "seq", seq, "data", fmt.Sprintf("% X", data))
			continue
		}

		if status != StatusSuccess {
			return nil, &ProtocolError{Operation: req.op, Address: req.addr, StatusCode: status}
		}
		return payload, nil
	}
}

// receive reads and validates one frame.
func (c *Client) receive(req request) (byte, []byte, error) {
	frame, err := ReadFrame(c.rw)
	if err != nil {
		return 0, nil, fmt.Errorf("%s 0x%08X: read: %w", req.op, req.addr, err)
	}
	c.logDebug("received frame", "op", req.op, "frame", fmt.Sprintf("% X", frame))

	status, data, err := ParseFrame(frame)
	if err != nil {
		return 0, nil, fmt.Errorf("%s 0x%08X: %w", req.op, req.addr, err)
	}
	return status, data, nil
}

// matchReply reports whether data answers req sent with seq, and returns
// the payload after the echo. An error reply with no echo is the agent's
// answer to a frame it could not parse and is taken as the current one.
func matchReply(req request, seq, status byte, data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, status != StatusSuccess
	}
	if len(data) < echoSize || data[0] != seq || data[1] != req.cmd {
		return nil, false
	}
	data = data[echoSize:]

	if !req.hasAddr {
		return data, true
	}
	if len(data) < addrSize {
		// Length errors are answered before the address is known.
		return nil, status == ErrLength
	}
	if binary.LittleEndian.Uint32(data) != req.addr {
		return nil, false
	}
	return data[addrSize:], true
}

// flush drops whatever is left of a broken exchange.
func (c *Client) flush(req request) {
	if c.resync == nil {
		return
	}
	if err := c.resync(); err != nil {
		c.logDebug("resync failed", "op", req.op, "error", err.Error())
	}
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}
