package bridge

// Frame structure constants.
const (
	// StartOfPacket is the frame start marker (0x01)
	StartOfPacket = 0x01

	// EndOfPacket is the frame end marker (0x17)
	EndOfPacket = 0x17

	// MinFrameSize is the minimum frame size in bytes:
	// SOP(1) + CMD/STATUS(1) + LEN(2) + CHECKSUM(2) + EOP(1)
	MinFrameSize = 7

	// headerSize covers SOP, CMD/STATUS and LEN
	headerSize = 4

	// MaxDataSize is the largest payload either side accepts
	MaxDataSize = 64
)

// Command codes. Every request payload starts with a sequence byte, and
// every reply to a parsed request starts with ECHO, the request's [SEQ][CMD].
const (
	// CmdPing checks that the agent is alive: [SEQ] -> [ECHO]
	CmdPing = 0x50

	// CmdRead32 loads one word: [SEQ][ADDR(4)] -> [ECHO][ADDR(4)][VALUE(4)]
	CmdRead32 = 0x52

	// CmdWrite32 stores one word: [SEQ][ADDR(4)][VALUE(4)] -> [ECHO][ADDR(4)]
	CmdWrite32 = 0x57

	// CmdWrite16 stores one half-word: [SEQ][ADDR(4)][VALUE(2)] -> [ECHO][ADDR(4)]
	CmdWrite16 = 0x48
)

// Status codes.
const (
	// StatusSuccess indicates the command was executed
	StatusSuccess = 0x00

	// ErrLength indicates the payload length is wrong for the command
	ErrLength = 0x03

	// ErrData indicates the frame is not well formed
	ErrData = 0x04

	// ErrCommand indicates the command is not recognized
	ErrCommand = 0x05

	// ErrChecksum indicates the frame checksum does not match
	ErrChecksum = 0x08

	// ErrAddress indicates the agent refused the address
	ErrAddress = 0x0A

	// ErrUnknown indicates the access failed for another reason
	ErrUnknown = 0x0F
)

// Payload sizes.
const (
	// PingRequestSize is the Ping request payload size
	PingRequestSize = 1

	// Read32RequestSize is the Read32 request payload size
	Read32RequestSize = 5

	// Read32ResponseSize is the Read32 response payload size after the echo
	Read32ResponseSize = 4

	// Write32RequestSize is the Write32 request payload size
	Write32RequestSize = 9

	// Write16RequestSize is the Write16 request payload size
	Write16RequestSize = 7

	// echoSize is [SEQ][CMD], the prefix of every reply to a parsed request
	echoSize = 2

	// addrSize is the length of an address field
	addrSize = 4
)
