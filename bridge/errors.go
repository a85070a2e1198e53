package bridge

import (
	"errors"
	"fmt"
)

// ProtocolError represents a non-success status returned by the agent.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Address is the word the command targeted
	Address uint32

	// StatusCode is the status byte from the response
	StatusCode byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s 0x%08X failed: %s (0x%02X)", e.Operation, e.Address, StatusName(e.StatusCode), e.StatusCode)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// StatusName returns a human-readable name for a status code.
func StatusName(code byte) string {
	switch code {
	case StatusSuccess:
		return "success"
	case ErrLength:
		return "invalid length"
	case ErrData:
		return "invalid data"
	case ErrCommand:
		return "unrecognized command"
	case ErrChecksum:
		return "checksum mismatch"
	case ErrAddress:
		return "address refused"
	case ErrUnknown:
		return "unknown error"
	default:
		return fmt.Sprintf("unknown status code 0x%02X", code)
	}
}
