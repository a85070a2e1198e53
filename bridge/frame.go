package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidFrame is returned for frames with bad markers or lengths.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrChecksumMismatch is returned when a frame checksum does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// checksumMask is the 16-bit mask used in checksum calculations.
const checksumMask = 0xFFFF

// checksum sums all bytes and returns the 16-bit two's complement.
// It covers CMD/STATUS through DATA.
func checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return 1 + (checksumMask ^ sum)
}

// BuildFrame wraps data in a frame whose second byte is code, a command
// for requests or a status for responses.
//
// Frame structure:
//
//	[SOP][CODE][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
func BuildFrame(code byte, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("payload too large: %d bytes, maximum is %d", len(data), MaxDataSize)
	}

	frame := make([]byte, headerSize, MinFrameSize+len(data))
	frame[0] = StartOfPacket
	frame[1] = code
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(data)))
	frame = append(frame, data...)

	frame = binary.LittleEndian.AppendUint16(frame, checksum(frame[1:]))
	return append(frame, EndOfPacket), nil
}

// BuildPingCmd constructs a Ping request.
func BuildPingCmd(seq byte) []byte {
	frame, _ := BuildFrame(CmdPing, []byte{seq})
	return frame
}

// BuildRead32Cmd constructs a Read32 request for addr.
func BuildRead32Cmd(seq byte, addr uint32) []byte {
	data := binary.LittleEndian.AppendUint32([]byte{seq}, addr)
	frame, _ := BuildFrame(CmdRead32, data)
	return frame
}

// BuildWrite32Cmd constructs a Write32 request storing value at addr.
func BuildWrite32Cmd(seq byte, addr, value uint32) []byte {
	data := binary.LittleEndian.AppendUint32([]byte{seq}, addr)
	data = binary.LittleEndian.AppendUint32(data, value)
	frame, _ := BuildFrame(CmdWrite32, data)
	return frame
}

// BuildWrite16Cmd constructs a Write16 request storing value at addr.
func BuildWrite16Cmd(seq byte, addr uint32, value uint16) []byte {
	data := binary.LittleEndian.AppendUint32([]byte{seq}, addr)
	data = binary.LittleEndian.AppendUint16(data, value)
	frame, _ := BuildFrame(CmdWrite16, data)
	return frame
}

// ParseFrame extracts the code and payload from a complete frame,
// validating markers, length and checksum.
func ParseFrame(frame []byte) (code byte, data []byte, err error) {
	if len(frame) < MinFrameSize {
		return 0, nil, fmt.Errorf("%w: got %d bytes, minimum is %d", ErrInvalidFrame, len(frame), MinFrameSize)
	}
	if frame[0] != StartOfPacket {
		return 0, nil, fmt.Errorf("%w: start of packet 0x%02X", ErrInvalidFrame, frame[0])
	}
	if frame[len(frame)-1] != EndOfPacket {
		return 0, nil, fmt.Errorf("%w: end of packet 0x%02X", ErrInvalidFrame, frame[len(frame)-1])
	}

	dataLen := int(binary.LittleEndian.Uint16(frame[2:4]))
	if len(frame) != MinFrameSize+dataLen {
		return 0, nil, fmt.Errorf("%w: got %d bytes, length field says %d", ErrInvalidFrame, len(frame), MinFrameSize+dataLen)
	}

	expected := binary.LittleEndian.Uint16(frame[len(frame)-3 : len(frame)-1])
	if actual := checksum(frame[1 : len(frame)-3]); actual != expected {
		return 0, nil, fmt.Errorf("%w: got 0x%04X, expected 0x%04X", ErrChecksumMismatch, actual, expected)
	}

	if dataLen > 0 {
		data = frame[headerSize : headerSize+dataLen]
	}
	return frame[1], data, nil
}

// ReadFrame reads exactly one frame from r. Bytes before the next
// start-of-packet marker are discarded. It does not verify the checksum;
// pass the result to ParseFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(r, header[:1]); err != nil {
			return nil, err
		}
		if header[0] == StartOfPacket {
			break
		}
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, noEOF(err)
	}

	dataLen := int(binary.LittleEndian.Uint16(header[2:4]))
	if dataLen > MaxDataSize {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrInvalidFrame, dataLen, MaxDataSize)
	}

	frame := make([]byte, MinFrameSize+dataLen)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[headerSize:]); err != nil {
		return nil, noEOF(err)
	}
	return frame, nil
}

// noEOF reports a stream that ends inside a frame as truncated.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ParseRead32Response extracts the loaded word from a Read32 response.
func ParseRead32Response(data []byte) (uint32, error) {
	if len(data) != Read32ResponseSize {
		return 0, fmt.Errorf("invalid data length for Read32 response: got %d bytes, expected %d", len(data), Read32ResponseSize)
	}
	return binary.LittleEndian.Uint32(data), nil
}
