// header.go implements the fixed 24-byte v2 frame header codec.
//
// Layout (all multi-byte fields little-endian):
//
//	Offset  Size  Field
//	0       1     Version (0x20 = v2.0)
//	1       1     Frame Type
//	2       2     Flags
//	4       8     Sequence Number
//	12      4     Payload Length
//	16      4     Stream ID
//	20      4     Reserved / Extension
package frame

import (
	"encoding/binary"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// HeaderV2 is the logical v2 frame header.
type HeaderV2 struct {
	// Version is the protocol version byte (0x20 for v2.0)
	Version uint8

	// FrameType identifies the frame's purpose
	FrameType Type

	// Flags is the 16-bit flag bitset
	Flags Flags

	// Sequence is the 64-bit packet sequence number
	Sequence uint64

	// Length is the payload length in bytes
	Length uint32

	// StreamID identifies the logical stream within the session
	StreamID uint32

	// Reserved is kept zero; reserved for future extension
	Reserved uint32
}

// NewHeaderV2 creates a v2 header with defaults for the given frame type.
func NewHeaderV2(t Type) *HeaderV2 {
	return &HeaderV2{
		Version:   constants.ProtocolVersionV2,
		FrameType: t,
	}
}

// Encode serializes the header into a fresh 24-byte buffer.
func (h *HeaderV2) Encode() []byte {
	buf := make([]byte, constants.FrameHeaderV2Size)
	h.EncodeInto(buf)
	return buf
}

// EncodeInto serializes the header into buf, which must hold at least
// 24 bytes.
func (h *HeaderV2) EncodeInto(buf []byte) error {
	if len(buf) < constants.FrameHeaderV2Size {
		return serrors.ErrBufferTooSmall
	}

	buf[0] = h.Version
	buf[1] = uint8(h.FrameType)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(h.Flags))
	binary.LittleEndian.PutUint64(buf[4:12], h.Sequence)
	binary.LittleEndian.PutUint32(buf[12:16], h.Length)
	binary.LittleEndian.PutUint32(buf[16:20], h.StreamID)
	binary.LittleEndian.PutUint32(buf[20:24], h.Reserved)
	return nil
}

// DecodeHeaderV2 parses a v2 header from buf.
//
// Decoding is strict: buffers shorter than 24 bytes and frame-type bytes
// outside the closed enumeration are rejected.
func DecodeHeaderV2(buf []byte) (*HeaderV2, error) {
	if len(buf) < constants.FrameHeaderV2Size {
		return nil, serrors.ErrBufferTooSmall
	}

	frameType, err := ParseType(buf[1])
	if err != nil {
		return nil, err
	}

	return &HeaderV2{
		Version:   buf[0],
		FrameType: frameType,
		Flags:     Flags(binary.LittleEndian.Uint16(buf[2:4])),
		Sequence:  binary.LittleEndian.Uint64(buf[4:12]),
		Length:    binary.LittleEndian.Uint32(buf[12:16]),
		StreamID:  binary.LittleEndian.Uint32(buf[16:20]),
		Reserved:  binary.LittleEndian.Uint32(buf[20:24]),
	}, nil
}
