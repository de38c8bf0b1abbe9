// compat.go bridges the legacy 28-byte v1 wire format and the current
// v2 formats. It covers format detection on undifferentiated ingress
// bytes, format negotiation between peers with differing capabilities,
// the v1 header codec, and lossy header conversion in both directions.
package frame

import (
	"encoding/binary"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// WireFormat identifies the header encoding in use on a connection.
type WireFormat uint8

const (
	// FormatV1 is the legacy 28-byte big-endian header.
	FormatV1 WireFormat = iota

	// FormatV2 is the 24-byte little-endian header in plain field order.
	FormatV2

	// FormatV2Polymorphic is the 24-byte header with key-derived field
	// permutation and masking.
	FormatV2Polymorphic
)

// String returns the format name.
func (f WireFormat) String() string {
	switch f {
	case FormatV1:
		return "v1"
	case FormatV2:
		return "v2"
	case FormatV2Polymorphic:
		return "v2-polymorphic"
	default:
		return "unknown"
	}
}

// HeaderSize returns the encoded header size in bytes for the format.
func (f WireFormat) HeaderSize() int {
	if f == FormatV1 {
		return constants.FrameHeaderV1Size
	}
	return constants.FrameHeaderV2Size
}

// IsV2 reports whether the format uses the v2 header layout.
func (f WireFormat) IsV2() bool {
	return f == FormatV2 || f == FormatV2Polymorphic
}

// FormatNegotiation holds one endpoint's wire-format capabilities and
// preference, exchanged during the handshake.
type FormatNegotiation struct {
	// Preferred is the format this endpoint would rather use.
	Preferred WireFormat

	// AllowV1 permits falling back to the legacy v1 format.
	AllowV1 bool

	// AllowV2Plain permits the v2 format without polymorphic encoding.
	AllowV2Plain bool
}

// DefaultFormatNegotiation prefers polymorphic v2 while accepting
// everything, for maximum interoperability.
func DefaultFormatNegotiation() FormatNegotiation {
	return FormatNegotiation{
		Preferred:    FormatV2Polymorphic,
		AllowV1:      true,
		AllowV2Plain: true,
	}
}

// V2OnlyNegotiation refuses the legacy v1 format.
func V2OnlyNegotiation() FormatNegotiation {
	return FormatNegotiation{
		Preferred:    FormatV2Polymorphic,
		AllowV1:      false,
		AllowV2Plain: true,
	}
}

// V1OnlyNegotiation pins the legacy format, for peers that predate v2.
func V1OnlyNegotiation() FormatNegotiation {
	return FormatNegotiation{
		Preferred:    FormatV1,
		AllowV1:      true,
		AllowV2Plain: false,
	}
}

// Supports reports whether the endpoint accepts the given format.
func (n FormatNegotiation) Supports(f WireFormat) bool {
	switch f {
	case FormatV1:
		return n.AllowV1
	case FormatV2:
		return n.AllowV2Plain || n.Preferred == FormatV2
	case FormatV2Polymorphic:
		return n.Preferred == FormatV2Polymorphic || n.AllowV2Plain
	default:
		return false
	}
}

// NegotiateFormat selects the wire format for a connection between two
// endpoints. Candidates are tried from most to least capable, so the
// result is symmetric in its arguments.
func NegotiateFormat(local, remote FormatNegotiation) (WireFormat, error) {
	candidates := [3]WireFormat{FormatV2Polymorphic, FormatV2, FormatV1}
	for _, f := range candidates {
		if local.Supports(f) && remote.Supports(f) {
			return f, nil
		}
	}
	return 0, serrors.ErrNoCommonFormat
}

// DetectFormat classifies raw ingress bytes as a v1 or v2 frame.
//
// The heuristic fails closed: anything that does not match a known
// layout is reported as unknown rather than guessed at. Polymorphic v2
// frames are indistinguishable from noise without the format key and
// are never detected here.
func DetectFormat(data []byte) (WireFormat, error) {
	if len(data) >= constants.FrameHeaderV2Size &&
		data[0] == constants.ProtocolVersionV2 && ValidTypeByte(data[1]) {
		return FormatV2, nil
	}

	// v1 places the frame type at byte 8, after the nonce.
	if len(data) >= constants.FrameHeaderV1Size &&
		data[8] >= uint8(TypeV1Data) && data[8] <= uint8(TypeV1PathResponse) {
		return FormatV1, nil
	}

	return 0, serrors.ErrUnknownFormat
}

// TypeV1 is a legacy v1 frame type. The v1 numbering is dense and
// uncategorized; 0x00 is reserved and invalid on the wire.
type TypeV1 uint8

const (
	TypeV1Data          TypeV1 = 0x01
	TypeV1Ack           TypeV1 = 0x02
	TypeV1Control       TypeV1 = 0x03
	TypeV1Rekey         TypeV1 = 0x04
	TypeV1Ping          TypeV1 = 0x05
	TypeV1Pong          TypeV1 = 0x06
	TypeV1Close         TypeV1 = 0x07
	TypeV1Pad           TypeV1 = 0x08
	TypeV1StreamOpen    TypeV1 = 0x09
	TypeV1StreamClose   TypeV1 = 0x0A
	TypeV1StreamReset   TypeV1 = 0x0B
	TypeV1WindowUpdate  TypeV1 = 0x0C
	TypeV1GoAway        TypeV1 = 0x0D
	TypeV1PathChallenge TypeV1 = 0x0E
	TypeV1PathResponse  TypeV1 = 0x0F
)

// ParseTypeV1 converts a byte to a v1 frame type, rejecting values
// outside the legacy range.
func ParseTypeV1(b uint8) (TypeV1, error) {
	if b < uint8(TypeV1Data) || b > uint8(TypeV1PathResponse) {
		return 0, serrors.ErrInvalidFrameType
	}
	return TypeV1(b), nil
}

// HeaderV1 is the legacy 28-byte frame header.
//
// Layout (all multi-byte fields big-endian):
//
//	Offset  Size  Field
//	0       8     Nonce
//	8       1     Frame Type
//	9       1     Flags
//	10      2     Stream ID
//	12      4     Sequence Number
//	16      8     Offset
//	24      2     Payload Length
//	26      2     Reserved
type HeaderV1 struct {
	Nonce      uint64
	FrameType  TypeV1
	Flags      uint8
	StreamID   uint16
	Sequence   uint32
	Offset     uint64
	PayloadLen uint16
	Reserved   uint16
}

// Encode serializes the v1 header into a fresh 28-byte buffer.
func (h *HeaderV1) Encode() []byte {
	buf := make([]byte, constants.FrameHeaderV1Size)
	binary.BigEndian.PutUint64(buf[0:8], h.Nonce)
	buf[8] = uint8(h.FrameType)
	buf[9] = h.Flags
	binary.BigEndian.PutUint16(buf[10:12], h.StreamID)
	binary.BigEndian.PutUint32(buf[12:16], h.Sequence)
	binary.BigEndian.PutUint64(buf[16:24], h.Offset)
	binary.BigEndian.PutUint16(buf[24:26], h.PayloadLen)
	binary.BigEndian.PutUint16(buf[26:28], h.Reserved)
	return buf
}

// DecodeHeaderV1 parses a legacy v1 header from buf.
func DecodeHeaderV1(buf []byte) (*HeaderV1, error) {
	if len(buf) < constants.FrameHeaderV1Size {
		return nil, serrors.ErrBufferTooSmall
	}

	frameType, err := ParseTypeV1(buf[8])
	if err != nil {
		return nil, err
	}

	return &HeaderV1{
		Nonce:      binary.BigEndian.Uint64(buf[0:8]),
		FrameType:  frameType,
		Flags:      buf[9],
		StreamID:   binary.BigEndian.Uint16(buf[10:12]),
		Sequence:   binary.BigEndian.Uint32(buf[12:16]),
		Offset:     binary.BigEndian.Uint64(buf[16:24]),
		PayloadLen: binary.BigEndian.Uint16(buf[24:26]),
		Reserved:   binary.BigEndian.Uint16(buf[26:28]),
	}, nil
}

// typeV1ToV2 maps legacy types onto the nearest v2 equivalent.
func typeV1ToV2(t TypeV1) Type {
	switch t {
	case TypeV1Data:
		return TypeData
	case TypeV1Ack:
		return TypeAck
	case TypeV1Control, TypeV1GoAway:
		return TypeGoAway
	case TypeV1Rekey:
		return TypeRekey
	case TypeV1Ping:
		return TypePing
	case TypeV1Pong:
		return TypePong
	case TypeV1Close:
		return TypeClose
	case TypeV1Pad:
		return TypePadding
	case TypeV1StreamOpen:
		return TypeStreamOpen
	case TypeV1StreamClose:
		return TypeStreamClose
	case TypeV1StreamReset:
		return TypeStreamReset
	case TypeV1WindowUpdate:
		return TypeWindowUpdate
	case TypeV1PathChallenge:
		return TypePathChallenge
	case TypeV1PathResponse:
		return TypePathResponse
	default:
		return TypePadding
	}
}

// typeV2ToV1 maps v2 types back to a legacy type, collapsing variants
// that v1 does not distinguish. Types with no v1 equivalent map to
// (0, false).
func typeV2ToV1(t Type) (TypeV1, bool) {
	switch t {
	case TypeData, TypeDataFin:
		return TypeV1Data, true
	case TypeAck, TypeAckEcn:
		return TypeV1Ack, true
	case TypePing:
		return TypeV1Ping, true
	case TypePong:
		return TypeV1Pong, true
	case TypeRekey, TypeRekeyAck:
		return TypeV1Rekey, true
	case TypeStreamOpen:
		return TypeV1StreamOpen, true
	case TypeStreamClose:
		return TypeV1StreamClose, true
	case TypeStreamReset:
		return TypeV1StreamReset, true
	case TypeWindowUpdate, TypeStreamWindow:
		return TypeV1WindowUpdate, true
	case TypeGoAway:
		return TypeV1GoAway, true
	case TypePathChallenge:
		return TypeV1PathChallenge, true
	case TypePathResponse:
		return TypeV1PathResponse, true
	case TypeClose, TypeCloseAck:
		return TypeV1Close, true
	case TypePadding, TypePaddingRandom:
		return TypeV1Pad, true
	default:
		return 0, false
	}
}

// V1HeaderToV2 lifts a legacy header into the v2 layout. All v1 field
// widths fit in v2, so the conversion is lossless except for the byte
// offset, which v2 carries in the payload rather than the header.
func V1HeaderToV2(v1 *HeaderV1) *HeaderV2 {
	return &HeaderV2{
		Version:   constants.ProtocolVersionV2,
		FrameType: typeV1ToV2(v1.FrameType),
		Flags:     Flags(v1.Flags),
		Sequence:  uint64(v1.Sequence),
		Length:    uint32(v1.PayloadLen),
		StreamID:  uint32(v1.StreamID),
		Reserved:  uint32(v1.Reserved),
	}
}

// V2HeaderToV1 lowers a v2 header to the legacy layout for peers that
// only speak v1.
//
// Sequence, length, and stream ID are truncated to their low-order v1
// widths; flag bits above the low byte are dropped. Callers on mixed
// connections must keep sequence numbers and stream IDs inside the v1
// ranges if round-tripping matters. Frame types with no v1 equivalent
// return ErrInvalidFrameType.
func V2HeaderToV1(v2 *HeaderV2) (*HeaderV1, error) {
	t, ok := typeV2ToV1(v2.FrameType)
	if !ok {
		return nil, serrors.ErrInvalidFrameType
	}

	return &HeaderV1{
		FrameType:  t,
		Flags:      uint8(v2.Flags),
		StreamID:   uint16(v2.StreamID),
		Sequence:   uint32(v2.Sequence),
		PayloadLen: uint16(v2.Length),
		Reserved:   uint16(v2.Reserved),
	}, nil
}
