// Package frame implements the wire framing layer: the fixed 24-byte v2
// header, the closed frame-type enumeration, the key-derived polymorphic
// header encoding, connection identifiers, and the compatibility layer
// bridging the legacy 28-byte v1 header format.
package frame

import (
	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// Type is a v2 frame type. The enumeration is closed: decoding any byte
// outside it is rejected via the lookup table, never passed through.
//
// Types are grouped by purpose:
//   - Data frames (0x00-0x0F): payload delivery
//   - Control frames (0x10-0x1F): session management
//   - Crypto frames (0x20-0x2F): key management
//   - Stream frames (0x30-0x3F): stream lifecycle
//   - Path frames (0x40-0x4F): multi-path and migration
//   - Session frames (0x50-0x5F): session lifecycle
//   - Obfuscation frames (0xF0-0xFF): traffic analysis resistance
type Type uint8

const (
	// Data frames
	TypeData     Type = 0x00
	TypeDataFin  Type = 0x01
	TypeDatagram Type = 0x02

	// Control frames
	TypeAck          Type = 0x10
	TypeAckEcn       Type = 0x11
	TypePing         Type = 0x12
	TypePong         Type = 0x13
	TypeWindowUpdate Type = 0x14
	TypeGoAway       Type = 0x15

	// Crypto frames
	TypeRekey    Type = 0x20
	TypeRekeyAck Type = 0x21

	// Stream frames
	TypeStreamOpen   Type = 0x30
	TypeStreamData   Type = 0x31
	TypeStreamClose  Type = 0x32
	TypeStreamReset  Type = 0x33
	TypeStreamWindow Type = 0x34

	// Path frames
	TypePathChallenge Type = 0x40
	TypePathResponse  Type = 0x41
	TypePathMigrate   Type = 0x42

	// Session frames
	TypeClose    Type = 0x50
	TypeCloseAck Type = 0x51

	// Obfuscation frames
	TypePadding       Type = 0xF0
	TypePaddingRandom Type = 0xF1
)

// validType maps byte values to frame-type validity. Table lookup keeps
// decode validation branch-free and exhaustive over the full byte range.
var validType = [256]bool{
	TypeData: true, TypeDataFin: true, TypeDatagram: true,
	TypeAck: true, TypeAckEcn: true, TypePing: true, TypePong: true,
	TypeWindowUpdate: true, TypeGoAway: true,
	TypeRekey: true, TypeRekeyAck: true,
	TypeStreamOpen: true, TypeStreamData: true, TypeStreamClose: true,
	TypeStreamReset: true, TypeStreamWindow: true,
	TypePathChallenge: true, TypePathResponse: true, TypePathMigrate: true,
	TypeClose: true, TypeCloseAck: true,
	TypePadding: true, TypePaddingRandom: true,
}

// ValidTypeByte reports whether b is a known v2 frame type.
func ValidTypeByte(b uint8) bool {
	return validType[b]
}

// ParseType converts a byte to a frame type, rejecting unknown values.
func ParseType(b uint8) (Type, error) {
	if !validType[b] {
		return 0, serrors.ErrInvalidFrameType
	}
	return Type(b), nil
}

// IsData reports whether the type is a data frame (0x00-0x0F).
func (t Type) IsData() bool { return uint8(t) < 0x10 }

// IsControl reports whether the type is a control frame (0x10-0x1F).
func (t Type) IsControl() bool { return uint8(t) >= 0x10 && uint8(t) < 0x20 }

// IsCrypto reports whether the type is a crypto frame (0x20-0x2F).
func (t Type) IsCrypto() bool { return uint8(t) >= 0x20 && uint8(t) < 0x30 }

// IsStream reports whether the type is a stream frame (0x30-0x3F).
func (t Type) IsStream() bool { return uint8(t) >= 0x30 && uint8(t) < 0x40 }

// IsPath reports whether the type is a path frame (0x40-0x4F).
func (t Type) IsPath() bool { return uint8(t) >= 0x40 && uint8(t) < 0x50 }

// IsSession reports whether the type is a session frame (0x50-0x5F).
func (t Type) IsSession() bool { return uint8(t) >= 0x50 && uint8(t) < 0x60 }

// IsObfuscation reports whether the type is an obfuscation frame (0xF0-0xFF).
func (t Type) IsObfuscation() bool { return uint8(t) >= 0xF0 }

// Category returns the category name of the frame type.
func (t Type) Category() string {
	switch {
	case t.IsData():
		return "data"
	case t.IsControl():
		return "control"
	case t.IsCrypto():
		return "crypto"
	case t.IsStream():
		return "stream"
	case t.IsPath():
		return "path"
	case t.IsSession():
		return "session"
	default:
		return "obfuscation"
	}
}

// Flags is the 16-bit frame flag bitset.
type Flags uint16

const (
	// FlagSYN marks stream synchronization / initiation
	FlagSYN Flags = 1 << 0

	// FlagFIN marks the final frame in a stream
	FlagFIN Flags = 1 << 1

	// FlagACK marks acknowledgment data present
	FlagACK Flags = 1 << 2

	// FlagPRI marks a priority frame for expedited processing
	FlagPRI Flags = 1 << 3

	// FlagCMP marks a compressed payload
	FlagCMP Flags = 1 << 4

	// FlagECN carries explicit congestion notification
	FlagECN Flags = 1 << 5

	// FlagRTX marks a retransmitted frame
	FlagRTX Flags = 1 << 6

	// FlagEXT marks extension headers present
	FlagEXT Flags = 1 << 7
)

// Contains reports whether all bits in flag are set.
func (f Flags) Contains(flag Flags) bool {
	return f&flag == flag
}

// With returns f with flag set.
func (f Flags) With(flag Flags) Flags {
	return f | flag
}

// Without returns f with flag cleared.
func (f Flags) Without(flag Flags) Flags {
	return f &^ flag
}
