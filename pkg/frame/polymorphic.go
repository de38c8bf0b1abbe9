// polymorphic.go implements the per-session polymorphic header encoding.
//
// A session's format key deterministically derives a permutation of the 7
// header fields onto the 24 physical bytes plus an XOR mask over the whole
// header, so the wire layout looks random to a passive observer and differs
// per session. Both peers hold the same format key and derive the identical
// bijection independently; no layout information ever appears on the wire.
//
// Algorithm:
//
//  1. Derive a position key and an XOR mask from the format key (SHAKE-256,
//     distinct labels).
//  2. Compute field positions via a Fisher-Yates shuffle seeded by the
//     position key.
//  3. Encode header fields at the shuffled byte offsets.
//  4. XOR the entire 24-byte header with the mask.
//
// Decoding reverses: XOR to unmask, then read fields from derived positions.
package frame

import (
	"encoding/binary"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
)

// fieldCount is the number of header fields that are permuted.
const fieldCount = 7

// fieldSizes lists field widths in bytes, indexed by field ID.
// Order: Version(1), FrameType(1), Flags(2), Sequence(8), Length(4),
// StreamID(4), Reserved(4). The sizes tile the 24-byte header exactly.
var fieldSizes = [fieldCount]int{1, 1, 2, 8, 4, 4, 4}

// PolymorphicFormat is a per-session bijection between logical header bytes
// and physical wire positions, plus an XOR mask.
type PolymorphicFormat struct {
	// fieldOffsets holds the physical byte offset of each field.
	fieldOffsets [fieldCount]int

	// xorMask is applied to the whole encoded header.
	xorMask []byte
}

// DerivePolymorphicFormat computes the per-session format from a 32-byte
// format key. Deterministic: the same key always yields the same bijection,
// so two peers sharing the key agree without communication.
func DerivePolymorphicFormat(formatKey []byte) (*PolymorphicFormat, error) {
	if len(formatKey) != constants.KDFOutputSize {
		return nil, serrors.ErrInvalidKeySize
	}

	positionKey, err := crypto.DeriveKey(constants.LabelPolyPositions, formatKey, constants.KDFOutputSize)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(positionKey)

	xorMask, err := crypto.DeriveKey(constants.LabelPolyMask, formatKey, constants.KDFOutputSize)
	if err != nil {
		return nil, err
	}

	return &PolymorphicFormat{
		fieldOffsets: derivePositions(positionKey),
		xorMask:      xorMask,
	}, nil
}

// derivePositions shuffles the field order with Fisher-Yates seeded by the
// position key, then lays the fields out contiguously in shuffled order.
// Every field gets a non-overlapping range and the ranges exactly tile the
// 24-byte header.
func derivePositions(positionKey []byte) [fieldCount]int {
	perm := [fieldCount]int{0, 1, 2, 3, 4, 5, 6}

	for i := fieldCount - 1; i >= 1; i-- {
		randByte := int(positionKey[i%len(positionKey)])
		j := randByte % (i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	var offsets [fieldCount]int
	pos := 0
	for _, fieldID := range perm {
		offsets[fieldID] = pos
		pos += fieldSizes[fieldID]
	}
	return offsets
}

// EncodeHeader encodes a v2 header using the polymorphic layout: fields at
// derived positions, then the XOR mask over all 24 bytes.
func (p *PolymorphicFormat) EncodeHeader(h *HeaderV2) []byte {
	buf := make([]byte, constants.FrameHeaderV2Size)

	buf[p.fieldOffsets[0]] = h.Version
	buf[p.fieldOffsets[1]] = uint8(h.FrameType)
	binary.LittleEndian.PutUint16(buf[p.fieldOffsets[2]:], uint16(h.Flags))
	binary.LittleEndian.PutUint64(buf[p.fieldOffsets[3]:], h.Sequence)
	binary.LittleEndian.PutUint32(buf[p.fieldOffsets[4]:], h.Length)
	binary.LittleEndian.PutUint32(buf[p.fieldOffsets[5]:], h.StreamID)
	binary.LittleEndian.PutUint32(buf[p.fieldOffsets[6]:], h.Reserved)

	for i := range buf {
		buf[i] ^= p.xorMask[i%len(p.xorMask)]
	}
	return buf
}

// DecodeHeader inverts EncodeHeader: unmask, then read fields from derived
// positions. A buffer encoded under a different format key either fails the
// frame-type check or yields scrambled field values; it never reconstructs
// the original header.
func (p *PolymorphicFormat) DecodeHeader(data []byte) (*HeaderV2, error) {
	if len(data) < constants.FrameHeaderV2Size {
		return nil, serrors.ErrBufferTooSmall
	}

	buf := make([]byte, constants.FrameHeaderV2Size)
	for i := range buf {
		buf[i] = data[i] ^ p.xorMask[i%len(p.xorMask)]
	}

	frameType, err := ParseType(buf[p.fieldOffsets[1]])
	if err != nil {
		return nil, err
	}

	return &HeaderV2{
		Version:   buf[p.fieldOffsets[0]],
		FrameType: frameType,
		Flags:     Flags(binary.LittleEndian.Uint16(buf[p.fieldOffsets[2]:])),
		Sequence:  binary.LittleEndian.Uint64(buf[p.fieldOffsets[3]:]),
		Length:    binary.LittleEndian.Uint32(buf[p.fieldOffsets[4]:]),
		StreamID:  binary.LittleEndian.Uint32(buf[p.fieldOffsets[5]:]),
		Reserved:  binary.LittleEndian.Uint32(buf[p.fieldOffsets[6]:]),
	}, nil
}

// Offsets returns the physical byte offset of each field, indexed by field
// ID in declaration order. Exposed for layout verification in tests.
func (p *PolymorphicFormat) Offsets() [fieldCount]int {
	return p.fieldOffsets
}

// FieldSizes returns the field widths in bytes, indexed by field ID.
func FieldSizes() [fieldCount]int {
	return fieldSizes
}

// Zeroize destroys the XOR mask. The offsets alone do not reveal the key.
func (p *PolymorphicFormat) Zeroize() {
	crypto.Zeroize(p.xorMask)
}
