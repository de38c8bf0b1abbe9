// connid.go implements v1 (8-byte) and v2 (16-byte) connection identifiers.
//
// Connection identifiers tag which session a datagram belongs to without
// revealing session state. The v2 form reserves four special values that
// random generation never produces, supports a self-inverse sequence-keyed
// rotation against cross-datagram tracking, and provides a lossy migration
// path from the legacy v1 form.
package frame

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
)

// ConnectionID is the legacy v1 8-byte connection identifier.
type ConnectionID [constants.ConnectionIDSize]byte

// GenerateConnectionID returns a random, non-zero v1 connection identifier.
func GenerateConnectionID() (ConnectionID, error) {
	var cid ConnectionID
	if err := crypto.SecureRandom(cid[:]); err != nil {
		return ConnectionID{}, err
	}
	if cid == (ConnectionID{}) {
		cid[0] = 0x01
	}
	return cid, nil
}

// ConnectionIDFromBytes builds a v1 identifier from exactly 8 bytes.
func ConnectionIDFromBytes(b []byte) (ConnectionID, error) {
	if len(b) != constants.ConnectionIDSize {
		return ConnectionID{}, serrors.ErrBufferTooSmall
	}
	var cid ConnectionID
	copy(cid[:], b)
	return cid, nil
}

// Bytes returns the identifier's raw bytes.
func (c ConnectionID) Bytes() []byte {
	out := make([]byte, len(c))
	copy(out, c[:])
	return out
}

// String returns the identifier in hex.
func (c ConnectionID) String() string {
	return hex.EncodeToString(c[:])
}

// ConnectionIDV2 is the 16-byte v2 connection identifier.
type ConnectionIDV2 [constants.ConnectionIDV2Size]byte

// Reserved v2 connection identifiers. Generate never returns these.
var (
	// ConnectionIDInvalid is the all-zero invalid marker.
	ConnectionIDInvalid = ConnectionIDV2{}

	// ConnectionIDHandshake marks handshake initiation datagrams (all 0xFF).
	ConnectionIDHandshake = ConnectionIDV2{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	}

	// ConnectionIDVersionNegotiation marks version negotiation datagrams.
	ConnectionIDVersionNegotiation = ConnectionIDV2{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE,
	}

	// ConnectionIDStatelessReset marks stateless reset datagrams.
	ConnectionIDStatelessReset = ConnectionIDV2{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFD,
	}
)

// GenerateConnectionIDV2 returns a cryptographically random v2 identifier.
// Reserved values are never produced: the astronomically unlikely collision
// is handled by flipping a bit rather than looping on the CSPRNG.
func GenerateConnectionIDV2() (ConnectionIDV2, error) {
	var cid ConnectionIDV2
	if err := crypto.SecureRandom(cid[:]); err != nil {
		return ConnectionIDV2{}, err
	}
	if cid == ConnectionIDInvalid || cid.IsSpecial() {
		cid[0] ^= 0x01
	}
	return cid, nil
}

// ConnectionIDV2FromBytes builds a v2 identifier from exactly 16 bytes.
func ConnectionIDV2FromBytes(b []byte) (ConnectionIDV2, error) {
	if len(b) != constants.ConnectionIDV2Size {
		return ConnectionIDV2{}, serrors.ErrBufferTooSmall
	}
	var cid ConnectionIDV2
	copy(cid[:], b)
	return cid, nil
}

// Bytes returns the identifier's raw bytes.
func (c ConnectionIDV2) Bytes() []byte {
	out := make([]byte, len(c))
	copy(out, c[:])
	return out
}

// String returns the identifier in hex.
func (c ConnectionIDV2) String() string {
	return hex.EncodeToString(c[:])
}

// IsSpecial reports whether c is one of the reserved marker values
// (handshake, version negotiation, stateless reset).
func (c ConnectionIDV2) IsSpecial() bool {
	return c == ConnectionIDHandshake ||
		c == ConnectionIDVersionNegotiation ||
		c == ConnectionIDStatelessReset
}

// IsValid reports whether c is a usable session identifier: non-zero and
// not a reserved marker.
func (c ConnectionIDV2) IsValid() bool {
	return c != ConnectionIDInvalid && !c.IsSpecial()
}

// Rotate XORs the low 8 bytes with the big-endian sequence number. The
// operation is self-inverse: rotating twice with the same sequence restores
// the original identifier, which is how the receiving side unrotates.
func (c ConnectionIDV2) Rotate(seq uint64) ConnectionIDV2 {
	out := c
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	for i := 0; i < 8; i++ {
		out[8+i] ^= seqBytes[i]
	}
	return out
}

// ConnectionIDV2FromV1 migrates a legacy 8-byte identifier upward: the v1
// bytes occupy the high 8 bytes and the low 8 bytes stay zero, which is what
// tags the identifier as migrated. An all-zero v1 identifier migrates to the
// invalid marker; callers should treat that edge case as a fresh-ID signal.
func ConnectionIDV2FromV1(v1 ConnectionID) ConnectionIDV2 {
	var cid ConnectionIDV2
	copy(cid[:8], v1[:])
	return cid
}

// IsMigratedV1 reports whether c came from a v1 identifier: non-zero high
// 8 bytes with all-zero low 8 bytes.
func (c ConnectionIDV2) IsMigratedV1() bool {
	upperNonzero := false
	for _, b := range c[:8] {
		if b != 0 {
			upperNonzero = true
			break
		}
	}
	if !upperNonzero {
		return false
	}
	for _, b := range c[8:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// ToV1 extracts the original v1 identifier from a migrated v2 one.
// Returns false if c is not a migrated v1 identifier.
func (c ConnectionIDV2) ToV1() (ConnectionID, bool) {
	if !c.IsMigratedV1() {
		return ConnectionID{}, false
	}
	var v1 ConnectionID
	copy(v1[:], c[:8])
	return v1, true
}
