// Package suite defines the closed set of cipher suites and suite negotiation.
//
// A suite bundles the key-exchange construction (hybrid classical+post-quantum
// or classical-only) with the AEAD algorithm protecting traffic. The set is
// closed and totally ordered by strength: negotiation between two ordered
// preference lists always selects the strongest suite both sides support.
package suite

import (
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
)

// Suite identifies a cipher suite. The set is closed; values outside the
// defined constants are rejected at every boundary.
type Suite uint8

const (
	// SuiteMaxPQ is X25519 + ML-KEM-1024 with XChaCha20-Poly1305.
	// NIST Category 5, the strongest supported suite.
	SuiteMaxPQ Suite = 0x01

	// SuiteBalancedPQ is X25519 + ML-KEM-768 with XChaCha20-Poly1305.
	// NIST Category 3, the default suite.
	SuiteBalancedPQ Suite = 0x02

	// SuiteHardwarePQ is X25519 + ML-KEM-768 with AES-256-GCM for hosts
	// with AES hardware acceleration.
	SuiteHardwarePQ Suite = 0x03

	// SuiteClassical is X25519 only with ChaCha20-Poly1305. No post-quantum
	// component; intended for constrained peers and interop testing.
	SuiteClassical Suite = 0x04
)

// priority orders suites strongest first. Negotiation walks this order.
var priority = []Suite{SuiteMaxPQ, SuiteBalancedPQ, SuiteHardwarePQ, SuiteClassical}

// DefaultSuites returns the full supported list in preference order.
func DefaultSuites() []Suite {
	out := make([]Suite, len(priority))
	copy(out, priority)
	return out
}

// String returns the canonical suite name.
func (s Suite) String() string {
	switch s {
	case SuiteMaxPQ:
		return "MaxPQ-X25519-MLKEM1024-XChaCha20"
	case SuiteBalancedPQ:
		return "BalancedPQ-X25519-MLKEM768-XChaCha20"
	case SuiteHardwarePQ:
		return "HardwarePQ-X25519-MLKEM768-AESGCM"
	case SuiteClassical:
		return "Classical-X25519-ChaCha20"
	default:
		return "Unknown"
	}
}

// IsValid reports whether s is a member of the closed suite set.
func (s Suite) IsValid() bool {
	switch s {
	case SuiteMaxPQ, SuiteBalancedPQ, SuiteHardwarePQ, SuiteClassical:
		return true
	default:
		return false
	}
}

// SupportsPostQuantum reports whether the suite carries an ML-KEM component.
func (s Suite) SupportsPostQuantum() bool {
	return s == SuiteMaxPQ || s == SuiteBalancedPQ || s == SuiteHardwarePQ
}

// KEMVariant returns the ML-KEM parameter set for post-quantum suites.
// Calling this on SuiteClassical is a programming error; the returned value
// is only meaningful when SupportsPostQuantum is true.
func (s Suite) KEMVariant() crypto.MLKEMVariant {
	if s == SuiteMaxPQ {
		return crypto.MLKEM1024
	}
	return crypto.MLKEM768
}

// AEADAlgorithm returns the AEAD algorithm the suite protects traffic with.
func (s Suite) AEADAlgorithm() crypto.AEADAlgorithm {
	switch s {
	case SuiteHardwarePQ:
		return crypto.AlgAES256GCM
	case SuiteClassical:
		return crypto.AlgChaCha20Poly1305
	default:
		return crypto.AlgXChaCha20Poly1305
	}
}

// WireID returns the one-byte wire identifier for the suite.
func (s Suite) WireID() uint8 {
	return uint8(s)
}

// FromWireID parses a suite from its wire identifier.
func FromWireID(id uint8) (Suite, error) {
	s := Suite(id)
	if !s.IsValid() {
		return 0, serrors.ErrUnknownSuite
	}
	return s, nil
}

// Negotiate selects the strongest suite present in both preference lists.
//
// The result is deterministic and symmetric: Negotiate(a, b) and
// Negotiate(b, a) always agree, because selection follows the fixed global
// strength order rather than either peer's list order. Unknown values in
// either list are ignored. No overlap returns ErrNoCommonSuite.
func Negotiate(local, remote []Suite) (Suite, error) {
	localSet := toSet(local)
	remoteSet := toSet(remote)

	for _, s := range priority {
		if localSet[s] && remoteSet[s] {
			return s, nil
		}
	}
	return 0, serrors.ErrNoCommonSuite
}

func toSet(suites []Suite) map[Suite]bool {
	set := make(map[Suite]bool, len(suites))
	for _, s := range suites {
		if s.IsValid() {
			set[s] = true
		}
	}
	return set
}

// EncodeList serializes a preference list to wire bytes.
func EncodeList(suites []Suite) []byte {
	out := make([]byte, 0, len(suites))
	for _, s := range suites {
		if s.IsValid() {
			out = append(out, s.WireID())
		}
	}
	return out
}

// DecodeList parses a wire-encoded preference list. Unknown identifiers are
// rejected outright rather than skipped, so a peer advertising garbage is
// detected instead of silently down-negotiated.
func DecodeList(data []byte) ([]Suite, error) {
	out := make([]Suite, 0, len(data))
	for _, id := range data {
		s, err := FromWireID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
