// Package hybrid implements the hybrid key encapsulation mechanism combining
// X25519 with ML-KEM.
//
// # Security Model
//
// For post-quantum suites the mechanism provides IND-CCA2 security if EITHER
// X25519 OR ML-KEM is secure, under the random oracle model for SHAKE-256:
//
//  1. Quantum Resistance: ML-KEM resists attacks from quantum computers
//  2. Classical Security: X25519 provides defense if ML-KEM is broken
//  3. Defense in Depth: Both must fail for the system to be compromised
//
// The classical-only suite runs the X25519 path alone and produces a 32-byte
// wire payload instead of the multi-hundred-byte hybrid encapsulation.
//
// # Construction
//
// Encapsulation (post-quantum suites):
//
//	(sk_eph, pk_eph) ← X25519.KeyGen()
//	K_x ← X25519.DH(sk_eph, pk_x)
//	(ct_m, K_m) ← ML-KEM.Encaps(pk_m)
//	K ← SHAKE-256(suite_id || K_x || K_m, 256)
//
// Decapsulation mirrors the construction exactly. The encapsulation result is
// a closed sum type tagged by the suite, so a hybrid result can never be fed
// to a classical decapsulation path or vice versa.
package hybrid

import (
	"crypto/ecdh"

	"github.com/cloudflare/circl/kem"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

// SharedSecret is an owned 32-byte secret that can be explicitly destroyed.
// Callers must Zeroize it once session keys have been derived from it.
type SharedSecret struct {
	b []byte
}

// NewSharedSecret wraps secret bytes in an owned SharedSecret.
func NewSharedSecret(b []byte) *SharedSecret {
	return &SharedSecret{b: b}
}

// Bytes exposes the raw secret. The returned slice aliases the internal
// buffer; it becomes all-zero after Zeroize.
func (s *SharedSecret) Bytes() []byte {
	return s.b
}

// Zeroize destroys the secret material.
func (s *SharedSecret) Zeroize() {
	crypto.Zeroize(s.b)
}

// KeyPair is a hybrid key pair. The ML-KEM component is present only for
// suites that declare post-quantum support.
type KeyPair struct {
	suite suite.Suite

	x25519Public  *ecdh.PublicKey
	x25519Private *ecdh.PrivateKey

	mlkem *crypto.MLKEMKeyPair
}

// PublicKey is the public half of a hybrid key pair.
type PublicKey struct {
	suite  suite.Suite
	x25519 *ecdh.PublicKey
	mlkem  kem.PublicKey
}

// GenerateKeyPair generates a new hybrid key pair for the given suite.
//
// For post-quantum suites both an X25519 and an ML-KEM key pair are
// generated; for SuiteClassical only the X25519 pair.
//
// Returns:
//   - KeyPair: The generated key pair
//   - error: Non-nil if random number generation fails
func GenerateKeyPair(s suite.Suite) (*KeyPair, error) {
	if !s.IsValid() {
		return nil, serrors.ErrUnknownSuite
	}

	x25519KP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, serrors.NewCryptoError("hybrid.GenerateKeyPair", err)
	}

	kp := &KeyPair{
		suite:         s,
		x25519Public:  x25519KP.PublicKey,
		x25519Private: x25519KP.PrivateKey,
	}

	if s.SupportsPostQuantum() {
		mlkemKP, err := crypto.GenerateMLKEMKeyPair(s.KEMVariant())
		if err != nil {
			return nil, serrors.NewCryptoError("hybrid.GenerateKeyPair", err)
		}
		kp.mlkem = mlkemKP
	}

	return kp, nil
}

// Suite returns the suite the key pair was generated for.
func (kp *KeyPair) Suite() suite.Suite {
	return kp.suite
}

// PublicKey returns the public component of the key pair.
func (kp *KeyPair) PublicKey() *PublicKey {
	pk := &PublicKey{
		suite:  kp.suite,
		x25519: kp.x25519Public,
	}
	if kp.mlkem != nil {
		pk.mlkem = kp.mlkem.EncapsulationKey
	}
	return pk
}

// Zeroize drops references to the private key material.
func (kp *KeyPair) Zeroize() {
	kp.x25519Private = nil
	kp.x25519Public = nil
	if kp.mlkem != nil {
		kp.mlkem.Zeroize()
		kp.mlkem = nil
	}
}

// EncapsulationResult is a closed sum over the two encapsulation shapes.
// The tag is fixed by the negotiated suite, never chosen at runtime; the
// sealed interface keeps every implementation inside this package so call
// sites can switch exhaustively.
type EncapsulationResult interface {
	// Suite returns the suite the encapsulation was produced under.
	Suite() suite.Suite

	// Bytes serializes the result for the wire.
	Bytes() []byte

	sealed()
}

// HybridEncapsulation carries an X25519 ephemeral public value plus an
// ML-KEM ciphertext. Produced by post-quantum suites.
type HybridEncapsulation struct {
	s          suite.Suite
	ephemeral  []byte
	ciphertext []byte
}

func (h *HybridEncapsulation) sealed() {}

// Suite returns the suite the encapsulation was produced under.
func (h *HybridEncapsulation) Suite() suite.Suite { return h.s }

// Bytes serializes as x25519_ephemeral (32) || mlkem_ciphertext.
func (h *HybridEncapsulation) Bytes() []byte {
	out := make([]byte, len(h.ephemeral)+len(h.ciphertext))
	copy(out, h.ephemeral)
	copy(out[len(h.ephemeral):], h.ciphertext)
	return out
}

// ClassicalEncapsulation carries only the X25519 ephemeral public value.
// Produced by SuiteClassical; 32 bytes on the wire.
type ClassicalEncapsulation struct {
	ephemeral []byte
}

func (c *ClassicalEncapsulation) sealed() {}

// Suite returns SuiteClassical.
func (c *ClassicalEncapsulation) Suite() suite.Suite { return suite.SuiteClassical }

// Bytes serializes as x25519_ephemeral (32 bytes).
func (c *ClassicalEncapsulation) Bytes() []byte {
	out := make([]byte, len(c.ephemeral))
	copy(out, c.ephemeral)
	return out
}

// Encapsulate produces a shared secret against the recipient's public key.
//
// For post-quantum suites this performs both an ephemeral X25519 exchange and
// an ML-KEM encapsulation and combines the secrets; for SuiteClassical only
// the X25519 path runs.
//
// Returns:
//   - sharedSecret: 32-byte derived shared secret
//   - result: The wire encapsulation, tagged by suite
//   - error: Non-nil if key generation or encapsulation fails
func Encapsulate(recipientPublic *PublicKey) (*SharedSecret, EncapsulationResult, error) {
	if recipientPublic == nil || recipientPublic.x25519 == nil {
		return nil, nil, serrors.ErrInvalidPublicKey
	}

	ephemeralKP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, serrors.NewCryptoError("hybrid.Encapsulate", err)
	}

	x25519Secret, err := crypto.X25519(ephemeralKP.PrivateKey, recipientPublic.x25519)
	if err != nil {
		return nil, nil, serrors.NewCryptoError("hybrid.Encapsulate", err)
	}
	defer crypto.Zeroize(x25519Secret)

	if !recipientPublic.suite.SupportsPostQuantum() {
		secret, err := combineSecrets(recipientPublic.suite, x25519Secret, nil)
		if err != nil {
			return nil, nil, err
		}
		return secret, &ClassicalEncapsulation{ephemeral: ephemeralKP.PublicKeyBytes()}, nil
	}

	if recipientPublic.mlkem == nil {
		return nil, nil, serrors.ErrInvalidPublicKey
	}

	variant := recipientPublic.suite.KEMVariant()
	mlkemCiphertext, mlkemSecret, err := crypto.MLKEMEncapsulate(variant, recipientPublic.mlkem)
	if err != nil {
		return nil, nil, serrors.NewCryptoError("hybrid.Encapsulate", err)
	}
	defer crypto.Zeroize(mlkemSecret)

	secret, err := combineSecrets(recipientPublic.suite, x25519Secret, mlkemSecret)
	if err != nil {
		return nil, nil, err
	}

	return secret, &HybridEncapsulation{
		s:          recipientPublic.suite,
		ephemeral:  ephemeralKP.PublicKeyBytes(),
		ciphertext: mlkemCiphertext,
	}, nil
}

// Decapsulate recovers the shared secret from an encapsulation result.
//
// The result's variant must match the key pair's suite: feeding a hybrid
// result to a classical key pair (or vice versa) returns ErrVariantMismatch.
//
// Returns:
//   - sharedSecret: 32-byte derived shared secret (same as encapsulator's)
//   - error: Non-nil if the result is malformed or mismatched
func Decapsulate(kp *KeyPair, result EncapsulationResult) (*SharedSecret, error) {
	if kp == nil || kp.x25519Private == nil {
		return nil, serrors.ErrInvalidPrivateKey
	}
	if result == nil {
		return nil, serrors.ErrInvalidCiphertext
	}

	switch r := result.(type) {
	case *ClassicalEncapsulation:
		if kp.suite.SupportsPostQuantum() {
			return nil, serrors.ErrVariantMismatch
		}
		x25519Secret, err := dhWithEphemeral(kp, r.ephemeral)
		if err != nil {
			return nil, err
		}
		defer crypto.Zeroize(x25519Secret)
		return combineSecrets(kp.suite, x25519Secret, nil)

	case *HybridEncapsulation:
		if !kp.suite.SupportsPostQuantum() || kp.mlkem == nil {
			return nil, serrors.ErrVariantMismatch
		}
		if r.s != kp.suite {
			return nil, serrors.ErrVariantMismatch
		}
		x25519Secret, err := dhWithEphemeral(kp, r.ephemeral)
		if err != nil {
			return nil, err
		}
		defer crypto.Zeroize(x25519Secret)

		mlkemSecret, err := crypto.MLKEMDecapsulate(kp.suite.KEMVariant(), kp.mlkem.DecapsulationKey, r.ciphertext)
		if err != nil {
			return nil, serrors.NewCryptoError("hybrid.Decapsulate", err)
		}
		defer crypto.Zeroize(mlkemSecret)

		return combineSecrets(kp.suite, x25519Secret, mlkemSecret)

	default:
		return nil, serrors.ErrVariantMismatch
	}
}

func dhWithEphemeral(kp *KeyPair, ephemeral []byte) ([]byte, error) {
	ephemeralPublic, err := crypto.ParseX25519PublicKey(ephemeral)
	if err != nil {
		return nil, serrors.NewCryptoError("hybrid.Decapsulate", err)
	}
	secret, err := crypto.X25519(kp.x25519Private, ephemeralPublic)
	if err != nil {
		return nil, serrors.NewCryptoError("hybrid.Decapsulate", err)
	}
	return secret, nil
}

// combineSecrets binds the component secrets with SHAKE-256 under the hybrid
// combine label. The suite id is included so the same component secrets
// derive different session secrets under different suites. Each input is
// length-framed by the KDF, so boundary shifts cannot collide.
func combineSecrets(s suite.Suite, x25519Secret, mlkemSecret []byte) (*SharedSecret, error) {
	inputs := [][]byte{{s.WireID()}, x25519Secret}
	if mlkemSecret != nil {
		inputs = append(inputs, mlkemSecret)
	}

	out, err := crypto.DeriveKeyMultiple(constants.LabelHybridCombine, inputs, constants.SharedSecretSize)
	if err != nil {
		return nil, err
	}
	return NewSharedSecret(out), nil
}

// Bytes serializes the public key.
//
// Format: x25519_public (32 bytes) || mlkem_public (1184 or 1568 bytes,
// post-quantum suites only).
func (pk *PublicKey) Bytes() []byte {
	x := pk.x25519.Bytes()
	if pk.mlkem == nil {
		out := make([]byte, len(x))
		copy(out, x)
		return out
	}

	m, err := pk.mlkem.MarshalBinary()
	if err != nil {
		return nil
	}
	out := make([]byte, len(x)+len(m))
	copy(out, x)
	copy(out[len(x):], m)
	return out
}

// Suite returns the suite the public key belongs to.
func (pk *PublicKey) Suite() suite.Suite {
	return pk.suite
}

// ParsePublicKey parses a hybrid public key for the given suite.
// The input length must match the suite exactly; short or long inputs are
// rejected, never truncated or padded.
func ParsePublicKey(s suite.Suite, data []byte) (*PublicKey, error) {
	if !s.IsValid() {
		return nil, serrors.ErrUnknownSuite
	}

	want := constants.X25519PublicKeySize
	if s.SupportsPostQuantum() {
		want += s.KEMVariant().PublicKeySize()
	}
	if len(data) != want {
		return nil, serrors.ErrInvalidPublicKey
	}

	x25519Public, err := crypto.ParseX25519PublicKey(data[:constants.X25519PublicKeySize])
	if err != nil {
		return nil, err
	}

	pk := &PublicKey{
		suite:  s,
		x25519: x25519Public,
	}

	if s.SupportsPostQuantum() {
		mlkemPublic, err := crypto.ParseMLKEMPublicKey(s.KEMVariant(), data[constants.X25519PublicKeySize:])
		if err != nil {
			return nil, err
		}
		pk.mlkem = mlkemPublic
	}

	return pk, nil
}

// ParseEncapsulation parses a wire encapsulation for the given suite.
// The variant is fixed by the suite: 32 bytes for SuiteClassical, 32 bytes
// plus the suite's ML-KEM ciphertext size otherwise.
func ParseEncapsulation(s suite.Suite, data []byte) (EncapsulationResult, error) {
	if !s.IsValid() {
		return nil, serrors.ErrUnknownSuite
	}

	if !s.SupportsPostQuantum() {
		if len(data) != constants.X25519PublicKeySize {
			return nil, serrors.ErrInvalidCiphertext
		}
		eph := make([]byte, constants.X25519PublicKeySize)
		copy(eph, data)
		return &ClassicalEncapsulation{ephemeral: eph}, nil
	}

	want := constants.X25519PublicKeySize + s.KEMVariant().CiphertextSize()
	if len(data) != want {
		return nil, serrors.ErrInvalidCiphertext
	}

	eph := make([]byte, constants.X25519PublicKeySize)
	copy(eph, data[:constants.X25519PublicKeySize])
	ct := make([]byte, len(data)-constants.X25519PublicKeySize)
	copy(ct, data[constants.X25519PublicKeySize:])

	return &HybridEncapsulation{s: s, ephemeral: eph, ciphertext: ct}, nil
}

// EncapsulationSize returns the wire size of an encapsulation for the suite.
func EncapsulationSize(s suite.Suite) int {
	if !s.SupportsPostQuantum() {
		return constants.X25519PublicKeySize
	}
	return constants.X25519PublicKeySize + s.KEMVariant().CiphertextSize()
}

// PublicKeySize returns the wire size of a public key for the suite.
func PublicKeySize(s suite.Suite) int {
	if !s.SupportsPostQuantum() {
		return constants.X25519PublicKeySize
	}
	return constants.X25519PublicKeySize + s.KEMVariant().PublicKeySize()
}
