// kdf.go implements key derivation using SHAKE-256 and HKDF (SHA3-256).
//
// SHAKE-256 (FIPS 202) is an extendable-output function (XOF) based on the
// Keccak sponge construction. It provides 256-bit security against collision
// and preimage attacks and no length-extension attacks (unlike SHA-2).
// It is used for general-purpose labeled derivations with length-prefixed
// inputs.
//
// HKDF (RFC 5869) over SHA3-256 is used for the session key schedule, where
// the extract-then-expand structure lets the handshake transcript act as the
// salt, binding every derived traffic key to the full handshake.
package crypto

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// DeriveKey derives a key using SHAKE-256 with domain separation.
//
// The derivation follows the construction:
//
//	output = SHAKE-256(
//	    domain_separator_length || domain_separator ||
//	    input_length || input,
//	    output_length
//	)
//
// Length prefixes are 4-byte big-endian integers to ensure unambiguous parsing.
//
// Parameters:
//   - domain: Domain separation string (prevents cross-protocol attacks)
//   - input: Secret input material to derive from
//   - outputLen: Desired output length in bytes
//
// Returns:
//   - derived: The derived key material
//   - error: Non-nil if parameters are invalid
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 { // Max 1MB
		return nil, serrors.NewCryptoError("DeriveKey", serrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()

	// Write domain separator with length prefix
	domainBytes := []byte(domain)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	// Write input with length prefix
	binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
	h.Write(lenBuf)
	h.Write(input)

	// Extract output
	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// DeriveKeyMultiple derives a key from multiple inputs with domain separation.
//
// This is used for hybrid secret combination where we bind:
//   - X25519 shared secret
//   - ML-KEM shared secret
//   - Context info
//
// Parameters:
//   - domain: Domain separation string
//   - inputs: Multiple input values to combine
//   - outputLen: Desired output length in bytes
//
// Returns:
//   - derived: The derived key material
//   - error: Non-nil if parameters are invalid
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 {
		return nil, serrors.NewCryptoError("DeriveKeyMultiple", serrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	// Write domain separator with length prefix
	domainBytes := []byte(domain)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	// Write number of inputs
	binary.BigEndian.PutUint32(lenBuf, uint32(len(inputs)))
	h.Write(lenBuf)

	// Write each input with length prefix
	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		h.Write(lenBuf)
		h.Write(input)
	}

	// Extract output
	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// TranscriptHash computes a hash over ordered transcript components.
//
// Using SHA3-256 for the transcript hash provides:
//   - 128-bit collision resistance
//   - Binding: changes to any transcript component change the hash
//   - Non-malleability: prevents transcript manipulation attacks
//
// Parameters:
//   - components: Ordered list of transcript components
//
// Returns:
//   - hash: 32-byte transcript hash
func TranscriptHash(components ...[]byte) []byte {
	h := sha3.New256()
	lenBuf := make([]byte, 4)

	// Write number of components
	binary.BigEndian.PutUint32(lenBuf, uint32(len(components)))
	h.Write(lenBuf)

	// Write each component with length prefix
	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(component)))
		h.Write(lenBuf)
		h.Write(component)
	}

	return h.Sum(nil)
}

// SessionKeys holds the four independent keys derived from a completed
// handshake. Each key serves exactly one purpose and compromise of one
// reveals nothing about the others.
type SessionKeys struct {
	// TrafficKeyI2R protects initiator-to-responder traffic
	TrafficKeyI2R []byte

	// TrafficKeyR2I protects responder-to-initiator traffic
	TrafficKeyR2I []byte

	// FormatKey seeds the polymorphic frame header encoding
	FormatKey []byte

	// ChainKey seeds the per-packet forward-secrecy ratchet
	ChainKey []byte
}

// DeriveSessionKeys derives the full session key schedule from the handshake
// shared secret and the transcript hash.
//
// The derivation uses HKDF with SHA3-256:
//
//	PRK = HKDF-Extract(salt = transcript_hash, IKM = shared_secret)
//	key = HKDF-Expand(PRK, label, 32)
//
// Using the transcript hash as the extract salt binds every session key to
// the complete handshake: any tampering with handshake messages yields
// disjoint key sets on the two sides and traffic fails to authenticate.
//
// Parameters:
//   - sharedSecret: 32-byte handshake shared secret
//   - transcriptHash: 32-byte hash of the full handshake transcript
//
// Returns:
//   - keys: Four independent 32-byte keys
//   - error: Non-nil if inputs have incorrect sizes
func DeriveSessionKeys(sharedSecret, transcriptHash []byte) (*SessionKeys, error) {
	if len(sharedSecret) != constants.SharedSecretSize {
		return nil, serrors.NewCryptoError("DeriveSessionKeys", serrors.ErrInvalidKeySize)
	}
	if len(transcriptHash) != constants.TranscriptHashSize {
		return nil, serrors.NewCryptoError("DeriveSessionKeys", serrors.ErrInvalidKeySize)
	}

	prk := hkdf.Extract(sha3.New256, sharedSecret, transcriptHash)
	defer Zeroize(prk)

	keys := &SessionKeys{}
	for _, out := range []struct {
		label string
		dst   *[]byte
	}{
		{constants.LabelTrafficKeyI2R, &keys.TrafficKeyI2R},
		{constants.LabelTrafficKeyR2I, &keys.TrafficKeyR2I},
		{constants.LabelFormatKey, &keys.FormatKey},
		{constants.LabelChainKey, &keys.ChainKey},
	} {
		key := make([]byte, constants.KDFOutputSize)
		r := hkdf.Expand(sha3.New256, prk, []byte(out.label))
		if _, err := io.ReadFull(r, key); err != nil {
			keys.Zeroize()
			return nil, serrors.NewCryptoError("DeriveSessionKeys", err)
		}
		*out.dst = key
	}

	return keys, nil
}

// Zeroize securely erases all session key material.
func (sk *SessionKeys) Zeroize() {
	ZeroizeMultiple(sk.TrafficKeyI2R, sk.TrafficKeyR2I, sk.FormatKey, sk.ChainKey)
}

// DeriveStreamKey derives a per-stream subkey from a direction traffic key.
//
// Streams multiplexed over one session each get an independent key so that
// per-stream cryptographic state never collides across streams.
//
// Parameters:
//   - trafficKey: 32-byte direction traffic key
//   - streamID: Stream identifier
//
// Returns:
//   - key: 32-byte stream key
//   - error: Non-nil if the traffic key has the wrong size
func DeriveStreamKey(trafficKey []byte, streamID uint32) ([]byte, error) {
	if len(trafficKey) != constants.KDFOutputSize {
		return nil, serrors.NewCryptoError("DeriveStreamKey", serrors.ErrInvalidKeySize)
	}

	sid := make([]byte, 4)
	binary.LittleEndian.PutUint32(sid, streamID)

	return DeriveKeyMultiple(
		constants.LabelStreamKey,
		[][]byte{trafficKey, sid},
		constants.KDFOutputSize,
	)
}

// DeriveChainKeys splits the initial ratchet chain key into two independent
// per-direction chains so that each direction of traffic ratchets separately.
//
// Returns:
//   - i2r: 32-byte initiator-to-responder chain key
//   - r2i: 32-byte responder-to-initiator chain key
//   - error: Non-nil if the chain key has the wrong size
func DeriveChainKeys(chainKey []byte) (i2r, r2i []byte, err error) {
	if len(chainKey) != constants.KDFOutputSize {
		return nil, nil, serrors.NewCryptoError("DeriveChainKeys", serrors.ErrInvalidKeySize)
	}

	i2r, err = DeriveKey(constants.LabelChainI2R, chainKey, constants.KDFOutputSize)
	if err != nil {
		return nil, nil, err
	}
	r2i, err = DeriveKey(constants.LabelChainR2I, chainKey, constants.KDFOutputSize)
	if err != nil {
		Zeroize(i2r)
		return nil, nil, err
	}
	return i2r, r2i, nil
}
