// aead.go implements Authenticated Encryption with Associated Data (AEAD).
//
// Three AEAD algorithms are supported:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs
//   - ChaCha20-Poly1305: High performance without hardware support
//   - XChaCha20-Poly1305: Extended 192-bit nonce, safe for random nonces
//
// CRITICAL: Nonce reuse completely breaks security. Each (key, nonce) pair
// MUST be used at most once. In this protocol packet keys come from a
// per-packet ratchet, so each key encrypts exactly one record and nonces are
// derived deterministically from the packet number.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// AEADAlgorithm identifies an authenticated encryption algorithm.
type AEADAlgorithm uint8

const (
	// AlgAES256GCM is AES-256 in Galois/Counter Mode
	AlgAES256GCM AEADAlgorithm = iota

	// AlgChaCha20Poly1305 is ChaCha20-Poly1305 with a 96-bit nonce
	AlgChaCha20Poly1305

	// AlgXChaCha20Poly1305 is XChaCha20-Poly1305 with a 192-bit nonce
	AlgXChaCha20Poly1305
)

// String returns a human-readable name for the algorithm.
func (a AEADAlgorithm) String() string {
	switch a {
	case AlgAES256GCM:
		return "AES-256-GCM"
	case AlgChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	case AlgXChaCha20Poly1305:
		return "XChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// NonceSize returns the nonce size in bytes for the algorithm.
func (a AEADAlgorithm) NonceSize() int {
	if a == AlgXChaCha20Poly1305 {
		return constants.XAEADNonceSize
	}
	return constants.AEADNonceSize
}

// AEAD represents an authenticated encryption cipher bound to one key.
type AEAD struct {
	cipher cipher.AEAD
	alg    AEADAlgorithm
}

// NewAEAD creates a new AEAD cipher with the specified algorithm and key.
//
// Parameters:
//   - alg: One of AlgAES256GCM, AlgChaCha20Poly1305, AlgXChaCha20Poly1305
//   - key: 32-byte encryption key
//
// Returns:
//   - AEAD: The initialized cipher
//   - error: Non-nil if the key size is wrong or algorithm unknown
func NewAEAD(alg AEADAlgorithm, key []byte) (*AEAD, error) {
	if len(key) != constants.AEADKeySize {
		return nil, serrors.ErrInvalidKeySize
	}

	var aeadCipher cipher.AEAD
	var err error

	switch alg {
	case AlgAES256GCM:
		block, berr := aes.NewCipher(key)
		if berr != nil {
			return nil, serrors.NewCryptoError("NewAEAD", berr)
		}
		aeadCipher, err = cipher.NewGCM(block)

	case AlgChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.New(key)

	case AlgXChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.NewX(key)

	default:
		return nil, serrors.ErrUnknownSuite
	}
	if err != nil {
		return nil, serrors.NewCryptoError("NewAEAD", err)
	}

	return &AEAD{
		cipher: aeadCipher,
		alg:    alg,
	}, nil
}

// Seal encrypts and authenticates plaintext with an explicit nonce.
//
// The caller is responsible for nonce uniqueness. With ratcheted per-packet
// keys a fixed nonce derivation from the packet number is safe because no
// key is ever used twice.
//
// Parameters:
//   - nonce: Unique nonce of the algorithm's nonce size
//   - plaintext: Data to encrypt
//   - additionalData: Additional data to authenticate (not encrypted)
//
// Returns:
//   - ciphertext: encrypted_data || auth_tag (nonce not included)
//   - error: Non-nil if nonce size is wrong
func (a *AEAD) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, serrors.ErrInvalidNonce
	}

	return a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open decrypts and verifies ciphertext with an explicit nonce.
//
// Parameters:
//   - nonce: Nonce used during encryption
//   - ciphertext: encrypted_data || auth_tag (nonce not included)
//   - additionalData: Must match the additionalData used during Seal
//
// Returns:
//   - plaintext: Decrypted data
//   - error: Non-nil if authentication fails or ciphertext malformed
func (a *AEAD) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, serrors.ErrInvalidNonce
	}
	if len(ciphertext) < constants.AEADTagSize {
		return nil, serrors.ErrCiphertextTooShort
	}

	plaintext, err := a.cipher.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, serrors.ErrAuthenticationFailed
	}

	return plaintext, nil
}

// PacketNonce builds a deterministic nonce for a packet number: zero padding
// followed by the number in big-endian in the last 8 bytes.
func (a *AEAD) PacketNonce(packetNumber uint64) []byte {
	nonce := make([]byte, a.cipher.NonceSize())
	binary.BigEndian.PutUint64(nonce[len(nonce)-8:], packetNumber)
	return nonce
}

// Algorithm returns the AEAD algorithm identifier.
func (a *AEAD) Algorithm() AEADAlgorithm {
	return a.alg
}

// Overhead returns the number of bytes added by encryption (the auth tag).
func (a *AEAD) Overhead() int {
	return a.cipher.Overhead()
}

// NonceSize returns the required nonce size in bytes.
func (a *AEAD) NonceSize() int {
	return a.cipher.NonceSize()
}
