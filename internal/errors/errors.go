// Package errors defines custom error types for the SHROUD transport core.
// These errors provide detailed information for debugging while maintaining
// security by not leaking sensitive information in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for hybrid key exchange operations
var (
	// ErrInvalidKeySize indicates that a key has an incorrect size
	ErrInvalidKeySize = errors.New("hybrid: invalid key size")

	// ErrInvalidCiphertext indicates that an encapsulation is malformed
	ErrInvalidCiphertext = errors.New("hybrid: invalid ciphertext")

	// ErrDecapsulationFailed indicates that KEM decapsulation failed
	ErrDecapsulationFailed = errors.New("hybrid: decapsulation failed")

	// ErrKeyGenerationFailed indicates that key generation failed
	ErrKeyGenerationFailed = errors.New("hybrid: key generation failed")

	// ErrEncapsulationFailed indicates that KEM encapsulation failed
	ErrEncapsulationFailed = errors.New("hybrid: encapsulation failed")

	// ErrInvalidPublicKey indicates that a public key is invalid
	ErrInvalidPublicKey = errors.New("hybrid: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is invalid
	ErrInvalidPrivateKey = errors.New("hybrid: invalid private key")

	// ErrVariantMismatch indicates an encapsulation variant does not match
	// the negotiated suite (classical vs post-quantum)
	ErrVariantMismatch = errors.New("hybrid: encapsulation variant mismatch")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD authentication/decryption failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrNonceExhausted indicates nonce space is exhausted for the current key
	ErrNonceExhausted = errors.New("aead: nonce space exhausted, rekey required")
)

// Sentinel errors for suite negotiation
var (
	// ErrNoCommonSuite indicates the peers share no cipher suite
	ErrNoCommonSuite = errors.New("suite: no common cipher suite")

	// ErrUnknownSuite indicates an unrecognized suite identifier
	ErrUnknownSuite = errors.New("suite: unknown suite identifier")
)

// Sentinel errors for the per-packet key ratchet
var (
	// ErrKeyConsumed indicates a packet key was already retrieved
	ErrKeyConsumed = errors.New("ratchet: key already consumed")

	// ErrWindowExceeded indicates a packet number beyond the out-of-order window
	ErrWindowExceeded = errors.New("ratchet: packet outside window")

	// ErrCounterExhausted indicates the packet counter would overflow
	ErrCounterExhausted = errors.New("ratchet: packet counter exhausted")
)

// Sentinel errors for frame encoding and decoding
var (
	// ErrBufferTooSmall indicates a buffer cannot hold a complete header
	ErrBufferTooSmall = errors.New("frame: buffer too small")

	// ErrInvalidVersion indicates an unrecognized frame version byte
	ErrInvalidVersion = errors.New("frame: invalid version")

	// ErrInvalidFrameType indicates an unrecognized frame type byte
	ErrInvalidFrameType = errors.New("frame: invalid frame type")

	// ErrUnknownFormat indicates a buffer matching neither wire format
	ErrUnknownFormat = errors.New("frame: unknown wire format")

	// ErrNoCommonFormat indicates the peers share no wire format version
	ErrNoCommonFormat = errors.New("frame: no common wire format")

	// ErrReservedConnectionID indicates a reserved connection identifier was
	// used where a normal identifier is required
	ErrReservedConnectionID = errors.New("frame: reserved connection id")
)

// Sentinel errors for protocol operations
var (
	// ErrInvalidMessage indicates a protocol message is malformed
	ErrInvalidMessage = errors.New("protocol: invalid message")

	// ErrUnsupportedVersion indicates an unsupported protocol version
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrHandshakeFailed indicates the handshake failed
	ErrHandshakeFailed = errors.New("protocol: handshake failed")

	// ErrInvalidState indicates a handshake operation out of sequence
	ErrInvalidState = errors.New("protocol: invalid state")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrReplayDetected indicates a potential replay attack
	ErrReplayDetected = errors.New("protocol: replay detected")

	// ErrSessionClosed indicates the session has been closed
	ErrSessionClosed = errors.New("protocol: session closed")
)

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol error with additional context
type ProtocolError struct {
	Phase string // Protocol phase (e.g., "handshake", "transport")
	Err   error  // Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
