// Package constants defines security parameters and wire-protocol constants
// for the SHROUD secure transport core.
//
// The protocol combines a hybrid classical/post-quantum key exchange with a
// per-packet forward-secret key ratchet and a per-session polymorphic frame
// encoding. Constants here are shared between the crypto, frame, handshake
// and session packages.
package constants

// Protocol version and identification
const (
	// ProtocolName is used for domain separation in key derivation
	ProtocolName = "shroud-v2"

	// ProtocolVersionV2 is the v2 wire version byte (0x20 = version 2.0)
	ProtocolVersionV2 uint8 = 0x20

	// ProtocolVersionV1 identifies the legacy v1 format. v1 headers carry no
	// version byte on the wire; this value is only used in negotiation.
	ProtocolVersionV1 uint8 = 0x10
)

// X25519 Parameters (RFC 7748)
const (
	// X25519PublicKeySize is the size of X25519 public key in bytes
	X25519PublicKeySize = 32

	// X25519PrivateKeySize is the size of X25519 private key in bytes
	X25519PrivateKeySize = 32

	// X25519SharedSecretSize is the size of the X25519 shared secret in bytes
	X25519SharedSecretSize = 32
)

// ML-KEM-768 Parameters (NIST FIPS 203)
// These parameters provide NIST Category 3 security (~192-bit post-quantum security)
const (
	// MLKEM768PublicKeySize is the size of ML-KEM-768 encapsulation key in bytes
	MLKEM768PublicKeySize = 1184

	// MLKEM768CiphertextSize is the size of ML-KEM-768 ciphertext in bytes
	MLKEM768CiphertextSize = 1088
)

// ML-KEM-1024 Parameters (NIST FIPS 203)
// These parameters provide NIST Category 5 security (~256-bit post-quantum security)
const (
	// MLKEM1024PublicKeySize is the size of ML-KEM-1024 encapsulation key in bytes
	MLKEM1024PublicKeySize = 1568

	// MLKEM1024CiphertextSize is the size of ML-KEM-1024 ciphertext in bytes
	MLKEM1024CiphertextSize = 1568
)

// MLKEMSharedSecretSize is the size of the shared secret from ML-KEM in bytes
const MLKEMSharedSecretSize = 32

// Symmetric Encryption Parameters
const (
	// AEADKeySize is the key size for all supported AEAD algorithms in bytes
	AEADKeySize = 32

	// AEADNonceSize is the nonce size for AES-256-GCM and ChaCha20-Poly1305
	AEADNonceSize = 12

	// XAEADNonceSize is the nonce size for XChaCha20-Poly1305
	XAEADNonceSize = 24

	// AEADTagSize is the authentication tag size for all supported AEADs
	AEADTagSize = 16
)

// Key Derivation Labels (SHAKE-256 / HKDF domain separation)
//
// Each label uniquely identifies the purpose of a derived key so that keys
// derived for different purposes from the same secret are independent.
const (
	// LabelHybridCombine binds classical and post-quantum KEM secrets
	LabelHybridCombine = "shroud-v2-hybrid-combine"

	// LabelTrafficKeyI2R derives the initiator-to-responder traffic key
	LabelTrafficKeyI2R = "shroud-v2-traffic-key-i2r"

	// LabelTrafficKeyR2I derives the responder-to-initiator traffic key
	LabelTrafficKeyR2I = "shroud-v2-traffic-key-r2i"

	// LabelFormatKey derives the polymorphic frame format key
	LabelFormatKey = "shroud-v2-format-key"

	// LabelChainKey derives the initial per-packet ratchet chain key
	LabelChainKey = "shroud-v2-ratchet-chain-init"

	// LabelRatchetMessage derives a per-packet message key from a chain key
	LabelRatchetMessage = "shroud-v2-ratchet-message"

	// LabelRatchetChain derives the next chain key from the current one
	LabelRatchetChain = "shroud-v2-ratchet-chain"

	// LabelStreamKey derives per-stream subkeys from a traffic key
	LabelStreamKey = "shroud-v2-stream-key"

	// LabelChainI2R derives the initiator-to-responder packet chain
	LabelChainI2R = "shroud-v2-chain-i2r"

	// LabelChainR2I derives the responder-to-initiator packet chain
	LabelChainR2I = "shroud-v2-chain-r2i"

	// LabelPolyPositions derives the field-position permutation seed
	LabelPolyPositions = "shroud-v2-poly-positions"

	// LabelPolyMask derives the header XOR mask
	LabelPolyMask = "shroud-v2-poly-mask"

	// LabelDHRatchetRoot mixes a fresh DH output into the rekey root
	LabelDHRatchetRoot = "shroud-v2-dh-root"

	// LabelDHRatchetChain derives an epoch chain key from the rekey root
	LabelDHRatchetChain = "shroud-v2-dh-chain"
)

// Key Derivation Output Sizes
const (
	// KDFOutputSize is the default output size for key derivation in bytes
	KDFOutputSize = 32

	// TranscriptHashSize is the size of the handshake transcript hash in bytes
	TranscriptHashSize = 32

	// SharedSecretSize is the size of the combined hybrid shared secret
	SharedSecretSize = 32
)

// Frame Parameters
const (
	// FrameHeaderV2Size is the fixed v2 frame header size in bytes
	FrameHeaderV2Size = 24

	// FrameHeaderV1Size is the legacy v1 frame header size in bytes
	FrameHeaderV1Size = 28

	// ConnectionIDSize is the legacy v1 connection identifier size in bytes
	ConnectionIDSize = 8

	// ConnectionIDV2Size is the v2 connection identifier size in bytes
	ConnectionIDV2Size = 16

	// MaxPayloadSize is the maximum size of encrypted payload per frame
	MaxPayloadSize = 65507 // UDP max payload - headers
)

// Ratchet Parameters
const (
	// DefaultRatchetWindow is the default out-of-order window: how far ahead
	// of the consumed position the receiver will still derive a packet key
	DefaultRatchetWindow = 32768
)

// Session Parameters
const (
	// MaxBytesBeforeRekey is the maximum bytes transmitted before a rekey
	// should be triggered, limiting exposure from any single epoch
	MaxBytesBeforeRekey = 1 << 30

	// MaxPacketsBeforeRekey is the maximum packets before triggering rekey.
	// This prevents nonce exhaustion (2^32 limit with 96-bit nonces).
	MaxPacketsBeforeRekey = 1 << 28
)

// Handshake Parameters
const (
	// MaxHandshakeMessageSize bounds a single handshake message. Message 1
	// carries the largest payload: one hybrid public key per offered suite,
	// just over 4 KiB when all four suites are offered.
	MaxHandshakeMessageSize = 8192
)
