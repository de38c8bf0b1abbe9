// mlkem.go implements ML-KEM key encapsulation mechanism wrappers.
//
// ML-KEM (Module-Lattice-based Key-Encapsulation Mechanism) is standardized in
// NIST FIPS 203. The security of ML-KEM is based on the computational difficulty
// of the Module Learning With Errors (MLWE) problem.
//
// Two parameter sets are supported:
//   - ML-KEM-768:  NIST Category 3 (~AES-192 equivalent against quantum adversaries)
//   - ML-KEM-1024: NIST Category 5 (~AES-256 equivalent against quantum adversaries)
package crypto

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// MLKEMVariant selects the ML-KEM parameter set.
type MLKEMVariant uint8

const (
	// MLKEM768 is the NIST Category 3 parameter set
	MLKEM768 MLKEMVariant = iota

	// MLKEM1024 is the NIST Category 5 parameter set
	MLKEM1024
)

// Scheme returns the underlying CIRCL KEM scheme for the variant.
func (v MLKEMVariant) Scheme() kem.Scheme {
	switch v {
	case MLKEM1024:
		return mlkem1024.Scheme()
	default:
		return mlkem768.Scheme()
	}
}

// String returns a human-readable name for the variant.
func (v MLKEMVariant) String() string {
	switch v {
	case MLKEM1024:
		return "ML-KEM-1024"
	default:
		return "ML-KEM-768"
	}
}

// CiphertextSize returns the encapsulation ciphertext size in bytes.
func (v MLKEMVariant) CiphertextSize() int {
	return v.Scheme().CiphertextSize()
}

// PublicKeySize returns the encapsulation key size in bytes.
func (v MLKEMVariant) PublicKeySize() int {
	return v.Scheme().PublicKeySize()
}

// MLKEMKeyPair represents an ML-KEM key pair for post-quantum key encapsulation.
type MLKEMKeyPair struct {
	// Variant identifies the parameter set this key pair belongs to
	Variant MLKEMVariant

	// EncapsulationKey is the public key used by others to encapsulate secrets
	EncapsulationKey kem.PublicKey

	// DecapsulationKey is the private key used to decapsulate secrets
	DecapsulationKey kem.PrivateKey
}

// GenerateMLKEMKeyPair generates a new ML-KEM key pair for the given variant.
//
// Returns error if the system's CSPRNG fails.
func GenerateMLKEMKeyPair(v MLKEMVariant) (*MLKEMKeyPair, error) {
	pk, sk, err := v.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, serrors.NewCryptoError("MLKEMKeyPair.Generate", err)
	}

	return &MLKEMKeyPair{
		Variant:          v,
		EncapsulationKey: pk,
		DecapsulationKey: sk,
	}, nil
}

// NewMLKEMKeyPairFromSeed derives an ML-KEM key pair from a seed.
// This is deterministic: the same seed always produces the same key pair.
//
// The seed must be Scheme().SeedSize() bytes (64 for both parameter sets)
// and should come from a cryptographically secure source.
func NewMLKEMKeyPairFromSeed(v MLKEMVariant, seed []byte) (*MLKEMKeyPair, error) {
	scheme := v.Scheme()
	if len(seed) != scheme.SeedSize() {
		return nil, serrors.ErrInvalidKeySize
	}

	pk, sk := scheme.DeriveKeyPair(seed)

	return &MLKEMKeyPair{
		Variant:          v,
		EncapsulationKey: pk,
		DecapsulationKey: sk,
	}, nil
}

// MLKEMEncapsulate performs key encapsulation against an ML-KEM public key.
//
// Parameters:
//   - v: The parameter set the key belongs to
//   - ek: The recipient's encapsulation key (public key)
//
// Returns:
//   - ciphertext: The encapsulated ciphertext (1088 or 1568 bytes)
//   - sharedSecret: The shared secret (32 bytes)
//   - error: Non-nil if encapsulation fails
func MLKEMEncapsulate(v MLKEMVariant, ek kem.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	if ek == nil {
		return nil, nil, serrors.ErrInvalidPublicKey
	}

	ct, ss, err := v.Scheme().Encapsulate(ek)
	if err != nil {
		return nil, nil, serrors.NewCryptoError("MLKEMEncapsulate", err)
	}

	return ct, ss, nil
}

// MLKEMDecapsulate performs key decapsulation using an ML-KEM private key.
//
// ML-KEM uses implicit rejection (Fujisaki-Okamoto transform): a malformed
// but correctly sized ciphertext decapsulates to a pseudorandom value rather
// than an error, preventing distinguishing attacks.
//
// Parameters:
//   - v: The parameter set the key belongs to
//   - dk: The decapsulation key (private key)
//   - ciphertext: The ciphertext to decapsulate
//
// Returns:
//   - sharedSecret: The shared secret (32 bytes)
//   - error: Non-nil if the ciphertext has the wrong size
func MLKEMDecapsulate(v MLKEMVariant, dk kem.PrivateKey, ciphertext []byte) ([]byte, error) {
	if dk == nil {
		return nil, serrors.ErrInvalidPrivateKey
	}

	scheme := v.Scheme()
	if len(ciphertext) != scheme.CiphertextSize() {
		return nil, serrors.ErrInvalidCiphertext
	}

	ss, err := scheme.Decapsulate(dk, ciphertext)
	if err != nil {
		return nil, serrors.NewCryptoError("MLKEMDecapsulate", err)
	}

	return ss, nil
}

// PublicKeyBytes returns the encoded bytes of the encapsulation key.
func (kp *MLKEMKeyPair) PublicKeyBytes() []byte {
	buf, err := kp.EncapsulationKey.MarshalBinary()
	if err != nil {
		return nil
	}
	return buf
}

// ParseMLKEMPublicKey parses an ML-KEM public key from its encoded form.
func ParseMLKEMPublicKey(v MLKEMVariant, data []byte) (kem.PublicKey, error) {
	scheme := v.Scheme()
	if len(data) != scheme.PublicKeySize() {
		return nil, serrors.ErrInvalidPublicKey
	}

	pk, err := scheme.UnmarshalBinaryPublicKey(data)
	if err != nil {
		return nil, serrors.NewCryptoError("ParseMLKEMPublicKey", err)
	}

	return pk, nil
}

// Zeroize drops references to the key material.
// This should be called when the key pair is no longer needed.
func (kp *MLKEMKeyPair) Zeroize() {
	// Note: CIRCL doesn't expose direct zeroization, so we clear our
	// references. In production, consider OS-level memory protection.
	kp.DecapsulationKey = nil
	kp.EncapsulationKey = nil
}
