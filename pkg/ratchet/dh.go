// dh.go implements the Diffie-Hellman rekey ratchet.
//
// Either side of an established session can force a fresh DH step mid-session
// without a new handshake. Each step mixes a new X25519 output into a root
// key and derives a fresh epoch chain key, which seeds new packet ratchets.
// The forcing side generates a fresh key pair and advertises its public key;
// the peer mirrors the step with its existing pair on receipt, so both sides
// converge within one round trip.
package ratchet

import (
	"crypto/ecdh"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
)

// DHRatchet tracks the rekey root key and epoch counter for one session.
type DHRatchet struct {
	// rootKey absorbs each DH output; it never appears on the wire.
	rootKey []byte

	// epoch counts completed DH steps. Epoch 0 is the handshake epoch.
	epoch uint32

	// keyPair is the local ratchet key pair.
	keyPair *crypto.X25519KeyPair

	// remote is the peer's current ratchet public key.
	remote *ecdh.PublicKey
}

// NewDHRatchet creates a rekey ratchet rooted in the handshake chain key,
// holding the local ratchet key pair and the peer ratchet public key
// exported by the handshake.
func NewDHRatchet(rootKey []byte, keyPair *crypto.X25519KeyPair, remote *ecdh.PublicKey) (*DHRatchet, error) {
	if len(rootKey) != constants.KDFOutputSize {
		return nil, serrors.ErrInvalidKeySize
	}
	if keyPair == nil {
		return nil, serrors.ErrInvalidPrivateKey
	}
	if remote == nil {
		return nil, serrors.ErrInvalidPublicKey
	}

	rk := make([]byte, len(rootKey))
	copy(rk, rootKey)

	return &DHRatchet{
		rootKey: rk,
		keyPair: keyPair,
		remote:  remote,
	}, nil
}

// Epoch returns the number of completed DH steps.
func (d *DHRatchet) Epoch() uint32 {
	return d.epoch
}

// PublicKey returns the local ratchet public key.
func (d *DHRatchet) PublicKey() *ecdh.PublicKey {
	return d.keyPair.PublicKey
}

// ForceStep initiates a DH ratchet step: a fresh local key pair is
// generated, its exchange with the peer's current public key is mixed into
// the root key, and a fresh epoch chain key is derived. The returned public
// key must be sent to the peer so it can mirror the step with PeerStep.
// Forced steps must alternate with the peer's mirror: two sides forcing
// concurrently mix different DH outputs and their roots diverge.
//
// Returns:
//   - chainKey: 32-byte chain key seeding the new epoch's packet ratchets
//   - public: New local ratchet public key to advertise
//   - error: Non-nil if key generation or the DH computation fails
func (d *DHRatchet) ForceStep() ([]byte, *ecdh.PublicKey, error) {
	nextKP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}

	dhOutput, err := crypto.X25519(nextKP.PrivateKey, d.remote)
	if err != nil {
		nextKP.Zeroize()
		return nil, nil, err
	}

	chainKey, err := d.mix(dhOutput)
	if err != nil {
		nextKP.Zeroize()
		return nil, nil, err
	}

	d.keyPair.Zeroize()
	d.keyPair = nextKP
	return chainKey, nextKP.PublicKey, nil
}

// PeerStep mirrors a step the peer forced: the advertised remote public key
// is exchanged against the existing local pair and mixed into the root key.
// Both sides derive the identical epoch chain key.
func (d *DHRatchet) PeerStep(remotePublic *ecdh.PublicKey) ([]byte, error) {
	if remotePublic == nil {
		return nil, serrors.ErrInvalidPublicKey
	}

	dhOutput, err := crypto.X25519(d.keyPair.PrivateKey, remotePublic)
	if err != nil {
		return nil, err
	}

	chainKey, err := d.mix(dhOutput)
	if err != nil {
		return nil, err
	}

	d.remote = remotePublic
	return chainKey, nil
}

// mix absorbs a DH output into the root key and derives the epoch chain key.
// The old root key and the DH output are destroyed.
func (d *DHRatchet) mix(dhOutput []byte) ([]byte, error) {
	defer crypto.Zeroize(dhOutput)

	newRoot, err := crypto.DeriveKeyMultiple(
		constants.LabelDHRatchetRoot,
		[][]byte{d.rootKey, dhOutput},
		constants.KDFOutputSize,
	)
	if err != nil {
		return nil, err
	}

	chainKey, err := crypto.DeriveKey(constants.LabelDHRatchetChain, newRoot, constants.KDFOutputSize)
	if err != nil {
		crypto.Zeroize(newRoot)
		return nil, err
	}

	crypto.Zeroize(d.rootKey)
	d.rootKey = newRoot
	d.epoch++
	return chainKey, nil
}

// Zeroize destroys the root key and drops the local key pair.
func (d *DHRatchet) Zeroize() {
	crypto.Zeroize(d.rootKey)
	if d.keyPair != nil {
		d.keyPair.Zeroize()
		d.keyPair = nil
	}
	d.remote = nil
}
