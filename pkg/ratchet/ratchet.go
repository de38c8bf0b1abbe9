// Package ratchet implements the per-packet forward-secrecy key ratchet and
// the DH rekey ratchet stepping it between epochs.
//
// Every packet is protected by its own key. The sender derives key n from a
// hash chain and advances; the receiver derives the identical key for the
// same packet number regardless of arrival order, within a bounded window.
// Once a key has been retrieved it is destroyed and can never be produced
// again, so compromise of current state never reveals past traffic and
// replayed packet numbers always fail.
package ratchet

import (
	"sync"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
)

// PacketRatchet derives one fresh 32-byte key per packet number from a chain
// key. Safe for concurrent use.
//
// Invariants:
//   - the chain only moves forward; state is never rolled back
//   - a packet number's key is retrievable exactly once
//   - keys skipped by out-of-order arrival are cached up to the window size,
//     then evicted oldest-first and destroyed
type PacketRatchet struct {
	mu sync.Mutex

	// chainKey is the chain state for packet number next.
	chainKey []byte

	// next is the lowest packet number not yet derived.
	next uint64

	// window bounds both forward derivation distance and the skipped-key
	// cache, so a malicious peer cannot force unbounded work or memory.
	window uint64

	// skipped holds derived-but-unconsumed keys for numbers below next.
	skipped map[uint64][]byte

	// skippedOrder tracks insertion order for eviction.
	skippedOrder []uint64
}

// NewPacketRatchet creates a ratchet seeded with chainKey and the default
// out-of-order window.
func NewPacketRatchet(chainKey []byte) (*PacketRatchet, error) {
	return NewPacketRatchetWithWindow(chainKey, constants.DefaultRatchetWindow)
}

// NewPacketRatchetWithWindow creates a ratchet with an explicit window size.
func NewPacketRatchetWithWindow(chainKey []byte, window uint64) (*PacketRatchet, error) {
	if len(chainKey) != constants.KDFOutputSize {
		return nil, serrors.ErrInvalidKeySize
	}
	if window == 0 {
		window = constants.DefaultRatchetWindow
	}

	ck := make([]byte, len(chainKey))
	copy(ck, chainKey)

	return &PacketRatchet{
		chainKey: ck,
		window:   window,
		skipped:  make(map[uint64][]byte),
	}, nil
}

// NextSendKey advances the chain and returns the next packet number and its
// key. Never returns the same key twice.
func (r *PacketRatchet) NextSendKey() (uint64, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next == ^uint64(0) {
		return 0, nil, serrors.ErrCounterExhausted
	}

	n := r.next
	key, err := r.advanceLocked()
	if err != nil {
		return 0, nil, err
	}
	return n, key, nil
}

// KeyForPacket returns the key for packet number n, deriving forward through
// the chain if needed and caching any skipped keys.
//
// Errors:
//   - ErrKeyConsumed if n's key was already retrieved or evicted
//   - ErrWindowExceeded if n is further than the window ahead of the chain
func (r *PacketRatchet) KeyForPacket(n uint64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < r.next {
		key, ok := r.skipped[n]
		if !ok {
			return nil, serrors.ErrKeyConsumed
		}
		delete(r.skipped, n)
		r.dropFromOrder(n)
		return key, nil
	}

	if n-r.next >= r.window {
		return nil, serrors.ErrWindowExceeded
	}

	// Derive and cache every key between the chain position and n.
	for r.next < n {
		skippedN := r.next
		key, err := r.advanceLocked()
		if err != nil {
			return nil, err
		}
		r.storeSkippedLocked(skippedN, key)
	}

	return r.advanceLocked()
}

// advanceLocked derives the message key for r.next and steps the chain.
// The previous chain key is destroyed; the chain cannot move backward.
func (r *PacketRatchet) advanceLocked() ([]byte, error) {
	messageKey, err := crypto.DeriveKey(constants.LabelRatchetMessage, r.chainKey, constants.KDFOutputSize)
	if err != nil {
		return nil, err
	}
	nextChain, err := crypto.DeriveKey(constants.LabelRatchetChain, r.chainKey, constants.KDFOutputSize)
	if err != nil {
		crypto.Zeroize(messageKey)
		return nil, err
	}

	crypto.Zeroize(r.chainKey)
	r.chainKey = nextChain
	r.next++

	return messageKey, nil
}

func (r *PacketRatchet) storeSkippedLocked(n uint64, key []byte) {
	r.skipped[n] = key
	r.skippedOrder = append(r.skippedOrder, n)

	// Evict oldest entries beyond the window. Evicted keys are destroyed;
	// their packet numbers become permanently unavailable.
	for uint64(len(r.skipped)) > r.window {
		oldest := r.skippedOrder[0]
		r.skippedOrder = r.skippedOrder[1:]
		if key, ok := r.skipped[oldest]; ok {
			crypto.Zeroize(key)
			delete(r.skipped, oldest)
		}
	}
}

func (r *PacketRatchet) dropFromOrder(n uint64) {
	for i, v := range r.skippedOrder {
		if v == n {
			r.skippedOrder = append(r.skippedOrder[:i], r.skippedOrder[i+1:]...)
			return
		}
	}
}

// Position returns the lowest packet number not yet derived.
func (r *PacketRatchet) Position() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// SkippedCount returns the number of cached skipped keys.
func (r *PacketRatchet) SkippedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skipped)
}

// Window returns the configured out-of-order window size.
func (r *PacketRatchet) Window() uint64 {
	return r.window
}

// Zeroize destroys the chain key and all cached skipped keys.
func (r *PacketRatchet) Zeroize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	crypto.Zeroize(r.chainKey)
	for n, key := range r.skipped {
		crypto.Zeroize(key)
		delete(r.skipped, n)
	}
	r.skippedOrder = nil
}
