package ratchet_test

import (
	"bytes"
	"testing"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
	"github.com/shroudnet/shroud-go/pkg/ratchet"
)

func testChainKey() []byte {
	return bytes.Repeat([]byte{0xAB}, constants.KDFOutputSize)
}

func TestNextSendKeyAdvances(t *testing.T) {
	r, err := ratchet.NewPacketRatchet(testChainKey())
	if err != nil {
		t.Fatalf("NewPacketRatchet failed: %v", err)
	}

	const count = 2000
	seen := make(map[string]uint64, count)
	for i := uint64(0); i < count; i++ {
		n, key, err := r.NextSendKey()
		if err != nil {
			t.Fatalf("NextSendKey failed at %d: %v", i, err)
		}
		if n != i {
			t.Errorf("Packet number: got %d, want %d", n, i)
		}
		if len(key) != constants.KDFOutputSize {
			t.Errorf("Key size: got %d, want %d", len(key), constants.KDFOutputSize)
		}
		if prev, dup := seen[string(key)]; dup {
			t.Fatalf("Key for packet %d repeats key for packet %d", n, prev)
		}
		seen[string(key)] = n
	}
}

func TestSenderReceiverAgreeInOrder(t *testing.T) {
	sender, _ := ratchet.NewPacketRatchet(testChainKey())
	receiver, _ := ratchet.NewPacketRatchet(testChainKey())

	for i := 0; i < 50; i++ {
		n, sendKey, err := sender.NextSendKey()
		if err != nil {
			t.Fatalf("NextSendKey failed: %v", err)
		}
		recvKey, err := receiver.KeyForPacket(n)
		if err != nil {
			t.Fatalf("KeyForPacket(%d) failed: %v", n, err)
		}
		if !bytes.Equal(sendKey, recvKey) {
			t.Fatalf("Keys disagree at packet %d", n)
		}
	}
}

func TestReceiverOutOfOrder(t *testing.T) {
	sender, _ := ratchet.NewPacketRatchet(testChainKey())
	receiver, _ := ratchet.NewPacketRatchet(testChainKey())

	sendKeys := make(map[uint64][]byte)
	for i := 0; i < 10; i++ {
		n, key, err := sender.NextSendKey()
		if err != nil {
			t.Fatalf("NextSendKey failed: %v", err)
		}
		sendKeys[n] = key
	}

	// Deliver in a permuted order
	order := []uint64{7, 2, 9, 0, 5, 1, 8, 3, 6, 4}
	for _, n := range order {
		recvKey, err := receiver.KeyForPacket(n)
		if err != nil {
			t.Fatalf("KeyForPacket(%d) failed: %v", n, err)
		}
		if !bytes.Equal(sendKeys[n], recvKey) {
			t.Fatalf("Keys disagree at packet %d", n)
		}
	}

	if receiver.SkippedCount() != 0 {
		t.Errorf("Skipped cache not drained: %d entries left", receiver.SkippedCount())
	}
}

func TestSingleRetrieval(t *testing.T) {
	r, _ := ratchet.NewPacketRatchet(testChainKey())

	// Consumed by forward derivation
	if _, err := r.KeyForPacket(3); err != nil {
		t.Fatalf("KeyForPacket(3) failed: %v", err)
	}
	if _, err := r.KeyForPacket(3); !serrors.Is(err, serrors.ErrKeyConsumed) {
		t.Errorf("Replay of packet 3: got %v, want ErrKeyConsumed", err)
	}

	// Consumed from the skipped cache
	if _, err := r.KeyForPacket(1); err != nil {
		t.Fatalf("KeyForPacket(1) failed: %v", err)
	}
	if _, err := r.KeyForPacket(1); !serrors.Is(err, serrors.ErrKeyConsumed) {
		t.Errorf("Replay of packet 1: got %v, want ErrKeyConsumed", err)
	}
}

func TestWindowExceeded(t *testing.T) {
	r, err := ratchet.NewPacketRatchetWithWindow(testChainKey(), 16)
	if err != nil {
		t.Fatalf("NewPacketRatchetWithWindow failed: %v", err)
	}

	if _, err := r.KeyForPacket(16); !serrors.Is(err, serrors.ErrWindowExceeded) {
		t.Errorf("Packet 16 with window 16: got %v, want ErrWindowExceeded", err)
	}

	// Just inside the window works
	if _, err := r.KeyForPacket(15); err != nil {
		t.Errorf("Packet 15 with window 16 failed: %v", err)
	}

	// Window is relative to the chain position, which has now advanced
	if _, err := r.KeyForPacket(31); err != nil {
		t.Errorf("Packet 31 after advancing to 16 failed: %v", err)
	}
	if _, err := r.KeyForPacket(48); !serrors.Is(err, serrors.ErrWindowExceeded) {
		t.Errorf("Packet 48 after advancing to 32: got %v, want ErrWindowExceeded", err)
	}
}

func TestEvictionDestroysOldKeys(t *testing.T) {
	r, _ := ratchet.NewPacketRatchetWithWindow(testChainKey(), 8)

	// Jump near the window edge repeatedly so more than 8 keys get skipped.
	if _, err := r.KeyForPacket(7); err != nil {
		t.Fatalf("KeyForPacket(7) failed: %v", err)
	}
	if _, err := r.KeyForPacket(15); err != nil {
		t.Fatalf("KeyForPacket(15) failed: %v", err)
	}

	// 14 keys were skipped (0..6, 8..14) but only 8 fit in the cache, so the
	// oldest were evicted and are now permanently unavailable.
	if got := r.SkippedCount(); got != 8 {
		t.Fatalf("Skipped count: got %d, want 8", got)
	}
	if _, err := r.KeyForPacket(0); !serrors.Is(err, serrors.ErrKeyConsumed) {
		t.Errorf("Evicted packet 0: got %v, want ErrKeyConsumed", err)
	}

	// Newest skipped keys are still retrievable
	if _, err := r.KeyForPacket(14); err != nil {
		t.Errorf("Cached packet 14 failed: %v", err)
	}
}

func TestDeterministicAcrossCallOrder(t *testing.T) {
	a, _ := ratchet.NewPacketRatchet(testChainKey())
	b, _ := ratchet.NewPacketRatchet(testChainKey())

	// a derives 0..9 in order; b derives the same set in reverse.
	keysA := make(map[uint64][]byte)
	for i := uint64(0); i < 10; i++ {
		k, err := a.KeyForPacket(i)
		if err != nil {
			t.Fatalf("a.KeyForPacket(%d) failed: %v", i, err)
		}
		keysA[i] = k
	}
	for i := int64(9); i >= 0; i-- {
		k, err := b.KeyForPacket(uint64(i))
		if err != nil {
			t.Fatalf("b.KeyForPacket(%d) failed: %v", i, err)
		}
		if !bytes.Equal(keysA[uint64(i)], k) {
			t.Errorf("Key %d differs between call orders", i)
		}
	}
}

func TestDifferentSeedsDifferentKeys(t *testing.T) {
	a, _ := ratchet.NewPacketRatchet(testChainKey())
	b, _ := ratchet.NewPacketRatchet(bytes.Repeat([]byte{0xCD}, constants.KDFOutputSize))

	_, ka, _ := a.NextSendKey()
	_, kb, _ := b.NextSendKey()
	if bytes.Equal(ka, kb) {
		t.Error("Different seeds produced the same packet key")
	}
}

func TestInvalidChainKeySize(t *testing.T) {
	if _, err := ratchet.NewPacketRatchet(make([]byte, 16)); err == nil {
		t.Error("16-byte chain key was accepted")
	}
}

// --- DH rekey ratchet ---

func TestDHRatchetConvergence(t *testing.T) {
	root := testChainKey()

	kpA, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateX25519KeyPair failed: %v", err)
	}
	kpB, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateX25519KeyPair failed: %v", err)
	}

	a, err := ratchet.NewDHRatchet(root, kpA, kpB.PublicKey)
	if err != nil {
		t.Fatalf("NewDHRatchet failed: %v", err)
	}
	b, err := ratchet.NewDHRatchet(root, kpB, kpA.PublicKey)
	if err != nil {
		t.Fatalf("NewDHRatchet failed: %v", err)
	}

	chainA, pubA, err := a.ForceStep()
	if err != nil {
		t.Fatalf("a.ForceStep failed: %v", err)
	}
	chainB, err := b.PeerStep(pubA)
	if err != nil {
		t.Fatalf("b.PeerStep failed: %v", err)
	}

	if !bytes.Equal(chainA, chainB) {
		t.Error("DH ratchet steps did not converge on the same chain key")
	}
	if a.Epoch() != 1 || b.Epoch() != 1 {
		t.Errorf("Epochs: got %d/%d, want 1/1", a.Epoch(), b.Epoch())
	}
	if bytes.Equal(chainA, root) {
		t.Error("Epoch chain key equals the root key")
	}
	if pubA.Equal(kpA.PublicKey) {
		t.Error("ForceStep advertised the pre-step public key")
	}
}

func TestDHRatchetConsecutiveSteps(t *testing.T) {
	root := testChainKey()

	kpA, _ := crypto.GenerateX25519KeyPair()
	kpB, _ := crypto.GenerateX25519KeyPair()

	a, _ := ratchet.NewDHRatchet(root, kpA, kpB.PublicKey)
	b, _ := ratchet.NewDHRatchet(root, kpB, kpA.PublicKey)

	// A forces twice in a row; B mirrors each time.
	chain1A, pub1, err := a.ForceStep()
	if err != nil {
		t.Fatalf("first a.ForceStep failed: %v", err)
	}
	chain1B, err := b.PeerStep(pub1)
	if err != nil {
		t.Fatalf("first b.PeerStep failed: %v", err)
	}

	chain2A, pub2, err := a.ForceStep()
	if err != nil {
		t.Fatalf("second a.ForceStep failed: %v", err)
	}
	chain2B, err := b.PeerStep(pub2)
	if err != nil {
		t.Fatalf("second b.PeerStep failed: %v", err)
	}

	if !bytes.Equal(chain1A, chain1B) || !bytes.Equal(chain2A, chain2B) {
		t.Error("Consecutive steps did not converge")
	}
	if bytes.Equal(chain1A, chain2A) {
		t.Error("Consecutive epochs derived the same chain key")
	}

	// B forces the next step; A mirrors.
	chain3B, pub3, err := b.ForceStep()
	if err != nil {
		t.Fatalf("b.ForceStep failed: %v", err)
	}
	chain3A, err := a.PeerStep(pub3)
	if err != nil {
		t.Fatalf("a.PeerStep failed: %v", err)
	}
	if !bytes.Equal(chain3A, chain3B) {
		t.Error("Alternating direction step did not converge")
	}
	if a.Epoch() != 3 || b.Epoch() != 3 {
		t.Errorf("Epochs: got %d/%d, want 3/3", a.Epoch(), b.Epoch())
	}
}
