package constants

import (
	"strings"
	"testing"
)

// TestConstants verifies constant values using table-driven tests.
func TestConstants(t *testing.T) {
	t.Run("KeySizes", testKeySizes)
	t.Run("AEADParameters", testAEADParameters)
	t.Run("FrameParameters", testFrameParameters)
	t.Run("RekeyThresholds", testRekeyThresholds)
	t.Run("MessageLimits", testMessageLimits)
	t.Run("DerivationLabels", testDerivationLabels)
}

func testKeySizes(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"X25519PublicKeySize", X25519PublicKeySize, 32},
		{"X25519PrivateKeySize", X25519PrivateKeySize, 32},
		{"X25519SharedSecretSize", X25519SharedSecretSize, 32},
		{"MLKEM768PublicKeySize", MLKEM768PublicKeySize, 1184},
		{"MLKEM768CiphertextSize", MLKEM768CiphertextSize, 1088},
		{"MLKEM1024PublicKeySize", MLKEM1024PublicKeySize, 1568},
		{"MLKEM1024CiphertextSize", MLKEM1024CiphertextSize, 1568},
		{"MLKEMSharedSecretSize", MLKEMSharedSecretSize, 32},
		{"SharedSecretSize", SharedSecretSize, 32},
		{"KDFOutputSize", KDFOutputSize, 32},
		{"TranscriptHashSize", TranscriptHashSize, 32},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func testAEADParameters(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"AEADKeySize", AEADKeySize, 32},
		{"AEADNonceSize", AEADNonceSize, 12},
		{"XAEADNonceSize", XAEADNonceSize, 24},
		{"AEADTagSize", AEADTagSize, 16},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func testFrameParameters(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"FrameHeaderV2Size", FrameHeaderV2Size, 24},
		{"FrameHeaderV1Size", FrameHeaderV1Size, 28},
		{"ConnectionIDSize", ConnectionIDSize, 8},
		{"ConnectionIDV2Size", ConnectionIDV2Size, 16},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	// The v2 connection ID must fit in the v1 ID plus the generation bytes.
	if ConnectionIDV2Size <= ConnectionIDSize {
		t.Error("v2 connection ID must be larger than v1")
	}
}

func testRekeyThresholds(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"MaxBytesBeforeRekey", MaxBytesBeforeRekey},
		{"MaxPacketsBeforeRekey", MaxPacketsBeforeRekey},
		{"DefaultRatchetWindow", DefaultRatchetWindow},
	}
	for _, tt := range tests {
		if tt.value == 0 {
			t.Errorf("%s should be non-zero", tt.name)
		}
	}

	// Packet budget must stay below the 2^32 nonce-reuse bound.
	if MaxPacketsBeforeRekey >= 1<<32 {
		t.Error("MaxPacketsBeforeRekey must stay below the nonce limit")
	}
}

func testMessageLimits(t *testing.T) {
	tests := []struct {
		name  string
		value int
	}{
		{"MaxPayloadSize", MaxPayloadSize},
		{"MaxHandshakeMessageSize", MaxHandshakeMessageSize},
	}
	for _, tt := range tests {
		if tt.value == 0 {
			t.Errorf("%s should be non-zero", tt.name)
		}
	}

	// Message 1 must fit one hybrid public key per suite plus framing.
	minMsg1 := 2*(X25519PublicKeySize+MLKEM1024PublicKeySize) +
		2*(X25519PublicKeySize+MLKEM768PublicKeySize)
	if MaxHandshakeMessageSize < minMsg1 {
		t.Errorf("MaxHandshakeMessageSize %d too small for full suite offer %d",
			MaxHandshakeMessageSize, minMsg1)
	}
}

func testDerivationLabels(t *testing.T) {
	labels := []struct {
		name  string
		value string
	}{
		{"LabelHybridCombine", LabelHybridCombine},
		{"LabelTrafficKeyI2R", LabelTrafficKeyI2R},
		{"LabelTrafficKeyR2I", LabelTrafficKeyR2I},
		{"LabelFormatKey", LabelFormatKey},
		{"LabelChainKey", LabelChainKey},
		{"LabelRatchetMessage", LabelRatchetMessage},
		{"LabelRatchetChain", LabelRatchetChain},
		{"LabelStreamKey", LabelStreamKey},
		{"LabelChainI2R", LabelChainI2R},
		{"LabelChainR2I", LabelChainR2I},
		{"LabelPolyPositions", LabelPolyPositions},
		{"LabelPolyMask", LabelPolyMask},
		{"LabelDHRatchetRoot", LabelDHRatchetRoot},
		{"LabelDHRatchetChain", LabelDHRatchetChain},
	}

	seen := make(map[string]string)
	for _, l := range labels {
		if l.value == "" {
			t.Errorf("%s is empty", l.name)
			continue
		}
		if !strings.HasPrefix(l.value, ProtocolName) {
			t.Errorf("%s = %q lacks protocol prefix %q", l.name, l.value, ProtocolName)
		}
		if prev, dup := seen[l.value]; dup {
			t.Errorf("%s duplicates %s: %q", l.name, prev, l.value)
		}
		seen[l.value] = l.name
	}
}

// TestVersionBytes verifies the wire version identifiers stay distinct.
func TestVersionBytes(t *testing.T) {
	if ProtocolVersionV1 == ProtocolVersionV2 {
		t.Error("version bytes must be distinct")
	}
	if ProtocolVersionV2 != 0x20 {
		t.Errorf("ProtocolVersionV2 = %#x, want 0x20", ProtocolVersionV2)
	}
}
