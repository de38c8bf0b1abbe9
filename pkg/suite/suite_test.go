package suite_test

import (
	"testing"

	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

func TestSuiteValidity(t *testing.T) {
	valid := []suite.Suite{
		suite.SuiteMaxPQ, suite.SuiteBalancedPQ, suite.SuiteHardwarePQ, suite.SuiteClassical,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}

	for _, id := range []uint8{0x00, 0x05, 0x7F, 0xFF} {
		if suite.Suite(id).IsValid() {
			t.Errorf("Suite 0x%02x should be invalid", id)
		}
	}
}

func TestSuiteProperties(t *testing.T) {
	tests := []struct {
		s       suite.Suite
		pq      bool
		variant crypto.MLKEMVariant
		aead    crypto.AEADAlgorithm
	}{
		{suite.SuiteMaxPQ, true, crypto.MLKEM1024, crypto.AlgXChaCha20Poly1305},
		{suite.SuiteBalancedPQ, true, crypto.MLKEM768, crypto.AlgXChaCha20Poly1305},
		{suite.SuiteHardwarePQ, true, crypto.MLKEM768, crypto.AlgAES256GCM},
		{suite.SuiteClassical, false, crypto.MLKEM768, crypto.AlgChaCha20Poly1305},
	}

	for _, tt := range tests {
		if got := tt.s.SupportsPostQuantum(); got != tt.pq {
			t.Errorf("%s SupportsPostQuantum: got %v, want %v", tt.s, got, tt.pq)
		}
		if tt.pq {
			if got := tt.s.KEMVariant(); got != tt.variant {
				t.Errorf("%s KEMVariant: got %v, want %v", tt.s, got, tt.variant)
			}
		}
		if got := tt.s.AEADAlgorithm(); got != tt.aead {
			t.Errorf("%s AEADAlgorithm: got %v, want %v", tt.s, got, tt.aead)
		}
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name    string
		local   []suite.Suite
		remote  []suite.Suite
		want    suite.Suite
		wantErr bool
	}{
		{
			name:   "full overlap picks strongest",
			local:  suite.DefaultSuites(),
			remote: suite.DefaultSuites(),
			want:   suite.SuiteMaxPQ,
		},
		{
			name:   "partial overlap",
			local:  []suite.Suite{suite.SuiteMaxPQ, suite.SuiteClassical},
			remote: []suite.Suite{suite.SuiteBalancedPQ, suite.SuiteClassical},
			want:   suite.SuiteClassical,
		},
		{
			name:   "strength order beats list order",
			local:  []suite.Suite{suite.SuiteClassical, suite.SuiteMaxPQ},
			remote: []suite.Suite{suite.SuiteClassical, suite.SuiteMaxPQ},
			want:   suite.SuiteMaxPQ,
		},
		{
			name:    "no overlap",
			local:   []suite.Suite{suite.SuiteMaxPQ},
			remote:  []suite.Suite{suite.SuiteClassical},
			wantErr: true,
		},
		{
			name:    "empty lists",
			local:   nil,
			remote:  nil,
			wantErr: true,
		},
		{
			name:   "unknown entries ignored",
			local:  []suite.Suite{suite.Suite(0x7F), suite.SuiteBalancedPQ},
			remote: []suite.Suite{suite.SuiteBalancedPQ, suite.Suite(0xEE)},
			want:   suite.SuiteBalancedPQ,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := suite.Negotiate(tt.local, tt.remote)
			if tt.wantErr {
				if !serrors.Is(err, serrors.ErrNoCommonSuite) {
					t.Fatalf("Expected ErrNoCommonSuite, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Negotiate: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNegotiateSymmetric(t *testing.T) {
	lists := [][]suite.Suite{
		suite.DefaultSuites(),
		{suite.SuiteBalancedPQ, suite.SuiteClassical},
		{suite.SuiteClassical},
		{suite.SuiteHardwarePQ, suite.SuiteMaxPQ},
	}

	for i, a := range lists {
		for j, b := range lists {
			sa, errA := suite.Negotiate(a, b)
			sb, errB := suite.Negotiate(b, a)

			if (errA == nil) != (errB == nil) {
				t.Errorf("lists %d/%d: asymmetric errors %v vs %v", i, j, errA, errB)
				continue
			}
			if errA == nil && sa != sb {
				t.Errorf("lists %d/%d: asymmetric result %s vs %s", i, j, sa, sb)
			}
		}
	}
}

func TestSuiteListRoundTrip(t *testing.T) {
	in := []suite.Suite{suite.SuiteMaxPQ, suite.SuiteHardwarePQ, suite.SuiteClassical}
	wire := suite.EncodeList(in)

	out, err := suite.DecodeList(wire)
	if err != nil {
		t.Fatalf("DecodeList failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Round trip length: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Entry %d: got %s, want %s", i, out[i], in[i])
		}
	}
}

func TestDecodeListRejectsUnknown(t *testing.T) {
	if _, err := suite.DecodeList([]byte{0x01, 0x99}); !serrors.Is(err, serrors.ErrUnknownSuite) {
		t.Errorf("Expected ErrUnknownSuite, got %v", err)
	}
}
