// Package shroud provides a hybrid post-quantum secure transport core:
// an authenticated handshake, per-packet key ratcheting, and a
// traffic-analysis-resistant wire framing layer.
//
// Shroud combines a Noise XX handshake over X25519 with ML-KEM (NIST FIPS
// 203) key encapsulation for defense-in-depth security against both
// classical and quantum attacks.
//
// # Quick Start
//
// For a complete handshake and encrypted frame exchange:
//
//	import (
//	    "github.com/shroudnet/shroud-go/pkg/frame"
//	    "github.com/shroudnet/shroud-go/pkg/handshake"
//	    "github.com/shroudnet/shroud-go/pkg/session"
//	)
//
//	init, _ := handshake.NewInitiator(handshake.Options{})
//	resp, _ := handshake.NewResponder(handshake.Options{})
//
//	msg1, _ := init.CreateMessage1()
//	msg2, _ := resp.HandleMessage1(msg1)
//	msg3, _ := init.HandleMessage2(msg2)
//	resp.HandleMessage3(msg3)
//
//	ri, _ := init.Result()
//	a, _ := session.New(ri, true)
//	wire, _ := a.SealFrame(frame.TypeData, 1, 0, []byte("Hello!"))
//
// For low-level hybrid key encapsulation:
//
//	import (
//	    "github.com/shroudnet/shroud-go/pkg/hybrid"
//	    "github.com/shroudnet/shroud-go/pkg/suite"
//	)
//
//	keyPair, _ := hybrid.GenerateKeyPair(suite.SuiteMaxPQ)
//	sharedSecret, encap, _ := hybrid.Encapsulate(keyPair.PublicKey())
//	recoveredSecret, _ := hybrid.Decapsulate(keyPair, encap)
//
// # Package Structure
//
// The library is organized into several packages:
//
//   - pkg/handshake: Three-message Noise XX handshake with hybrid KEM
//   - pkg/session: Established sessions: frame sealing, rekeying, stream keys
//   - pkg/hybrid: Hybrid X25519 + ML-KEM key encapsulation API
//   - pkg/suite: Cipher suite definitions and negotiation
//   - pkg/ratchet: Per-packet symmetric ratchet and DH root ratchet
//   - pkg/frame: Wire framing, polymorphic headers, v1 compatibility
//   - pkg/crypto: Low-level primitives (ML-KEM, X25519, KDF, AEAD)
//   - pkg/metrics: Observability: metrics, logging, tracing, health
//   - internal/constants: Security parameters and protocol constants
//   - internal/errors: Custom error types for detailed error handling
//
// # Security Properties
//
// The protocol provides:
//
//   - Post-quantum security: ML-KEM-768/1024 (NIST Categories 3 and 5)
//   - Classical security: X25519 inside the Noise XX pattern
//   - Hybrid guarantee: Secure if EITHER algorithm is secure
//   - Forward secrecy: Single-use per-packet keys from a symmetric ratchet
//   - Post-compromise security: DH rekeying folds fresh entropy into the root
//   - Replay protection: Consumed packet keys can never decrypt again
//   - Traffic analysis resistance: Key-derived polymorphic header layout
//
// # Testing
//
// The library includes comprehensive tests:
//
//	go test ./...                                      # All tests
//	go test -fuzz=FuzzDecodeHeaderV2 ./test/fuzz/      # Fuzz tests
//	go test -bench=. ./test/benchmark                  # Benchmarks
//	go test ./test/integration                         # End-to-end tests
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - RFC 7748: Elliptic Curves for Security
//   - The Noise Protocol Framework (https://noiseprotocol.org)
//
// For more information, see: https://github.com/shroudnet/shroud-go
package shroud
