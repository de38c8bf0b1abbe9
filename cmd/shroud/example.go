package main

import (
	"fmt"
	"strings"
)

func showExamples() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Shroud: Interactive Examples                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	examples := []struct {
		title       string
		description string
		code        string
	}{
		{
			title:       "Example 1: Handshake and Session",
			description: "Three-message handshake followed by frame exchange",
			code: `package main

import (
    "fmt"
    "github.com/shroudnet/shroud-go/pkg/frame"
    "github.com/shroudnet/shroud-go/pkg/handshake"
    "github.com/shroudnet/shroud-go/pkg/session"
)

func main() {
    // Each side constructs a handshake with its preferences.
    init, _ := handshake.NewInitiator(handshake.Options{})
    resp, _ := handshake.NewResponder(handshake.Options{})

    // Carry the three messages over any transport you like.
    msg1, _ := init.CreateMessage1()
    msg2, _ := resp.HandleMessage1(msg1)
    msg3, _ := init.HandleMessage2(msg2)
    resp.HandleMessage3(msg3)

    // Both sides derive sessions from the handshake result.
    ri, _ := init.Result()
    rr, _ := resp.Result()
    a, _ := session.New(ri, true)
    b, _ := session.New(rr, false)
    defer a.Close()
    defer b.Close()

    // Seal on one side, open on the other.
    wire, _ := a.SealFrame(frame.TypeData, 1, 0, []byte("hello"))
    _, payload, _ := b.OpenFrame(wire)
    fmt.Printf("Received: %s\n", payload)
}`,
		},
		{
			title:       "Example 2: Low-Level Hybrid KEM API",
			description: "Direct use of the hybrid KEM for key encapsulation",
			code: `package main

import (
    "bytes"
    "fmt"
    "github.com/shroudnet/shroud-go/pkg/hybrid"
    "github.com/shroudnet/shroud-go/pkg/suite"
)

func main() {
    // RECIPIENT: Generate key pair for a suite
    keyPair, _ := hybrid.GenerateKeyPair(suite.SuiteMaxPQ)
    publicKey := keyPair.PublicKey()

    // SENDER: Encapsulate to create shared secret
    secretSender, encap, _ := hybrid.Encapsulate(publicKey)

    // RECIPIENT: Decapsulate to recover shared secret
    secretRecipient, _ := hybrid.Decapsulate(keyPair, encap)

    // Both now have the same 32-byte secret
    fmt.Printf("Secrets match: %v\n",
        bytes.Equal(secretSender.Bytes(), secretRecipient.Bytes()))

    fmt.Printf("Public key: %d bytes\n", len(publicKey.Bytes()))
    fmt.Printf("Encapsulation: %d bytes\n", len(encap.Bytes()))
}`,
		},
		{
			title:       "Example 3: Suite and Format Negotiation",
			description: "Constraining suites and wire formats per side",
			code: `package main

import (
    "github.com/shroudnet/shroud-go/pkg/frame"
    "github.com/shroudnet/shroud-go/pkg/handshake"
    "github.com/shroudnet/shroud-go/pkg/suite"
)

func main() {
    // Offer only post-quantum suites and refuse the legacy v1 format.
    opts := handshake.Options{
        Suites: []suite.Suite{suite.SuiteMaxPQ, suite.SuiteBalancedPQ},
        Formats: frame.FormatNegotiation{
            Preferred:    frame.FormatV2Polymorphic,
            AllowV1:      false,
            AllowV2Plain: true,
        },
    }

    init, _ := handshake.NewInitiator(opts)
    _ = init

    // The responder picks the highest mutually supported suite and
    // the strongest wire format both sides accept. If nothing
    // overlaps, message processing fails with ErrNoCommonSuite or
    // ErrNoCommonFormat and the handshake aborts.
}`,
		},
		{
			title:       "Example 4: Rekeying and Stream Keys",
			description: "Forward secrecy within a live session",
			code: `package main

import (
    "fmt"
    "github.com/shroudnet/shroud-go/pkg/session"
)

func run(a, b *session.Session, transport session.Transport) {
    // DH rekey: a fresh X25519 exchange folded into the root key.
    // The rekey frame must be delivered to the peer, which applies
    // it inside OpenFrame.
    rekeyFrame, _ := a.RekeyDH()
    transport.Send(nil, rekeyFrame)

    // Per-stream keys derived from the session's traffic secrets.
    // Both sides derive the same key for the same stream/direction.
    sendKey, _ := a.SendStreamKey(7)
    recvKey, _ := b.RecvStreamKey(7)
    fmt.Printf("Keys match: %v\n", string(sendKey) == string(recvKey))
}`,
		},
		{
			title:       "Example 5: Error Handling",
			description: "Proper error handling and resource cleanup",
			code: `package main

import (
    "fmt"
    "log"
    "github.com/shroudnet/shroud-go/pkg/session"
    serrors "github.com/shroudnet/shroud-go/internal/errors"
)

func receive(sess *session.Session, wire []byte) {
    _, payload, err := sess.OpenFrame(wire)
    if err != nil {
        // Check for specific error types
        if serrors.Is(err, serrors.ErrKeyConsumed) {
            fmt.Println("Replay blocked: packet key already used")
        } else if serrors.Is(err, serrors.ErrAuthenticationFailed) {
            fmt.Println("Frame failed authentication")
        } else if serrors.Is(err, serrors.ErrSessionClosed) {
            fmt.Println("Session was closed")
        } else {
            log.Printf("Open error: %v", err)
        }
        return
    }

    fmt.Printf("Received: %s\n", payload)
}`,
		},
		{
			title:       "Example 6: Security Best Practices",
			description: "Important security considerations",
			code: `package main

func main() {
    // BEST PRACTICE 1: Verify peer identity
    // The handshake authenticates static keys via Noise XX, but you
    // must pin or verify the peer's static key out of band.
    // result.PeerStatic carries the authenticated peer key.

    // BEST PRACTICE 2: Rekey long-lived sessions
    // Packet keys are single-use, but a periodic RekeyDH() folds a
    // fresh DH exchange into the root key for post-compromise
    // security.

    // BEST PRACTICE 3: Close sessions
    // Close() zeroizes all key material. Always defer it.

    // BEST PRACTICE 4: Prefer the polymorphic wire format
    // FormatV2Polymorphic resists traffic analysis. Only allow the
    // legacy v1 format when interoperating with old peers.

    // BEST PRACTICE 5: Use HSM for long-term keys in production
    // This library uses ephemeral keys per session (good!)
    // For static identity keys, use hardware security modules.
}`,
		},
	}

	for i, ex := range examples {
		fmt.Printf("┌%s┐\n", strings.Repeat("─", 58))
		fmt.Printf("│ %s%s │\n", ex.title, strings.Repeat(" ", 58-len(ex.title)-2))
		fmt.Printf("└%s┘\n", strings.Repeat("─", 58))
		fmt.Println()
		fmt.Println(ex.description)
		fmt.Println()
		fmt.Println(ex.code)
		fmt.Println()

		if i < len(examples)-1 {
			fmt.Println()
		}
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    Next Steps                             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Try the demo:")
	fmt.Println("  shroud demo --verbose")
	fmt.Println()
	fmt.Println("Run benchmarks:")
	fmt.Println("  shroud bench --handshakes 100 --throughput")
	fmt.Println()
	fmt.Println("Documentation:")
	fmt.Println("  https://github.com/shroudnet/shroud-go")
	fmt.Println("  https://pkg.go.dev/github.com/shroudnet/shroud-go")
}
