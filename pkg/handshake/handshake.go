// Package handshake implements the 3-message mutually authenticated
// handshake that establishes a session.
//
// The outer channel is Noise XX (X25519 / ChaCha20-Poly1305 / BLAKE2s),
// which provides mutual static-key authentication and identity hiding for
// both peers. The handshake payloads carry the post-quantum layer on top:
//
//	message 1 (initiator): suite offer, wire format offer, one hybrid KEM
//	                       public key per offered suite
//	message 2 (responder): chosen suite, chosen wire format, encapsulation
//	                       against the chosen suite's public key, responder
//	                       rekey-ratchet public key
//	message 3 (initiator): initiator rekey-ratchet public key
//
// Session key material combines the hybrid KEM shared secret with the Noise
// channel binding hash, so the secrets feeding the record layer are bound to
// the full handshake transcript, including both static identities and the
// negotiation fields. Tampering with any message aborts the handshake; no
// partial secrets survive a failure.
package handshake

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/flynn/noise"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
	"github.com/shroudnet/shroud-go/pkg/frame"
	"github.com/shroudnet/shroud-go/pkg/hybrid"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

// State tracks handshake progress. Calls out of order fail with
// ErrInvalidState and do not disturb the state machine.
type State uint8

const (
	// StateUninitialized is the state before any message is processed.
	StateUninitialized State = iota

	// StateAwaitingMessage2 is the initiator after sending message 1.
	StateAwaitingMessage2

	// StateAwaitingMessage3 is the responder after sending message 2.
	StateAwaitingMessage3

	// StateEstablished is reached after message 3 on both sides.
	StateEstablished

	// StateFailed is terminal; a failed handshake cannot be resumed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingMessage2:
		return "awaiting-message-2"
	case StateAwaitingMessage3:
		return "awaiting-message-3"
	case StateEstablished:
		return "established"
	default:
		return "failed"
	}
}

// handshakePrologue is mixed into the Noise transcript so handshakes from
// unrelated protocols can never be cross-fed.
var handshakePrologue = []byte("shroud-v2 handshake")

// cipherSuite is the fixed Noise outer suite.
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Options configures one side of a handshake.
type Options struct {
	// StaticKeyPair is the long-term Noise identity key. Generated fresh
	// when empty, which is fine for tests but defeats peer pinning.
	StaticKeyPair noise.DHKey

	// Suites is the cipher-suite offer, defaulting to all known suites.
	Suites []suite.Suite

	// Formats is the wire-format offer, defaulting to polymorphic v2 with
	// full fallback.
	Formats frame.FormatNegotiation
}

// GenerateStaticKeyPair creates a long-term Noise identity key pair.
func GenerateStaticKeyPair() (noise.DHKey, error) {
	return noise.DH25519.GenerateKeypair(rand.Reader)
}

// Result holds everything a completed handshake exports to the session
// layer.
type Result struct {
	// SharedSecret is the hybrid KEM shared secret.
	SharedSecret *hybrid.SharedSecret

	// TranscriptHash is the Noise channel binding: a 32-byte digest of the
	// full handshake transcript, identical on both sides.
	TranscriptHash []byte

	// Suite is the negotiated cipher suite.
	Suite suite.Suite

	// WireFormat is the negotiated record wire format.
	WireFormat frame.WireFormat

	// RatchetKeyPair is the local rekey-ratchet key pair.
	RatchetKeyPair *crypto.X25519KeyPair

	// PeerRatchetPublic is the peer's rekey-ratchet public key.
	PeerRatchetPublic *ecdh.PublicKey

	// PeerStatic is the peer's long-term Noise public key, for pinning.
	PeerStatic []byte
}

// SessionKeys derives the record-layer key schedule from the handshake
// outputs. The transcript hash salts the derivation, binding record keys to
// the identities and negotiation the handshake authenticated.
func (r *Result) SessionKeys() (*crypto.SessionKeys, error) {
	return crypto.DeriveSessionKeys(r.SharedSecret.Bytes(), r.TranscriptHash)
}

// Handshake is one side of an in-progress handshake. Not safe for
// concurrent use; drive it from a single goroutine.
type Handshake struct {
	state     State
	initiator bool

	hs      *noise.HandshakeState
	suites  []suite.Suite
	formats frame.FormatNegotiation

	// kemKeys holds the initiator's per-suite hybrid key pairs between
	// message 1 and message 2.
	kemKeys map[suite.Suite]*hybrid.KeyPair

	result *Result
}

// NewInitiator prepares the initiating side.
func NewInitiator(opts Options) (*Handshake, error) {
	return newHandshake(opts, true)
}

// NewResponder prepares the responding side.
func NewResponder(opts Options) (*Handshake, error) {
	return newHandshake(opts, false)
}

func newHandshake(opts Options, initiator bool) (*Handshake, error) {
	static := opts.StaticKeyPair
	if len(static.Private) == 0 {
		var err error
		static, err = GenerateStaticKeyPair()
		if err != nil {
			return nil, serrors.NewProtocolError("setup", err)
		}
	}

	suites := opts.Suites
	if len(suites) == 0 {
		suites = suite.DefaultSuites()
	}
	for _, s := range suites {
		if !s.IsValid() {
			return nil, serrors.NewProtocolError("setup", serrors.ErrUnknownSuite)
		}
	}

	formats := opts.Formats
	if formats == (frame.FormatNegotiation{}) {
		formats = frame.DefaultFormatNegotiation()
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		Prologue:      handshakePrologue,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, serrors.NewProtocolError("setup", err)
	}

	return &Handshake{
		state:     StateUninitialized,
		initiator: initiator,
		hs:        hs,
		suites:    suites,
		formats:   formats,
	}, nil
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	return h.state
}

// CreateMessage1 produces the initiator's opening message: the Noise XX
// first message carrying the suite offer, format offer, and one hybrid KEM
// public key per offered suite.
func (h *Handshake) CreateMessage1() ([]byte, error) {
	if !h.initiator || h.state != StateUninitialized {
		return nil, serrors.NewProtocolError("message1", serrors.ErrInvalidState)
	}

	h.kemKeys = make(map[suite.Suite]*hybrid.KeyPair, len(h.suites))
	payload := make([]byte, 0, 64)
	payload = append(payload, uint8(len(h.suites)))
	payload = append(payload, suite.EncodeList(h.suites)...)
	payload = append(payload, encodeFormats(h.formats)...)

	for _, s := range h.suites {
		kp, err := hybrid.GenerateKeyPair(s)
		if err != nil {
			h.abort()
			return nil, serrors.NewProtocolError("message1", err)
		}
		h.kemKeys[s] = kp
		payload = append(payload, kp.PublicKey().Bytes()...)
	}

	msg, _, _, err := h.hs.WriteMessage(nil, payload)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}

	h.state = StateAwaitingMessage2
	return msg, nil
}

// HandleMessage1 consumes the initiator's opening message on the responder
// and produces message 2: the negotiated suite and format, the KEM
// encapsulation, and the responder's rekey-ratchet public key.
func (h *Handshake) HandleMessage1(message []byte) ([]byte, error) {
	if h.initiator || h.state != StateUninitialized {
		return nil, serrors.NewProtocolError("message1", serrors.ErrInvalidState)
	}
	if len(message) > constants.MaxHandshakeMessageSize {
		return nil, serrors.NewProtocolError("message1", serrors.ErrMessageTooLarge)
	}

	payload, _, _, err := h.hs.ReadMessage(nil, message)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}

	offer, peerFormats, peerKeys, err := decodeMessage1Payload(payload)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}

	chosen, err := suite.Negotiate(h.suites, offer)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}
	format, err := frame.NegotiateFormat(h.formats, peerFormats)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}

	secret, encap, err := hybrid.Encapsulate(peerKeys[chosen])
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message1", err)
	}

	ratchetKP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		secret.Zeroize()
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}

	reply := make([]byte, 0, 2+hybrid.EncapsulationSize(chosen)+constants.X25519PublicKeySize)
	reply = append(reply, chosen.WireID(), uint8(format))
	reply = append(reply, encap.Bytes()...)
	reply = append(reply, ratchetKP.PublicKeyBytes()...)

	msg, _, _, err := h.hs.WriteMessage(nil, reply)
	if err != nil {
		secret.Zeroize()
		ratchetKP.Zeroize()
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}

	h.result = &Result{
		SharedSecret:   secret,
		Suite:          chosen,
		WireFormat:     format,
		RatchetKeyPair: ratchetKP,
	}
	h.state = StateAwaitingMessage3
	return msg, nil
}

// HandleMessage2 consumes the responder's reply on the initiator and
// produces the final message carrying the initiator's rekey-ratchet public
// key. The handshake is established once the message is written.
func (h *Handshake) HandleMessage2(message []byte) ([]byte, error) {
	if !h.initiator || h.state != StateAwaitingMessage2 {
		return nil, serrors.NewProtocolError("message2", serrors.ErrInvalidState)
	}
	if len(message) > constants.MaxHandshakeMessageSize {
		return nil, serrors.NewProtocolError("message2", serrors.ErrMessageTooLarge)
	}

	payload, _, _, err := h.hs.ReadMessage(nil, message)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}

	if len(payload) < 2 {
		h.abort()
		return nil, serrors.NewProtocolError("message2", serrors.ErrInvalidMessage)
	}
	chosen, err := suite.FromWireID(payload[0])
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}
	kp, offered := h.kemKeys[chosen]
	if !offered {
		h.abort()
		return nil, serrors.NewProtocolError("message2", serrors.ErrNoCommonSuite)
	}
	format := frame.WireFormat(payload[1])
	if !h.formats.Supports(format) {
		h.abort()
		return nil, serrors.NewProtocolError("message2", serrors.ErrNoCommonFormat)
	}

	body := payload[2:]
	encapLen := hybrid.EncapsulationSize(chosen)
	if len(body) != encapLen+constants.X25519PublicKeySize {
		h.abort()
		return nil, serrors.NewProtocolError("message2", serrors.ErrInvalidMessage)
	}

	encap, err := hybrid.ParseEncapsulation(chosen, body[:encapLen])
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}
	peerRatchet, err := crypto.ParseX25519PublicKey(body[encapLen:])
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}

	secret, err := hybrid.Decapsulate(kp, encap)
	if err != nil {
		h.abort()
		return nil, serrors.NewProtocolError("message2", err)
	}

	ratchetKP, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		secret.Zeroize()
		h.abort()
		return nil, serrors.NewProtocolError("message3", err)
	}

	msg, _, _, err := h.hs.WriteMessage(nil, ratchetKP.PublicKeyBytes())
	if err != nil {
		secret.Zeroize()
		ratchetKP.Zeroize()
		h.abort()
		return nil, serrors.NewProtocolError("message3", err)
	}

	h.result = &Result{
		SharedSecret:      secret,
		TranscriptHash:    h.hs.ChannelBinding(),
		Suite:             chosen,
		WireFormat:        format,
		RatchetKeyPair:    ratchetKP,
		PeerRatchetPublic: peerRatchet,
		PeerStatic:        h.hs.PeerStatic(),
	}
	h.dropKEMKeys()
	h.state = StateEstablished
	return msg, nil
}

// HandleMessage3 consumes the final message on the responder, completing
// the handshake.
func (h *Handshake) HandleMessage3(message []byte) error {
	if h.initiator || h.state != StateAwaitingMessage3 {
		return serrors.NewProtocolError("message3", serrors.ErrInvalidState)
	}
	if len(message) > constants.MaxHandshakeMessageSize {
		return serrors.NewProtocolError("message3", serrors.ErrMessageTooLarge)
	}

	payload, _, _, err := h.hs.ReadMessage(nil, message)
	if err != nil {
		h.abort()
		return serrors.NewProtocolError("message3", err)
	}

	peerRatchet, err := crypto.ParseX25519PublicKey(payload)
	if err != nil {
		h.abort()
		return serrors.NewProtocolError("message3", err)
	}

	h.result.TranscriptHash = h.hs.ChannelBinding()
	h.result.PeerRatchetPublic = peerRatchet
	h.result.PeerStatic = h.hs.PeerStatic()
	h.state = StateEstablished
	return nil
}

// Result returns the handshake outputs. Only valid once established.
func (h *Handshake) Result() (*Result, error) {
	if h.state != StateEstablished {
		return nil, serrors.NewProtocolError("result", serrors.ErrInvalidState)
	}
	return h.result, nil
}

// abort destroys all intermediate key material and poisons the state
// machine.
func (h *Handshake) abort() {
	h.dropKEMKeys()
	if h.result != nil {
		if h.result.SharedSecret != nil {
			h.result.SharedSecret.Zeroize()
		}
		if h.result.RatchetKeyPair != nil {
			h.result.RatchetKeyPair.Zeroize()
		}
		h.result = nil
	}
	h.state = StateFailed
}

func (h *Handshake) dropKEMKeys() {
	for _, kp := range h.kemKeys {
		kp.Zeroize()
	}
	h.kemKeys = nil
}

// encodeFormats packs a format offer into two bytes: preferred format, then
// the fallback-permission bits.
func encodeFormats(n frame.FormatNegotiation) []byte {
	var flags uint8
	if n.AllowV1 {
		flags |= 0x01
	}
	if n.AllowV2Plain {
		flags |= 0x02
	}
	return []byte{uint8(n.Preferred), flags}
}

func decodeFormats(b []byte) (frame.FormatNegotiation, error) {
	if len(b) < 2 || b[0] > uint8(frame.FormatV2Polymorphic) {
		return frame.FormatNegotiation{}, serrors.ErrInvalidMessage
	}
	return frame.FormatNegotiation{
		Preferred:    frame.WireFormat(b[0]),
		AllowV1:      b[1]&0x01 != 0,
		AllowV2Plain: b[1]&0x02 != 0,
	}, nil
}

// decodeMessage1Payload parses the suite offer, format offer, and per-suite
// hybrid public keys. Strict: duplicate suites, truncated keys, and trailing
// bytes are all rejected.
func decodeMessage1Payload(payload []byte) ([]suite.Suite, frame.FormatNegotiation, map[suite.Suite]*hybrid.PublicKey, error) {
	if len(payload) < 1 {
		return nil, frame.FormatNegotiation{}, nil, serrors.ErrInvalidMessage
	}
	n := int(payload[0])
	if n == 0 || len(payload) < 1+n+2 {
		return nil, frame.FormatNegotiation{}, nil, serrors.ErrInvalidMessage
	}

	offer, err := suite.DecodeList(payload[1 : 1+n])
	if err != nil {
		return nil, frame.FormatNegotiation{}, nil, err
	}

	formats, err := decodeFormats(payload[1+n : 1+n+2])
	if err != nil {
		return nil, frame.FormatNegotiation{}, nil, err
	}

	keys := make(map[suite.Suite]*hybrid.PublicKey, len(offer))
	rest := payload[1+n+2:]
	for _, s := range offer {
		if _, dup := keys[s]; dup {
			return nil, frame.FormatNegotiation{}, nil, serrors.ErrInvalidMessage
		}
		size := hybrid.PublicKeySize(s)
		if len(rest) < size {
			return nil, frame.FormatNegotiation{}, nil, serrors.ErrInvalidMessage
		}
		pk, err := hybrid.ParsePublicKey(s, rest[:size])
		if err != nil {
			return nil, frame.FormatNegotiation{}, nil, err
		}
		keys[s] = pk
		rest = rest[size:]
	}
	if len(rest) != 0 {
		return nil, frame.FormatNegotiation{}, nil, serrors.ErrInvalidMessage
	}

	return offer, formats, keys, nil
}
