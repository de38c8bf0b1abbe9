// Package session implements the established record layer: per-packet
// forward-secret sealing and opening of frames, mid-session DH rekeying,
// per-stream subkeys, and connection identifier rotation.
//
// A Session is built from a completed handshake. The handshake's shared
// secret and transcript hash derive four keys: two direction traffic keys
// (feeding per-stream subkeys), the format key (feeding the polymorphic
// header layout when negotiated), and the initial chain key (split into one
// packet ratchet per direction). Every packet is sealed under a fresh
// ratchet key that is destroyed after use, so a key compromised later never
// opens earlier traffic.
//
// The session only produces and consumes opaque wire buffers; moving them
// between peers is the Transport's job. The core never opens sockets.
package session

import (
	"sync"

	"github.com/shroudnet/shroud-go/internal/constants"
	serrors "github.com/shroudnet/shroud-go/internal/errors"
	"github.com/shroudnet/shroud-go/pkg/crypto"
	"github.com/shroudnet/shroud-go/pkg/frame"
	"github.com/shroudnet/shroud-go/pkg/handshake"
	"github.com/shroudnet/shroud-go/pkg/metrics"
	"github.com/shroudnet/shroud-go/pkg/ratchet"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

// Session is one side of an established connection. All methods are safe
// for concurrent use; a single mutex guards the key state.
type Session struct {
	mu sync.Mutex

	suite      suite.Suite
	alg        crypto.AEADAlgorithm
	wireFormat frame.WireFormat
	poly       *frame.PolymorphicFormat

	sendTraffic []byte
	recvTraffic []byte

	send      *ratchet.PacketRatchet
	recv      *ratchet.PacketRatchet
	prevRecv  *ratchet.PacketRatchet
	sendEpoch uint32
	recvEpoch uint32

	dh *ratchet.DHRatchet

	localCID  frame.ConnectionIDV2
	remoteCID frame.ConnectionIDV2

	logger    *metrics.Logger
	collector *metrics.Collector

	closed bool
}

// Option adjusts session construction.
type Option func(*Session)

// WithLogger attaches a structured logger. Defaults to the null logger.
func WithLogger(l *metrics.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCollector attaches a metrics collector. Defaults to the global one.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Session) { s.collector = c }
}

// New builds a session from a completed handshake. The initiator flag picks
// which direction of the key schedule is outbound; the two sides of one
// handshake must pass opposite values.
func New(result *handshake.Result, initiator bool, opts ...Option) (*Session, error) {
	keys, err := result.SessionKeys()
	if err != nil {
		return nil, err
	}
	defer keys.Zeroize()

	i2r, r2i, err := crypto.DeriveChainKeys(keys.ChainKey)
	if err != nil {
		return nil, err
	}

	sendChain, recvChain := i2r, r2i
	sendTraffic, recvTraffic := keys.TrafficKeyI2R, keys.TrafficKeyR2I
	if !initiator {
		sendChain, recvChain = r2i, i2r
		sendTraffic, recvTraffic = keys.TrafficKeyR2I, keys.TrafficKeyI2R
	}

	defer crypto.ZeroizeMultiple(i2r, r2i)

	sendRatchet, err := ratchet.NewPacketRatchet(sendChain)
	if err != nil {
		return nil, err
	}
	recvRatchet, err := ratchet.NewPacketRatchet(recvChain)
	if err != nil {
		return nil, err
	}

	dh, err := ratchet.NewDHRatchet(keys.ChainKey, result.RatchetKeyPair, result.PeerRatchetPublic)
	if err != nil {
		return nil, err
	}

	var poly *frame.PolymorphicFormat
	if result.WireFormat == frame.FormatV2Polymorphic {
		poly, err = frame.DerivePolymorphicFormat(keys.FormatKey)
		if err != nil {
			return nil, err
		}
	}

	localCID, err := frame.GenerateConnectionIDV2()
	if err != nil {
		return nil, err
	}

	s := &Session{
		suite:       result.Suite,
		alg:         result.Suite.AEADAlgorithm(),
		wireFormat:  result.WireFormat,
		poly:        poly,
		sendTraffic: cloneKey(sendTraffic),
		recvTraffic: cloneKey(recvTraffic),
		send:        sendRatchet,
		recv:        recvRatchet,
		dh:          dh,
		localCID:    localCID,
		logger:      metrics.NullLogger(),
		collector:   metrics.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("session established", metrics.Fields{
		"suite":  s.suite.String(),
		"format": s.wireFormat.String(),
	})
	return s, nil
}

// Suite returns the negotiated cipher suite.
func (s *Session) Suite() suite.Suite {
	return s.suite
}

// WireFormat returns the negotiated wire format.
func (s *Session) WireFormat() frame.WireFormat {
	return s.wireFormat
}

// SealFrame encrypts a frame for the wire. The header travels in the
// negotiated wire format and is authenticated as associated data; the
// payload is sealed under a single-use ratchet key with a nonce derived
// from the packet number.
func (s *Session) SealFrame(t frame.Type, streamID uint32, flags frame.Flags, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealLocked(t, streamID, flags, payload)
}

func (s *Session) sealLocked(t frame.Type, streamID uint32, flags frame.Flags, payload []byte) ([]byte, error) {
	if s.closed {
		return nil, serrors.ErrSessionClosed
	}
	if len(payload) > constants.MaxPayloadSize {
		return nil, serrors.ErrMessageTooLarge
	}

	seq, key, err := s.send.NextSendKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	aead, err := crypto.NewAEAD(s.alg, key)
	if err != nil {
		s.collector.RecordSealError()
		return nil, err
	}

	header := &frame.HeaderV2{
		Version:   constants.ProtocolVersionV2,
		FrameType: t,
		Flags:     flags,
		Sequence:  seq,
		Length:    uint32(len(payload) + aead.Overhead()),
		StreamID:  streamID,
		Reserved:  s.sendEpoch,
	}

	headerBytes, err := s.encodeHeader(header)
	if err != nil {
		return nil, err
	}

	ciphertext, err := aead.Seal(aead.PacketNonce(seq), payload, headerBytes)
	if err != nil {
		s.collector.RecordSealError()
		return nil, err
	}

	s.collector.RecordFrameSealed()
	s.collector.RecordBytesSent(uint64(len(headerBytes) + len(ciphertext)))
	return append(headerBytes, ciphertext...), nil
}

// OpenFrame authenticates and decrypts a wire buffer, returning the logical
// header and plaintext payload. Replayed packets fail: each packet number's
// key can be retrieved exactly once. Rekey frames are processed internally
// before being returned, so the caller sees them but need not act on them.
func (s *Session) OpenFrame(data []byte) (*frame.HeaderV2, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, serrors.ErrSessionClosed
	}

	header, headerLen, err := s.decodeHeader(data)
	if err != nil {
		s.collector.RecordProtocolError()
		return nil, nil, err
	}

	r, err := s.recvRatchetForEpoch(header.Reserved)
	if err != nil {
		s.collector.RecordProtocolError()
		return nil, nil, err
	}

	key, err := r.KeyForPacket(header.Sequence)
	if err != nil {
		if serrors.Is(err, serrors.ErrKeyConsumed) {
			s.collector.RecordReplayBlocked()
		}
		return nil, nil, err
	}
	defer crypto.Zeroize(key)

	aead, err := crypto.NewAEAD(s.alg, key)
	if err != nil {
		s.collector.RecordOpenError()
		return nil, nil, err
	}

	payload, err := aead.Open(aead.PacketNonce(header.Sequence), data[headerLen:], data[:headerLen])
	if err != nil {
		s.collector.RecordAuthFailure()
		return nil, nil, err
	}

	if header.FrameType == frame.TypeRekey {
		if err := s.handlePeerRekeyLocked(payload); err != nil {
			s.collector.RecordRekeyFailed()
			return nil, nil, err
		}
	}

	s.collector.RecordFrameOpened()
	s.collector.RecordBytesReceived(uint64(len(data)))
	return header, payload, nil
}

// SealPadding seals a PaddingRandom frame with n bytes of random filler.
// Padding frames obscure traffic shape; receivers decrypt and discard them.
func (s *Session) SealPadding(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 || n > constants.MaxPayloadSize {
		return nil, serrors.ErrMessageTooLarge
	}
	filler, err := crypto.SecureRandomBytes(n)
	if err != nil {
		return nil, serrors.NewCryptoError("padding", err)
	}
	defer crypto.Zeroize(filler)
	return s.sealLocked(frame.TypePaddingRandom, 0, 0, filler)
}

// RekeyDH forces a DH ratchet step and returns the sealed rekey frame to
// transmit. The frame itself travels under the old epoch so the peer can
// open it; every later outbound packet uses the new epoch's ratchet.
//
// Only one rekey may be in flight at a time. If both peers force a step
// before opening the other's rekey frame, the two roots mix different DH
// outputs and permanently diverge. Callers serialize rekeys, for example
// by letting the initiator drive them.
func (s *Session) RekeyDH() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, serrors.ErrSessionClosed
	}

	chainKey, public, err := s.dh.ForceStep()
	if err != nil {
		s.collector.RecordRekeyFailed()
		return nil, err
	}

	frameBytes, err := s.sealLocked(frame.TypeRekey, 0, 0, public.Bytes())
	if err != nil {
		crypto.Zeroize(chainKey)
		s.collector.RecordRekeyFailed()
		return nil, err
	}

	newSend, err := ratchet.NewPacketRatchet(chainKey)
	if err != nil {
		crypto.Zeroize(chainKey)
		s.collector.RecordRekeyFailed()
		return nil, err
	}
	crypto.Zeroize(chainKey)

	s.send.Zeroize()
	s.send = newSend
	s.sendEpoch++
	s.collector.RecordRekeyInitiated()
	s.logger.Debug("dh rekey initiated", metrics.Fields{"epoch": s.sendEpoch})
	return frameBytes, nil
}

// handlePeerRekeyLocked mirrors a peer-forced DH step: the previous recv
// epoch stays alive for in-flight packets, and the new epoch becomes
// current.
func (s *Session) handlePeerRekeyLocked(payload []byte) error {
	peerPublic, err := crypto.ParseX25519PublicKey(payload)
	if err != nil {
		return err
	}

	chainKey, err := s.dh.PeerStep(peerPublic)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(chainKey)

	newRecv, err := ratchet.NewPacketRatchet(chainKey)
	if err != nil {
		return err
	}

	if s.prevRecv != nil {
		s.prevRecv.Zeroize()
	}
	s.prevRecv = s.recv
	s.recv = newRecv
	s.recvEpoch++
	s.collector.RecordRekeyCompleted()
	s.logger.Debug("dh rekey completed", metrics.Fields{"epoch": s.recvEpoch})
	return nil
}

// recvRatchetForEpoch maps a packet's epoch to the current or previous
// receive ratchet. Anything older has been destroyed.
func (s *Session) recvRatchetForEpoch(epoch uint32) (*ratchet.PacketRatchet, error) {
	switch {
	case epoch == s.recvEpoch:
		return s.recv, nil
	case s.recvEpoch > 0 && epoch == s.recvEpoch-1 && s.prevRecv != nil:
		return s.prevRecv, nil
	default:
		return nil, serrors.ErrInvalidMessage
	}
}

func (s *Session) encodeHeader(h *frame.HeaderV2) ([]byte, error) {
	switch s.wireFormat {
	case frame.FormatV2Polymorphic:
		return s.poly.EncodeHeader(h), nil
	case frame.FormatV2:
		return h.Encode(), nil
	default:
		v1, err := frame.V2HeaderToV1(h)
		if err != nil {
			return nil, err
		}
		return v1.Encode(), nil
	}
}

func (s *Session) decodeHeader(data []byte) (*frame.HeaderV2, int, error) {
	switch s.wireFormat {
	case frame.FormatV2Polymorphic:
		h, err := s.poly.DecodeHeader(data)
		return h, constants.FrameHeaderV2Size, err
	case frame.FormatV2:
		h, err := frame.DecodeHeaderV2(data)
		return h, constants.FrameHeaderV2Size, err
	default:
		v1, err := frame.DecodeHeaderV1(data)
		if err != nil {
			return nil, 0, err
		}
		return frame.V1HeaderToV2(v1), constants.FrameHeaderV1Size, nil
	}
}

// SendStreamKey derives the outbound subkey for a stream.
func (s *Session) SendStreamKey(streamID uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, serrors.ErrSessionClosed
	}
	return crypto.DeriveStreamKey(s.sendTraffic, streamID)
}

// RecvStreamKey derives the inbound subkey for a stream. It equals the
// peer's SendStreamKey for the same stream.
func (s *Session) RecvStreamKey(streamID uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, serrors.ErrSessionClosed
	}
	return crypto.DeriveStreamKey(s.recvTraffic, streamID)
}

// LocalConnectionID returns this side's connection identifier.
func (s *Session) LocalConnectionID() frame.ConnectionIDV2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localCID
}

// RemoteConnectionID returns the peer's connection identifier.
func (s *Session) RemoteConnectionID() frame.ConnectionIDV2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteCID
}

// SetRemoteConnectionID records the identifier the peer advertised.
func (s *Session) SetRemoteConnectionID(cid frame.ConnectionIDV2) error {
	if !cid.IsValid() {
		return serrors.ErrReservedConnectionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteCID = cid
	return nil
}

// RotateConnectionID rotates the local identifier with the given sequence
// number and returns the rotated value. The peer unrotates by applying the
// same sequence; rotation is self-inverse.
func (s *Session) RotateConnectionID(seq uint64) frame.ConnectionIDV2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localCID = s.localCID.Rotate(seq)
	return s.localCID
}

// Close destroys all session key material. Sealed frames already produced
// remain valid for the peer; all further operations fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.send.Zeroize()
	s.recv.Zeroize()
	if s.prevRecv != nil {
		s.prevRecv.Zeroize()
	}
	s.dh.Zeroize()
	if s.poly != nil {
		s.poly.Zeroize()
	}
	crypto.ZeroizeMultiple(s.sendTraffic, s.recvTraffic)

	s.logger.Debug("session closed")
	return nil
}

func cloneKey(k []byte) []byte {
	out := make([]byte, len(k))
	copy(out, k)
	return out
}
