// transport.go defines how sealed frames move between peers. The session
// core is transport-agnostic: it produces and consumes opaque buffers, and
// anything that can carry those buffers in order-agnostic datagrams can
// serve as a Transport.
package session

import (
	"context"
	"sync"

	serrors "github.com/shroudnet/shroud-go/internal/errors"
)

// Transport moves opaque wire buffers between two peers. Implementations
// must be safe for one concurrent sender and one concurrent receiver.
type Transport interface {
	// Send queues one wire buffer for the peer.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until a wire buffer arrives or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the transport. Pending receives fail.
	Close() error
}

// Loopback is an in-memory Transport half. Two halves created together form
// a bidirectional channel pair, used by tests and the demo; it delivers
// buffers reliably and in order, which real datagram transports need not.
type Loopback struct {
	send      chan<- []byte
	recv      <-chan []byte
	done      chan struct{}
	closeOnce *sync.Once
}

// LoopbackPair creates two connected in-memory transports with the given
// queue depth per direction.
func LoopbackPair(depth int) (*Loopback, *Loopback) {
	if depth <= 0 {
		depth = 64
	}
	ab := make(chan []byte, depth)
	ba := make(chan []byte, depth)
	done := make(chan struct{})
	once := new(sync.Once)

	a := &Loopback{send: ab, recv: ba, done: done, closeOnce: once}
	b := &Loopback{send: ba, recv: ab, done: done, closeOnce: once}
	return a, b
}

// Send queues data for the peer half. The buffer is copied, so the caller
// may reuse it.
func (l *Loopback) Send(ctx context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case l.send <- buf:
		return nil
	case <-l.done:
		return serrors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next buffer from the peer half.
func (l *Loopback) Receive(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-l.recv:
		return buf, nil
	case <-l.done:
		return nil, serrors.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down both halves of the pair.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
