// Package channel joins a record session, a fragmenter/reassembler pair and a
// frame transport into a message-oriented secure channel.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/1ureka/bitseal/internal/fragment"
	"github.com/1ureka/bitseal/internal/protocol"
	"github.com/1ureka/bitseal/internal/record"
	"github.com/1ureka/bitseal/internal/util"
)

// Transport carries opaque frames between the two peers, preserving
// boundaries. It may drop, duplicate or reorder them.
type Transport interface {
	SendFrame(ctx context.Context, frame []byte) error
	OnFrame(fn func(frame []byte))
	Done() <-chan struct{}
	Close() error
}

// Options tunes the receiving side.
type Options struct {
	Limits fragment.Limits
}

// Conn is an established BitSeal channel. Send may be called from multiple
// goroutines; message callbacks run on the transport's receive goroutine.
type Conn struct {
	tr Transport

	sendMu sync.Mutex
	frag   *fragment.Fragmenter

	recvMu sync.Mutex
	reasm  *fragment.Reassembler

	errMu sync.Mutex
	err   error
}

func New(sess *record.Session, tr Transport, opts Options) *Conn {
	return &Conn{
		tr:    tr,
		frag:  fragment.NewFragmenter(sess),
		reasm: fragment.NewReassembler(sess, opts.Limits),
	}
}

// Send fragments msg, seals every fragment and enqueues the frames. The send
// lock is held until the last frame is enqueued so that transport order
// follows sequence order. Empty messages produce no frames.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if err := c.Err(); err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	frames, err := c.frag.Encode(msg)
	if err != nil {
		if protocol.IsKind(err, protocol.KindSequenceExhausted) {
			c.fail(err)
		}
		return err
	}

	for i, frame := range frames {
		if err := c.tr.SendFrame(ctx, frame); err != nil {
			return fmt.Errorf("send frame %d/%d: %w", i+1, len(frames), err)
		}
	}

	if len(frames) > 0 {
		util.Stats.AddMessageSent()
	}
	return nil
}

// OnMessage registers the callback for completed messages and starts
// delivery. It must be called once, before any traffic is expected.
func (c *Conn) OnMessage(fn func(msg []byte)) {
	c.tr.OnFrame(func(frame []byte) {
		c.receive(frame, fn)
	})
}

func (c *Conn) receive(frame []byte, fn func([]byte)) {
	if c.Err() != nil {
		return
	}

	c.recvMu.Lock()
	msg, done, err := c.reasm.Push(frame)
	c.recvMu.Unlock()

	switch {
	case protocol.IsKind(err, protocol.KindReplay):
		util.Stats.AddReplay()
		util.LogDebug("dropped frame: %v", err)
	case err != nil:
		c.fail(err)
	case done:
		util.Stats.AddMessageRecv()
		fn(msg)
	}
}

// fail records the first fatal error and tears the transport down.
func (c *Conn) fail(err error) {
	c.errMu.Lock()
	first := c.err == nil
	if first {
		c.err = err
	}
	c.errMu.Unlock()

	if first {
		util.LogError("secure channel failed: %v", err)
		c.tr.Close()
	}
}

// Err returns the error that closed the channel, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Done is closed when the underlying transport shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.tr.Done()
}

func (c *Conn) Close() error {
	return c.tr.Close()
}
