package transport

import (
	"context"
	"errors"

	"github.com/1ureka/bitseal/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing frame channel capacity
)

// ErrClosed is returned by SendFrame once the transport has shut down.
var ErrClosed = errors.New("transport closed")

// sink is the write side of a concrete transport.
type sink interface {
	// wait blocks until the sink can accept more data. It returns false if
	// ctx is cancelled first.
	wait(ctx context.Context) bool
	write(frame []byte) error
}

// sender is a goroutine-based frame writer that serializes all writes to a
// single sink, adding open-gate and backpressure control.
type sender struct {
	inbox chan []byte
	done  <-chan struct{}
}

// newSender starts the background loop. The loop exits when ctx is cancelled
// or a write fails, in which case fail is called with the write error.
func newSender(ctx context.Context, out sink, openSignal <-chan struct{}, fail func(error)) *sender {
	s := &sender{
		inbox: make(chan []byte, sendBufferSize),
		done:  ctx.Done(),
	}

	go s.loop(ctx, out, openSignal, fail)

	return s
}

// loop is the single-writer goroutine. It waits for the sink to open, then
// drains the inbox with backpressure awareness.
func (s *sender) loop(ctx context.Context, out sink, openSignal <-chan struct{}, fail func(error)) {
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	for {
		select {
		case frame := <-s.inbox:
			if !out.wait(ctx) {
				return
			}

			if err := out.write(frame); err != nil {
				util.LogError("failed to send frame (%d bytes): %v", len(frame), err)
				fail(err)
				return
			}

			util.Stats.AddSent(len(frame))
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a frame for transmission. It blocks while the internal buffer
// is full.
func (s *sender) send(ctx context.Context, frame []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.inbox <- frame:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
