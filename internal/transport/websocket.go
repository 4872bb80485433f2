package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/bitseal/internal/protocol"
	"github.com/1ureka/bitseal/internal/util"
)

const wsWriteTimeout = 10 * time.Second

// maxWSFrame bounds a single inbound WebSocket message to the largest frame a
// conforming peer can produce.
const maxWSFrame = protocol.Overhead + protocol.MaxFragmentPlaintext

// WebSocket carries frames as binary messages over an already established
// WebSocket connection. It is used when the peers reach each other through
// the signaling server but not through ICE.
type WebSocket struct {
	conn   *websocket.Conn
	sender *sender

	ctx    context.Context
	cancel context.CancelFunc

	readOnce  sync.Once
	closeOnce sync.Once
}

// NewWebSocket takes ownership of conn. The connection must not be read or
// written by anyone else afterwards.
func NewWebSocket(ctx context.Context, conn *websocket.Conn) *WebSocket {
	wCtx, wCancel := context.WithCancel(ctx)

	conn.SetReadLimit(maxWSFrame)
	conn.SetReadDeadline(time.Time{})

	w := &WebSocket{
		conn:   conn,
		ctx:    wCtx,
		cancel: wCancel,
	}

	open := make(chan struct{})
	close(open)
	w.sender = newSender(wCtx, &wsSink{conn: conn}, open, func(error) { w.Close() })

	// Unblock a pending ReadMessage when the parent context goes away.
	go func() {
		<-wCtx.Done()
		w.Close()
	}()

	return w
}

// SendFrame enqueues one sealed frame as a binary WebSocket message.
func (w *WebSocket) SendFrame(ctx context.Context, frame []byte) error {
	return w.sender.send(ctx, frame)
}

// OnFrame starts the read loop. Only the first registration takes effect.
func (w *WebSocket) OnFrame(fn func([]byte)) {
	w.readOnce.Do(func() {
		go w.readLoop(fn)
	})
}

func (w *WebSocket) readLoop(fn func([]byte)) {
	defer w.cancel()

	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.ctx.Done():
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					util.LogWarning("WebSocket read failed: %v", err)
				}
			}
			return
		}

		if mt != websocket.BinaryMessage {
			util.LogDebug("dropping non-binary WebSocket message (type %d)", mt)
			continue
		}

		util.Stats.AddRecv(len(data))
		fn(data)
	}
}

// Done returns a channel that is closed when the connection is gone.
func (w *WebSocket) Done() <-chan struct{} {
	return w.ctx.Done()
}

// Close sends a close message and shuts the connection down.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		deadline := time.Now().Add(time.Second)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = w.conn.Close()
	})
	return err
}

// wsSink writes frames as binary messages. Gorilla connections support one
// concurrent writer; the sender goroutine is that writer.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) wait(ctx context.Context) bool {
	return ctx.Err() == nil
}

func (s *wsSink) write(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}
