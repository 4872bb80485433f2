package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair returns two WebSocket transports connected through an httptest server.
func wsPair(t *testing.T) (*WebSocket, *WebSocket) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var server *websocket.Conn
	select {
	case server = <-serverConn:
	case <-time.After(5 * time.Second):
		t.Fatal("server side never connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := NewWebSocket(ctx, client)
	b := NewWebSocket(ctx, server)
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func TestWebSocketCarriesFramesInOrder(t *testing.T) {
	a, b := wsPair(t)

	got := make(chan []byte, 16)
	b.OnFrame(func(frame []byte) { got <- frame })

	frames := [][]byte{
		{0x01},
		bytes.Repeat([]byte{0xaa}, 16*1024+29),
		{},
		[]byte("third"),
	}
	for _, f := range frames {
		if err := a.SendFrame(context.Background(), f); err != nil {
			t.Fatalf("SendFrame: %v", err)
		}
	}

	for i, want := range frames {
		select {
		case frame := <-got:
			if !bytes.Equal(frame, want) {
				t.Fatalf("frame %d: got %d bytes, want %d", i, len(frame), len(want))
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestWebSocketCloseEndsBothSides(t *testing.T) {
	a, b := wsPair(t)
	b.OnFrame(func([]byte) {})

	a.Close()

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("closing side not done")
	}
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("remote side not done after peer close")
	}

	if err := a.SendFrame(context.Background(), []byte{1}); err != ErrClosed {
		t.Fatalf("SendFrame after close: got %v, want ErrClosed", err)
	}
}

func TestWebSocketDropsTextMessages(t *testing.T) {
	a, b := wsPair(t)

	got := make(chan []byte, 4)
	b.OnFrame(func(frame []byte) { got <- frame })

	// Bypass the sender to inject a text message on the wire.
	if err := a.conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := a.SendFrame(context.Background(), []byte{0x42}); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	select {
	case frame := <-got:
		if !bytes.Equal(frame, []byte{0x42}) {
			t.Fatalf("got %x, want the binary frame only", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("binary frame never arrived")
	}
}
