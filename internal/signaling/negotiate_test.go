package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/bitseal/internal/transport"
)

// TestCandidateBeforeOfferIsHeld sends a remote candidate ahead of the offer
// it belongs to. The answering side must keep it and still answer.
func TestCandidateBeforeOfferIsHeld(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	offerer, err := transport.NewTransport(ctx)
	if err != nil {
		t.Fatalf("offerer: %v", err)
	}
	defer offerer.Close()

	answerer, err := transport.NewTransport(ctx)
	if err != nil {
		t.Fatalf("answerer: %v", err)
	}
	defer answerer.Close()

	upgrader := websocket.Upgrader{}
	watchErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		n := &negotiator{tr: answerer, conn: conn}
		watchErr <- n.watch()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	offer, err := offerer.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := offerer.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}

	idx := uint16(0)
	early, _ := json.Marshal(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host",
		SDPMLineIndex: &idx,
	})
	if err := conn.WriteJSON(message{Type: msgTypeCandidate, Candidate: string(early)}); err != nil {
		t.Fatalf("write candidate: %v", err)
	}
	if err := conn.WriteJSON(message{Type: msgTypeOffer, SDP: offer.SDP}); err != nil {
		t.Fatalf("write offer: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case werr := <-watchErr:
				t.Fatalf("watch stopped before answering: %v", werr)
			default:
			}
			t.Fatalf("read: %v", err)
		}
		if msg.Type == msgTypeCandidate {
			continue
		}
		if msg.Type != msgTypeAnswer || msg.SDP == "" {
			t.Fatalf("got %q, want a non-empty answer", msg.Type)
		}
		return
	}
}
