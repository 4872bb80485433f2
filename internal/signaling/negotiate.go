package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/bitseal/internal/transport"
	"github.com/1ureka/bitseal/internal/util"
)

// negotiator drives the SDP/ICE exchange for one WebRTC transport over the
// signaling WebSocket. Writes come from the ICE callback and the read loop,
// so they are serialized.
type negotiator struct {
	tr   *transport.Transport
	conn *websocket.Conn
	mu   sync.Mutex
}

// negotiate performs the SDP/ICE exchange and blocks until the DataChannel
// opens. The host sends the offer.
func negotiate(ctx context.Context, conn *websocket.Conn, tr *transport.Transport, isHost bool) error {
	n := &negotiator{tr: tr, conn: conn}

	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		// Error ignored: candidates are best-effort.
		n.write(message{Type: msgTypeCandidate, Candidate: string(data)})
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.watch() // exits when conn is closed by the caller
	}()

	if isHost {
		if err := n.describe(msgTypeOffer); err != nil {
			return fmt.Errorf("failed to send offer: %w", err)
		}
	}

	select {
	case <-tr.Ready():
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *negotiator) write(msg message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn.WriteJSON(msg)
}

// describe creates the local offer or answer, applies it and sends it.
func (n *negotiator) describe(kind messageType) error {
	var (
		sdp webrtc.SessionDescription
		err error
	)
	if kind == msgTypeOffer {
		sdp, err = n.tr.CreateOffer()
	} else {
		sdp, err = n.tr.CreateAnswer()
	}
	if err != nil {
		return err
	}
	if err := n.tr.SetLocalDescription(sdp); err != nil {
		return err
	}
	return n.write(message{Type: kind, SDP: sdp.SDP})
}

// watch applies the peer's SDP and ICE messages until the WebSocket fails
// or closes. The handshake has already been consumed. Candidates may overtake
// the description they belong to; they are held until it is applied.
func (n *negotiator) watch() error {
	var early []webrtc.ICECandidateInit
	remoteSet := false

	for {
		var msg message
		if err := n.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read WS message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer, msgTypeAnswer:
			sdpType := webrtc.SDPTypeOffer
			if msg.Type == msgTypeAnswer {
				sdpType = webrtc.SDPTypeAnswer
			}
			if err := n.tr.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: msg.SDP}); err != nil {
				return err
			}
			remoteSet = true

			for _, c := range early {
				if err := n.tr.AddICECandidate(c); err != nil {
					return err
				}
			}
			early = nil

			if msg.Type == msgTypeOffer {
				if err := n.describe(msgTypeAnswer); err != nil {
					return fmt.Errorf("failed to send answer: %w", err)
				}
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("failed to parse ICE candidate: %w", err)
			}
			if !remoteSet {
				util.LogDebug("holding ICE candidate until the remote description arrives")
				early = append(early, init)
				continue
			}
			if err := n.tr.AddICECandidate(init); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unexpected signaling message %q", msg.Type)
		}
	}
}
