package transport

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// STUN servers for ICE candidate gathering. No TURN: the channel is meant for
// direct P2P connectivity.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// newPeerConnection creates a PeerConnection configured with Google STUN servers.
func newPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// newDataChannel creates a pre-negotiated, reliable, ordered DataChannel on
// the given PeerConnection. Negotiated mode (ID 0) lets both sides create the
// channel independently without relying on OnDataChannel.
//
// Ordering matters: one large message spans up to 4096 consecutive sequence
// numbers while the receiver only tolerates 64 frames of reordering.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("bitseal", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}

// dcSink writes frames to a DataChannel, pausing while its buffered amount is
// above the high-water mark.
type dcSink struct {
	dc          *webrtc.DataChannel
	drainSignal chan struct{}
}

func newDCSink(dc *webrtc.DataChannel) *dcSink {
	s := &dcSink{dc: dc, drainSignal: make(chan struct{}, 1)}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	return s
}

func (s *dcSink) wait(ctx context.Context) bool {
	if s.dc.BufferedAmount() <= uint64(highWaterMark) {
		return true
	}
	select {
	case <-s.drainSignal:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *dcSink) write(frame []byte) error {
	return s.dc.Send(frame)
}
