// Package transport moves sealed BitSeal frames between peers. Two carriers
// are provided: a WebRTC DataChannel and a plain WebSocket. Both treat frames
// as opaque byte strings and preserve message boundaries.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/bitseal/internal/util"
)

// Transport wraps a single PeerConnection + DataChannel pair, providing a
// high-level API for signaling exchange, frame sending with backpressure,
// and frame receiving.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time. The PeerConnection state is recorded but does not
// drive open/close decisions.
type Transport struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	sender     *sender
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState

	recvMu  sync.Mutex
	onFrame func([]byte)
	early   [][]byte // frames that arrived before OnFrame
}

// maxEarlyFrames bounds the frames held while no handler is registered.
const maxEarlyFrames = 1024

// NewTransport creates a Transport backed by a new PeerConnection and a
// pre-negotiated DataChannel. The caller performs signaling via the exposed
// methods (CreateOffer / CreateAnswer / ...) and then uses SendFrame /
// OnFrame for data transfer.
func NewTransport(ctx context.Context) (*Transport, error) {
	pc, err := newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        tCtx,
		cancel:     tCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(t.openSignal) })
	})

	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		tCancel()
	})

	// Informational only.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()

		if state == webrtc.PeerConnectionStateFailed {
			tCancel()
		}
	})

	dc.OnMessage(t.dispatch)

	t.sender = newSender(tCtx, newDCSink(dc), t.openSignal, func(error) { tCancel() })

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open.
func (t *Transport) Ready() <-chan struct{} {
	return t.openSignal
}

// Done returns a channel that is closed when the Transport is shut down
// (DataChannel closed or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (t *Transport) Close() error {
	t.cancel()
	return errors.Join(t.dc.Close(), t.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// SendFrame enqueues one sealed frame. Frames leave in the order they were
// enqueued.
func (t *Transport) SendFrame(ctx context.Context, frame []byte) error {
	return t.sender.send(ctx, frame)
}

// OnFrame registers the callback for inbound frames. Frames received before
// registration are replayed to fn first.
func (t *Transport) OnFrame(fn func([]byte)) {
	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	for _, frame := range t.early {
		fn(frame)
	}
	t.early = nil
	t.onFrame = fn
}

// dispatch is the DataChannel message handler. Text messages are not part of
// the protocol and are dropped.
func (t *Transport) dispatch(msg webrtc.DataChannelMessage) {
	if msg.IsString {
		util.LogDebug("dropping text DataChannel message (%d bytes)", len(msg.Data))
		return
	}
	util.Stats.AddRecv(len(msg.Data))

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	if t.onFrame != nil {
		t.onFrame(msg.Data)
		return
	}
	if len(t.early) >= maxEarlyFrames {
		util.LogWarning("dropping early frame: no receiver registered")
		return
	}
	t.early = append(t.early, msg.Data)
}
