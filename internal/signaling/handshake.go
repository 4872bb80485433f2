package signaling

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/bitseal/internal/handshake"
	"github.com/1ureka/bitseal/internal/protocol"
	"github.com/1ureka/bitseal/internal/record"
	"github.com/1ureka/bitseal/internal/util"
)

// exchangeHandshake sends our signed handshake, verifies the peer's and
// derives the record session. Both sides write first, so neither waits on the
// other. Read and write deadlines follow ctx and are cleared on return.
func exchangeHandshake(ctx context.Context, conn *websocket.Conn, opts Options) (*record.Session, *handshake.Peer, error) {
	if dl, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(dl)
		conn.SetWriteDeadline(dl)
		defer func() {
			conn.SetReadDeadline(time.Time{})
			conn.SetWriteDeadline(time.Time{})
		}()
	}

	offer, err := handshake.Build(opts.Key, opts.PeerKey)
	if err != nil {
		return nil, nil, err
	}

	err = conn.WriteJSON(message{
		Type:  msgTypeHandshake,
		Raw:   hex.EncodeToString(offer.Raw),
		Sig:   hex.EncodeToString(offer.Signature),
		Mode:  string(opts.Mode),
		Suite: opts.Suite.Name(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send handshake: %w", err)
	}

	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, nil, fmt.Errorf("failed to read peer handshake: %w", err)
	}
	if msg.Type != msgTypeHandshake {
		return nil, nil, protocol.New(protocol.KindMalformedMessage,
			fmt.Sprintf("expected handshake, got %q", msg.Type))
	}
	if msg.Mode != string(opts.Mode) {
		return nil, nil, fmt.Errorf("peer uses transport %q, we use %q", msg.Mode, opts.Mode)
	}
	if msg.Suite != opts.Suite.Name() {
		return nil, nil, fmt.Errorf("peer uses suite %q, we use %q", msg.Suite, opts.Suite.Name())
	}

	raw, err := hex.DecodeString(msg.Raw)
	if err != nil {
		return nil, nil, protocol.Wrap(protocol.KindMalformedMessage, "handshake is not hex", err)
	}
	sig, err := hex.DecodeString(msg.Sig)
	if err != nil {
		return nil, nil, protocol.Wrap(protocol.KindMalformedMessage, "signature is not hex", err)
	}

	peer, err := handshake.Verify(raw, sig, opts.Key)
	if err != nil {
		return nil, nil, err
	}
	if err := peer.Expect(opts.PeerKey); err != nil {
		return nil, nil, err
	}
	if err := peer.CheckFreshness(time.Now(), opts.ClockSkew); err != nil {
		return nil, nil, err
	}

	sess, err := record.Establish(opts.Key, peer, offer.Salt, opts.Suite)
	if err != nil {
		return nil, nil, err
	}

	util.LogDebug("handshake verified: peer %s, suite %s", util.Fingerprint(peer.PublicKey.Compressed()), opts.Suite.Name())
	return sess, peer, nil
}
