// Package signaling orchestrates everything between user input and an
// established secure channel: the PIN-guarded WebSocket rendezvous, the signed
// BitSeal handshake and, in WebRTC mode, the SDP/ICE exchange. Callers receive
// a Link holding a ready frame transport and the derived record session.
package signaling

import (
	"context"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/1ureka/bitseal/internal/channel"
	"github.com/1ureka/bitseal/internal/config"
	"github.com/1ureka/bitseal/internal/handshake"
	"github.com/1ureka/bitseal/internal/record"
	"github.com/1ureka/bitseal/internal/transport"
	"github.com/1ureka/bitseal/internal/util"
)

// Options describes who we are, whom we expect and how to carry frames.
type Options struct {
	Key       *ec.PrivateKey
	PeerKey   *ec.PublicKey
	Suite     record.AEAD
	Mode      config.Mode
	ClockSkew time.Duration
	Timeout   time.Duration

	// OnListen is called on the host once the signaling server is up.
	// Defaults to printing a banner with the port and PIN.
	OnListen func(port int, pin string)
}

// Link is the result of a successful establishment.
type Link struct {
	Transport channel.Transport
	Session   *record.Session
	Peer      *handshake.Peer
}

// EstablishAsHost executes the full host-side flow:
//  1. Start a WS server on addr with a fresh PIN
//  2. Announce port and PIN
//  3. Wait for the client to connect
//  4. Exchange and verify handshakes, derive the session
//  5. Hand the WS over as the frame transport, or run SDP/ICE (host offers)
//     and wait for the DataChannel
func EstablishAsHost(ctx context.Context, addr string, opts Options) (*Link, error) {
	hctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pin := generatePIN(config.PINLength)
	srv := newServer(pin)
	wsPort, err := srv.start(addr)
	if err != nil {
		return nil, err
	}
	defer srv.close()

	if opts.OnListen != nil {
		opts.OnListen(wsPort, pin)
	} else {
		printBanner(wsPort, pin, opts.Key)
	}

	wsConn, err := srv.waitForClient(hctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	util.LogInfo("client connected from %s", wsConn.RemoteAddr())

	return establish(ctx, hctx, wsConn, opts, true)
}

// EstablishAsClient executes the full client-side flow:
//  1. Connect to the host's WS server
//  2. Exchange and verify handshakes, derive the session
//  3. Hand the WS over as the frame transport, or answer the host's offer
//     and wait for the DataChannel
func EstablishAsClient(ctx context.Context, wsURL string, opts Options) (*Link, error) {
	hctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pterm.Info.Println("Connecting to Host...")
	wsConn, err := connect(hctx, wsURL)
	if err != nil {
		return nil, err
	}
	util.LogDebug("WS connected: %s", wsURL)

	return establish(ctx, hctx, wsConn, opts, false)
}

// establish runs everything after the WebSocket is up. The transport lives on
// ctx; hctx only bounds the setup.
func establish(ctx, hctx context.Context, wsConn *websocket.Conn, opts Options, isHost bool) (*Link, error) {
	// Unblock pending WS reads and writes if setup runs out of time.
	stop := context.AfterFunc(hctx, func() { wsConn.Close() })

	sess, peer, err := exchangeHandshake(hctx, wsConn, opts)
	if err != nil {
		stop()
		wsConn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	if opts.Mode == config.ModeWebSocket {
		if !stop() {
			return nil, hctx.Err()
		}
		util.LogDebug("using the signaling WebSocket as frame transport")
		return &Link{Transport: transport.NewWebSocket(ctx, wsConn), Session: sess, Peer: peer}, nil
	}

	defer stop()
	defer wsConn.Close()

	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	if err := negotiate(hctx, wsConn, tr, isHost); err != nil {
		tr.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)
	}

	util.LogDebug("WebRTC DataChannel established, closing WS")
	return &Link{Transport: tr, Session: sess, Peer: peer}, nil
}

func printBanner(port int, pin string, key *ec.PrivateKey) {
	content := fmt.Sprintf("Port        : %d\nPIN         : %s\nFingerprint : %s\n\nForward this port (e.g. VS Code Port Forwarding)\nand share the PIN with your peer.",
		port, pin, util.Fingerprint(key.PubKey().Compressed()))

	pterm.Println()
	pterm.DefaultBox.WithTitle("BitSeal Signaling Server").Println(content)
	pterm.Println()
	pterm.Info.Println("Waiting for client...")
}
