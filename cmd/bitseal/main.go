// BitSeal-RTC, CLI entry point.
//
// The tool opens an authenticated, encrypted message channel between two
// peers that know each other's secp256k1 public keys. Signaling runs over a
// PIN-guarded WebSocket; records then travel over a WebRTC DataChannel (or
// the WebSocket itself with --transport websocket).
//
// It can be launched interactively (no subcommand) or non-interactively via
// the keygen, pubkey, host and join subcommands.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/1ureka/bitseal/cmd/bitseal/commands"
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
