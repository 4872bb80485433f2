package commands

import (
	"context"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/bitseal/internal/config"
	"github.com/1ureka/bitseal/internal/util"
)

// runInteractive falls back to prompts when no subcommand is given.
func runInteractive(ctx context.Context) error {
	if _, err := os.Stat(cfg.KeyFile); os.IsNotExist(err) {
		util.LogInfo("no key at %s, creating one", cfg.KeyFile)
		priv, err := config.GenerateKey(cfg.KeyFile)
		if err != nil {
			return err
		}
		printIdentity(priv)
	}

	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host   - Receive messages and files", "Client - Connect to a host and send"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	if cfg.PeerKey == "" {
		cfg.PeerKey = askPeerKey()
	}

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		cfg.WSAddr = ":0"
		return runHost(ctx, cfg)
	}

	cfg.Role = config.RoleClient
	cfg.WSURL = askURL()
	return runClient(ctx, cfg)
}

// askPeerKey prompts until a parseable public key is entered.
func askPeerKey() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Peer public key (hex)").
			Show()

		if _, err := config.ParsePublicKey(raw); err == nil {
			pterm.Println()
			return strings.TrimSpace(raw)
		}

		pterm.Println()
		util.LogWarning("invalid public key: expected 33-byte compressed hex")
	}
}

// askURL prompts for the host URL and PIN until both are valid.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WebSocket URL (e.g. wss://***.asse.devtunnels.ms)").
			Show()
		pin, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("PIN").
			Show()

		wsURL, err := config.NormalizeWSURL(raw, pin)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("%v", err)
	}
}
