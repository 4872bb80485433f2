// Package commands wires the cobra command tree for the bitseal binary.
package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/bitseal/internal/config"
	"github.com/1ureka/bitseal/internal/util"
)

var version = "dev"

var (
	cfg      = config.Default()
	modeFlag = string(config.ModeWebRTC)
	debug    bool
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "bitseal",
		Short:         "Authenticated, encrypted peer-to-peer message channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				util.EnableDebug()
			}
			cfg.Mode = config.Mode(modeFlag)

			pterm.Info.Printfln("BitSeal-RTC v%s", version)
			pterm.Println()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVarP(&cfg.KeyFile, "key", "k", "bitseal.key", "private key file (hex)")
	pf.StringVar(&cfg.PeerKey, "peer", "", "expected peer public key (compressed hex)")
	pf.StringVar(&cfg.Suite, "suite", cfg.Suite, "AEAD suite: aes-gcm or chacha20-poly1305")
	pf.StringVar(&modeFlag, "transport", modeFlag, "frame transport: webrtc or websocket")
	pf.StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "directory for received files")
	pf.DurationVar(&cfg.HandshakeTimeout, "timeout", cfg.HandshakeTimeout, "bound on signaling, handshake and ICE")
	pf.DurationVar(&cfg.ClockSkew, "skew", cfg.ClockSkew, "accepted handshake clock skew (0 disables the check)")
	pf.IntVar(&cfg.MaxPending, "max-pending", cfg.MaxPending, "incomplete messages held for reassembly")
	pf.DurationVar(&cfg.PendingTTL, "pending-ttl", cfg.PendingTTL, "drop incomplete messages older than this (0 keeps them)")

	root.AddCommand(keygenCmd(), pubkeyCmd(), hostCmd(), joinCmd())
	return report(root.ExecuteContext(ctx))
}

// report logs a command error once, in the same style as every other message.
func report(err error) error {
	if err != nil {
		util.LogError("%v", err)
	}
	return err
}
