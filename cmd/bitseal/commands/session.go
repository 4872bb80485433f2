package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1ureka/bitseal/internal/app"
	"github.com/1ureka/bitseal/internal/channel"
	"github.com/1ureka/bitseal/internal/config"
	"github.com/1ureka/bitseal/internal/record"
	"github.com/1ureka/bitseal/internal/signaling"
	"github.com/1ureka/bitseal/internal/util"
)

func hostCmd() *cobra.Command {
	var (
		wsPort   int
		wsListen bool
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Wait for a peer and receive its messages and files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wsPort < 0 || wsPort > 65535 {
				return fmt.Errorf("invalid --ws-port %d (must be 0~65535)", wsPort)
			}

			cfg.Role = config.RoleHost
			switch {
			case wsListen:
				cfg.WSAddr = fmt.Sprintf(":%d", wsPort)
			case wsPort > 0:
				cfg.WSAddr = fmt.Sprintf("127.0.0.1:%d", wsPort)
			default:
				cfg.WSAddr = ":0"
			}
			return runHost(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&wsPort, "ws-port", 0, "signaling server port (0 picks one)")
	cmd.Flags().BoolVar(&wsListen, "ws-listen", false, "listen on all interfaces (for LAN access)")
	return cmd
}

func joinCmd() *cobra.Command {
	var rawURL string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Connect to a host and send stdin lines or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := config.NormalizeWSURL(rawURL, cfg.PIN)
			if err != nil {
				return err
			}
			cfg.Role = config.RoleClient
			cfg.WSURL = wsURL
			return runClient(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "host signaling URL (e.g. wss://xxx.devtunnels.ms)")
	cmd.Flags().StringVar(&cfg.PIN, "pin", "", "PIN shown by the host")
	cmd.Flags().StringVar(&cfg.SendFile, "send", "", "send this file instead of reading stdin")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("pin")
	return cmd
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runHost executes the host side: establish, then receive until closed.
func runHost(ctx context.Context, c config.Config) error {
	opts, err := options(c)
	if err != nil {
		return err
	}

	link, err := signaling.EstablishAsHost(ctx, c.WSAddr, opts)
	if err != nil {
		return fmt.Errorf("failed to establish channel: %w", err)
	}

	conn := open(ctx, c, link)
	defer conn.Close()

	if err := app.RunAsHost(ctx, conn, app.Options{OutDir: c.OutDir}); err != nil {
		return err
	}
	util.LogInfo("channel closed")
	return nil
}

// runClient executes the client side: establish, send, hang up.
func runClient(ctx context.Context, c config.Config) error {
	opts, err := options(c)
	if err != nil {
		return err
	}

	link, err := signaling.EstablishAsClient(ctx, c.WSURL, opts)
	if err != nil {
		return fmt.Errorf("failed to establish channel: %w", err)
	}

	conn := open(ctx, c, link)
	defer conn.Close()

	if c.SendFile == "" {
		util.LogInfo("type a message and press Enter; Ctrl+D to finish")
	}
	return app.RunAsClient(ctx, conn, app.Options{OutDir: c.OutDir, SendFile: c.SendFile})
}

// options validates c and loads the key material it names.
func options(c config.Config) (signaling.Options, error) {
	if err := c.Validate(); err != nil {
		return signaling.Options{}, err
	}

	key, err := config.LoadKey(c.KeyFile)
	if err != nil {
		return signaling.Options{}, err
	}
	peerKey, err := config.ParsePublicKey(c.PeerKey)
	if err != nil {
		return signaling.Options{}, err
	}
	suite, err := record.SuiteByName(c.Suite)
	if err != nil {
		return signaling.Options{}, err
	}

	return signaling.Options{
		Key:       key,
		PeerKey:   peerKey,
		Suite:     suite,
		Mode:      c.Mode,
		ClockSkew: c.ClockSkew,
		Timeout:   c.HandshakeTimeout,
	}, nil
}

func open(ctx context.Context, c config.Config, link *signaling.Link) *channel.Conn {
	conn := channel.New(link.Session, link.Transport, channel.Options{Limits: c.Limits()})

	util.StartStatsReporter(ctx)
	util.LogSuccess("secure channel established with %s (%s over %s)",
		util.Fingerprint(link.Peer.PublicKey.Compressed()), link.Session.Suite().Name(), c.Mode)
	return conn
}
