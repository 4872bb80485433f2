package commands

import (
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/bitseal/internal/config"
	"github.com/1ureka/bitseal/internal/util"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Create a new identity key (never overwrites)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := config.GenerateKey(cfg.KeyFile)
			if err != nil {
				return err
			}
			util.LogSuccess("wrote %s", cfg.KeyFile)
			printIdentity(priv)
			return nil
		},
	}
}

func pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the public key to share with a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := config.LoadKey(cfg.KeyFile)
			if err != nil {
				return err
			}
			printIdentity(priv)
			return nil
		},
	}
}

func printIdentity(priv *ec.PrivateKey) {
	pub := priv.PubKey().Compressed()
	pterm.DefaultTable.WithData(pterm.TableData{
		{"Public key", hex.EncodeToString(pub)},
		{"Fingerprint", util.Fingerprint(pub)},
	}).Render()
	fmt.Println()
}
