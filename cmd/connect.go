// File: cmd/connect.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/walletctl/internal/config"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

var connectFlagKeys = map[string]string{
	"ws-endpoint": "browser.ws_endpoint",
	"home-url":    "wallet.home_url",
	"flask":       "browser.flask",
}

func newConnectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Attach to a running browser and bring its wallet to a ready state",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), connectFlagKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			if cfg.Browser.WSEndpoint == "" {
				return fmt.Errorf("a DevTools endpoint is required (--ws-endpoint or browser.ws_endpoint)")
			}
			orch, err := newOrchestrator(cfg)
			if err != nil {
				return err
			}

			env, err := orch.Connect(cmd.Context(), wallet.ConnectOptions{
				Endpoint: cfg.Browser.WSEndpoint,
				HomeURL:  cfg.Wallet.HomeURL,
				Flask:    cfg.Browser.Flask,
			}, walletOptions(cfg))
			if err != nil {
				return err
			}
			hold, _ := cmd.Flags().GetBool("hold")
			return report(cmd, "connect", env, hold, true)
		},
	}
	f := cmd.Flags()
	f.String("ws-endpoint", "", "DevTools address of the running browser (http://host:port or ws://...)")
	f.String("home-url", "", "wallet home address; looked up on the extensions page when empty")
	f.Bool("flask", false, "the extension is the restricted/advanced build")
	addHoldFlag(cmd)
	return cmd
}
