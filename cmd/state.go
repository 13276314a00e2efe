// File: cmd/state.go
package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/config"
	"github.com/xkilldash9x/walletctl/internal/observability"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

func newStateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Report which screen the wallet in a running browser shows, without changing it",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), map[string]string{
				"ws-endpoint": "browser.ws_endpoint",
				"home-url":    "wallet.home_url",
				"flask":       "browser.flask",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			if cfg.Browser.WSEndpoint == "" {
				return fmt.Errorf("a DevTools endpoint is required (--ws-endpoint or browser.ws_endpoint)")
			}
			pattern, err := regexp.Compile(cfg.Wallet.HomePattern)
			if err != nil {
				return err
			}
			if cfg.Wallet.HomeURL != "" {
				pattern = wallet.HomePattern(cfg.Wallet.HomeURL)
			}
			logger := observability.GetLogger()

			b, err := newLauncher(logger).Connect(cmd.Context(), cfg.Browser.WSEndpoint, cfg.Browser.Flask)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				// Only the connection is dropped; the browser keeps running.
				if err := b.Release(closeCtx); err != nil {
					logger.Warn("Failed to release browser session.", zap.Error(err))
				}
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timing.ActionTimeout)
			defer cancel()
			page, err := wallet.Acquire(ctx, b, pattern)
			if err != nil {
				return fmt.Errorf("%w: %v", wallet.ErrWalletNotFound, err)
			}
			state, err := wallet.Probe(ctx, page)
			if err != nil {
				return err
			}
			address, err := page.URL(ctx)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary{
				Flow:   "state",
				PageID: page.ID(),
				URL:    address,
				State:  state.String(),
				Flask:  b.IsFlask(),
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().String("ws-endpoint", "", "DevTools address of the running browser")
	cmd.Flags().String("home-url", "", "wallet home address; the configured home pattern is used when empty")
	cmd.Flags().Bool("flask", false, "the extension is the restricted/advanced build")
	return cmd
}
