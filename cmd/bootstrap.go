// File: cmd/bootstrap.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/walletctl/internal/config"
)

func newBootstrapCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Launch a browser with the wallet extension and set it up",
		Long: `Launches a browser with the wallet extension loaded. A fresh profile goes
through the full first time setup; a reused profile (--user-data-dir) is
only unlocked.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), launchFlagKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			orch, err := newOrchestrator(cfg)
			if err != nil {
				return err
			}

			env, err := orch.Bootstrap(cmd.Context(), launchOptions(cfg), walletOptions(cfg))
			if err != nil {
				return err
			}
			hold, _ := cmd.Flags().GetBool("hold")
			return report(cmd, "bootstrap", env, hold, false)
		},
	}
	addLaunchFlags(cmd)
	addHoldFlag(cmd)
	return cmd
}
