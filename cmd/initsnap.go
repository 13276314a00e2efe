// File: cmd/initsnap.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/walletctl/internal/config"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

func newInitSnapCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-snap <snap-id-or-location>",
		Short: "Launch the restricted wallet build, set it up and install a snap",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			keys := map[string]string{"install-url": "timing.snap_install_url"}
			for flag, key := range launchFlagKeys {
				keys[flag] = key
			}
			return bindFlags(v, cmd.Flags(), keys)
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

			version, _ := cmd.Flags().GetString("snap-version")
			env, err := orch.InitSnapEnv(cmd.Context(), launchOptions(cfg), walletOptions(cfg), args[0], wallet.InstallSnapOptions{
				InstallationURL: cfg.Timing.SnapInstallURL,
				Version:         version,
			})
			if err != nil {
				return err
			}
			hold, _ := cmd.Flags().GetBool("hold")
			return report(cmd, "init-snap", env, hold, false)
		},
	}
	addLaunchFlags(cmd)
	addHoldFlag(cmd)
	cmd.Flags().String("install-url", "", "page exposing the wallet provider used to request the snap")
	cmd.Flags().String("snap-version", "", "semver range of the snap to install")
	return cmd
}
