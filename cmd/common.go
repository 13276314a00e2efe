// File: cmd/common.go
package cmd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/config"
	"github.com/xkilldash9x/walletctl/internal/observability"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

// Replaced in tests.
var (
	newLauncher = func(logger *zap.Logger) wallet.Launcher {
		return browser.NewLauncher(logger)
	}
	closeTimeout = 10 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// summary is what every flow prints on success.
type summary struct {
	Flow    string `json:"flow"`
	PageID  string `json:"page_id"`
	URL     string `json:"url"`
	State   string `json:"state"`
	Flask   bool   `json:"flask"`
	SnapID  string `json:"snap_id,omitempty"`
	Holding bool   `json:"holding"`
}

// bindFlags maps flag names onto config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

func addLaunchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("extension", "", "unpacked wallet extension directory")
	f.String("user-data-dir", "", "browser profile to reuse")
	f.Bool("headless", false, "run the browser headless")
	f.Bool("flask", false, "the extension is the restricted/advanced build")
	f.StringSlice("browser-arg", nil, "extra browser switch, repeatable")
}

var launchFlagKeys = map[string]string{
	"extension":     "browser.extension_path",
	"user-data-dir": "browser.user_data_dir",
	"headless":      "browser.headless",
	"flask":         "browser.flask",
	"browser-arg":   "browser.args",
}

func addHoldFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("hold", false, "keep the browser open until interrupted")
}

func launchOptions(cfg *config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		ExtensionPath: cfg.Browser.ExtensionPath,
		UserDataDir:   cfg.Browser.UserDataDir,
		Headless:      cfg.Browser.Headless,
		Flask:         cfg.Browser.Flask,
		Args:          cfg.Browser.Args,
	}
}

func walletOptions(cfg *config.Config) wallet.Options {
	return wallet.Options{
		Seed:         cfg.Wallet.Seed,
		Password:     cfg.Wallet.Password,
		ShowTestNets: cfg.Wallet.ShowTestNets,
	}
}

func newOrchestrator(cfg *config.Config) (*wallet.Orchestrator, error) {
	logger := observability.GetLogger()
	return wallet.NewOrchestrator(logger, cfg, newLauncher(logger))
}

// report prints the outcome of a flow, then either holds the browser open
// until the command context ends or lets go of it right away. An attached
// browser is released and keeps running; a launched one is closed.
func report(cmd *cobra.Command, flow string, env *wallet.Env, hold, attached bool) (err error) {
	ctx := cmd.Context()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		done := env.Browser.Close
		if attached {
			done = env.Browser.Release
		}
		if cerr := done(closeCtx); cerr != nil && err == nil {
			err = fmt.Errorf("failed to let go of browser: %w", cerr)
		}
	}()

	address, err := env.Page.URL(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(summary{
		Flow:    flow,
		PageID:  env.Page.ID(),
		URL:     address,
		State:   wallet.Classify(address).String(),
		Flask:   env.Browser.IsFlask(),
		SnapID:  env.SnapID,
		Holding: hold,
	}, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return err
	}

	if hold {
		observability.GetLogger().Info("Holding browser open, interrupt to exit.")
		<-ctx.Done()
	}
	return nil
}
