// File: internal/wallet/metamask.go
package wallet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/config"
)

// Control is the handle to a ready wallet. It does not own the page or the
// browser; the caller closes those.
type Control interface {
	Page() browser.Page
	Unlock(ctx context.Context, password string) error
	InstallSnap(ctx context.Context, idOrLocation string, opts InstallSnapOptions) (string, error)
}

// ControlFactory wraps the wallet page into a Control.
type ControlFactory func(b browser.Browser, page browser.Page) Control

var (
	passwordInput     = browser.CSS("#password")
	unlockSubmit      = browser.TestID("unlock-submit")
	accountMenuButton = browser.TestID("account-options-menu-button")
)

// MetaMask drives the MetaMask extension UI.
type MetaMask struct {
	page    browser.Page
	browser browser.Browser
	logger  *zap.Logger
	guard   *Guard
	timing  config.TimingConfig
}

var _ Control = (*MetaMask)(nil)

// NewMetaMask creates the MetaMask control for page.
func NewMetaMask(b browser.Browser, page browser.Page, logger *zap.Logger, guard *Guard, timing config.TimingConfig) *MetaMask {
	return &MetaMask{
		page:    page,
		browser: b,
		logger:  logger.Named("metamask"),
		guard:   guard,
		timing:  timing,
	}
}

func (m *MetaMask) Page() browser.Page { return m.page }

// Unlock submits password on the lock screen and waits for the account menu.
func (m *MetaMask) Unlock(ctx context.Context, password string) error {
	if err := m.page.Type(ctx, passwordInput, password, m.timing.ActionTimeout); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	if err := m.page.Click(ctx, unlockSubmit, m.timing.ActionTimeout); err != nil {
		return fmt.Errorf("failed to submit password: %w", err)
	}
	if err := m.page.WaitVisible(ctx, accountMenuButton, m.timing.ActionTimeout); err != nil {
		return fmt.Errorf("wallet did not unlock: %w", err)
	}
	m.logger.Info("Wallet unlocked.")
	return nil
}
