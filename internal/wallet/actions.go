// File: internal/wallet/actions.go
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/config"
)

// Onboarding controls.
var (
	onboardingTerms       = browser.TestID("onboarding-terms-checkbox")
	onboardingImport      = browser.TestID("onboarding-import-wallet")
	metametricsNoThanks   = browser.TestID("metametrics-no-thanks")
	srpConfirm            = browser.TestID("import-srp-confirm")
	createPasswordNew     = browser.TestID("create-password-new")
	createPasswordConfirm = browser.TestID("create-password-confirm")
	createPasswordTerms   = browser.TestID("create-password-terms")
	createPasswordImport  = browser.TestID("create-password-import")
	onboardingDone        = browser.TestID("onboarding-complete-done")
	pinExtensionNext      = browser.TestID("pin-extension-next")
	pinExtensionDone      = browser.TestID("pin-extension-done")
	acceptRisksButton     = browser.Text("button", "I accept the risks")
)

// Popovers.
var (
	popoverClose     = browser.TestID("popover-close")
	whatsNewClose    = browser.XPath(`//section[contains(@class, "whats-new-popup")]//button[@data-testid="popover-close"]`)
	portfolioTooltip = browser.XPath(`//div[contains(@class, "portfolio")]//button[@data-testid="popover-close"]`)
	gotItButton      = browser.Text("button", "Got it")
)

// Advanced settings.
var (
	ethSignRiskCheckbox = browser.TestID("eth-sign__checkbox")
	ethSignAckInput     = browser.CSS("#enter-eth-sign-text")
	continueButton      = browser.Text("button", "Continue")
	enableButton        = browser.Text("button", "Enable")
)

const (
	advancedSettingsFragment = "settings/advanced"
	ethSignAcknowledgement   = "I only sign what I understand"
)

// importWordField is the input for the i-th word of the recovery phrase.
func importWordField(i int) browser.Selector {
	return browser.TestID(fmt.Sprintf("import-srp__srp-word-%d", i))
}

// settingToggle selects the toggle of the settings row titled label in the
// given position ("on" or "off").
func settingToggle(label, position string) browser.Selector {
	return browser.XPath(fmt.Sprintf(
		`//span[text()=%q]/ancestor::div[contains(@class, "settings-page__content-row")]//label[contains(@class, "toggle-button--%s")]`,
		label, position))
}

var (
	showTestNetsOff = settingToggle("Show test networks", "off")
	ethSignOff      = settingToggle("Allow eth_sign requests", "off")
)

// Actions holds the setup steps. Each step waits for the control it needs,
// interacts with it and, where the UI gives one, waits for the result.
type Actions struct {
	logger *zap.Logger
	guard  *Guard
	timing config.TimingConfig
}

// NewActions creates the setup steps.
func NewActions(logger *zap.Logger, guard *Guard, timing config.TimingConfig) *Actions {
	return &Actions{logger: logger.Named("actions"), guard: guard, timing: timing}
}

func (a *Actions) click(ctx context.Context, page browser.Page, sel browser.Selector) error {
	if err := page.Click(ctx, sel, a.timing.ActionTimeout); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (a *Actions) typeInto(ctx context.Context, page browser.Page, sel browser.Selector, text string) error {
	if err := page.Type(ctx, sel, text, a.timing.ActionTimeout); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	return nil
}

// dismiss clicks sel once if it shows up within timeout.
func (a *Actions) dismiss(ctx context.Context, page browser.Page, sel browser.Selector, timeout time.Duration) error {
	n, err := DismissRepeatedly(ctx, page, sel, 1, timeout)
	if err != nil {
		return err
	}
	if n == 0 {
		a.logger.Debug("Nothing to dismiss.", zap.Stringer("selector", sel))
	}
	return nil
}

func (a *Actions) clickAll(ctx context.Context, page browser.Page, sels ...browser.Selector) error {
	for _, sel := range sels {
		if err := a.click(ctx, page, sel); err != nil {
			return err
		}
	}
	return nil
}

// ImportAccount walks the onboarding import flow with opts' seed and password.
func (a *Actions) ImportAccount(ctx context.Context, page browser.Page, opts Options) error {
	opts = opts.WithDefaults()
	words := strings.Fields(opts.Seed)
	if len(words) == 0 {
		return fmt.Errorf("empty seed phrase")
	}

	if err := a.clickAll(ctx, page, onboardingTerms, onboardingImport, metametricsNoThanks); err != nil {
		return err
	}
	for i, word := range words {
		if err := a.typeInto(ctx, page, importWordField(i), word); err != nil {
			return err
		}
	}
	if err := a.click(ctx, page, srpConfirm); err != nil {
		return err
	}

	if err := a.typeInto(ctx, page, createPasswordNew, opts.Password); err != nil {
		return err
	}
	if err := a.typeInto(ctx, page, createPasswordConfirm, opts.Password); err != nil {
		return err
	}
	if err := a.clickAll(ctx, page, createPasswordTerms, createPasswordImport); err != nil {
		return err
	}

	if err := a.clickAll(ctx, page, onboardingDone, pinExtensionNext, pinExtensionDone); err != nil {
		return err
	}
	a.logger.Info("Account imported.", zap.Int("words", len(words)))
	return a.guard.WaitForOverlay(ctx, page)
}

// AcceptTheRisks acknowledges the warning the restricted build shows first.
func (a *Actions) AcceptTheRisks(ctx context.Context, page browser.Page, _ Options) error {
	return a.click(ctx, page, acceptRisksButton)
}

func (a *Actions) CloseNewModal(ctx context.Context, page browser.Page, _ Options) error {
	return a.dismiss(ctx, page, popoverClose, a.timing.PopupTimeout)
}

func (a *Actions) CloseWhatsNewModal(ctx context.Context, page browser.Page, _ Options) error {
	return a.dismiss(ctx, page, whatsNewClose, a.timing.PopupTimeout)
}

func (a *Actions) ClosePortfolioTooltip(ctx context.Context, page browser.Page, _ Options) error {
	return a.dismiss(ctx, page, portfolioTooltip, a.timing.TooltipTimeout)
}

// ShowTestNets turns the test network toggle on when requested.
func (a *Actions) ShowTestNets(ctx context.Context, page browser.Page, opts Options) error {
	if !opts.ShowTestNets {
		return nil
	}
	return a.withAdvancedSettings(ctx, page, func() error {
		off, err := page.Exists(ctx, showTestNetsOff)
		if err != nil || !off {
			return err
		}
		return a.click(ctx, page, showTestNetsOff)
	})
}

// EnableEthSign allows eth_sign requests, confirming the risk dialog.
func (a *Actions) EnableEthSign(ctx context.Context, page browser.Page, _ Options) error {
	return a.withAdvancedSettings(ctx, page, func() error {
		off, err := page.Exists(ctx, ethSignOff)
		if err != nil || !off {
			return err
		}
		if err := a.clickAll(ctx, page, ethSignOff, ethSignRiskCheckbox, continueButton); err != nil {
			return err
		}
		if err := a.typeInto(ctx, page, ethSignAckInput, ethSignAcknowledgement); err != nil {
			return err
		}
		return a.click(ctx, page, enableButton)
	})
}

// withAdvancedSettings opens the advanced settings view, runs fn and returns
// to the home view.
func (a *Actions) withAdvancedSettings(ctx context.Context, page browser.Page, fn func() error) error {
	address, err := page.URL(ctx)
	if err != nil {
		return err
	}
	base, _, _ := strings.Cut(address, "#")

	if err := page.Goto(ctx, base+"#"+advancedSettingsFragment); err != nil {
		return err
	}
	if err := a.guard.WaitForOverlay(ctx, page); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if err := page.Goto(ctx, base+"#"); err != nil {
		return err
	}
	return a.guard.WaitForOverlay(ctx, page)
}
