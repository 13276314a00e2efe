// File: internal/wallet/steps.go
package wallet

import (
	"context"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

const (
	// DefaultSeed is the well-known test mnemonic imported when none is given.
	DefaultSeed = "already turtle birth enroll since owner keep patch skirt drift any dinner"
	// DefaultPassword protects the imported vault when none is given.
	DefaultPassword = "password1234"
)

// Options is the account material and feature switches for one setup run.
// It is passed by value and never modified by the steps.
type Options struct {
	Seed         string
	Password     string
	ShowTestNets bool
}

// WithDefaults fills an empty seed or password with the test defaults.
func (o Options) WithDefaults() Options {
	if o.Seed == "" {
		o.Seed = DefaultSeed
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	return o
}

// StepFunc performs one unit of setup work on the wallet page.
type StepFunc func(ctx context.Context, page browser.Page, opts Options) error

// Step is a named StepFunc.
type Step struct {
	Name string
	Run  StepFunc
}

// Step names.
const (
	StepAcceptTheRisks        = "accept-the-risks"
	StepImportAccount         = "import-account"
	StepCloseNewModal         = "close-new-modal"
	StepShowTestNets          = "show-test-networks"
	StepEnableEthSign         = "enable-eth-sign"
	StepClosePortfolioTooltip = "close-portfolio-tooltip"
	StepCloseWhatsNew         = "close-whats-new"
)

// RunSteps runs steps in order, each to completion before the next. The
// first failure aborts the rest and is returned as a *StepError; nothing
// already done is undone.
func RunSteps(ctx context.Context, page browser.Page, opts Options, steps []Step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: s.Name, Err: err}
		}
		if err := s.Run(ctx, page, opts); err != nil {
			return &StepError{Step: s.Name, Err: err}
		}
	}
	return nil
}

// DefaultSteps is the setup sequence for the standard extension build. The
// what's new modal is dismissed twice because it can reappear.
func (a *Actions) DefaultSteps() []Step {
	return []Step{
		{StepImportAccount, a.ImportAccount},
		{StepCloseNewModal, a.CloseNewModal},
		{StepShowTestNets, a.ShowTestNets},
		{StepEnableEthSign, a.EnableEthSign},
		{StepCloseWhatsNew, a.CloseWhatsNewModal},
		{StepCloseWhatsNew, a.CloseWhatsNewModal},
	}
}

// FlaskSteps is the setup sequence for the restricted/advanced build.
func (a *Actions) FlaskSteps() []Step {
	return []Step{
		{StepAcceptTheRisks, a.AcceptTheRisks},
		{StepImportAccount, a.ImportAccount},
		{StepShowTestNets, a.ShowTestNets},
		{StepEnableEthSign, a.EnableEthSign},
		{StepClosePortfolioTooltip, a.ClosePortfolioTooltip},
		{StepCloseWhatsNew, a.CloseWhatsNewModal},
		{StepCloseWhatsNew, a.CloseWhatsNewModal},
	}
}

// StepsFor picks the sequence for the loaded build.
func (a *Actions) StepsFor(flask bool) []Step {
	if flask {
		return a.FlaskSteps()
	}
	return a.DefaultSteps()
}
