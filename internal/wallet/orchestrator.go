// File: internal/wallet/orchestrator.go
package wallet

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/config"
)

// Launcher starts or attaches to a browser.
type Launcher interface {
	Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error)
	Connect(ctx context.Context, endpoint string, flask bool) (browser.Browser, error)
}

// Env is what the entry points hand back. SnapID is only set by InitSnapEnv.
type Env struct {
	Wallet  Control
	Browser browser.Browser
	Page    browser.Page
	SnapID  string
}

// ConnectOptions locates a running browser and its wallet.
type ConnectOptions struct {
	Endpoint string
	// HomeURL is the wallet's home address. Empty looks it up on the
	// browser's extensions page.
	HomeURL string
	Flask   bool
}

// Orchestrator drives a wallet page from whatever state it is in to an
// unlocked, dismissed home view.
type Orchestrator struct {
	logger     *zap.Logger
	cfg        *config.Config
	launcher   Launcher
	guard      *Guard
	actions    *Actions
	pattern    *regexp.Regexp
	newControl ControlFactory
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithControlFactory replaces how the ready page is wrapped.
func WithControlFactory(f ControlFactory) Option {
	return func(o *Orchestrator) { o.newControl = f }
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(logger *zap.Logger, cfg *config.Config, launcher Launcher, opts ...Option) (*Orchestrator, error) {
	pattern, err := regexp.Compile(cfg.Wallet.HomePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid home pattern: %w", err)
	}
	logger = logger.Named("orchestrator")
	guard := NewGuard(logger, cfg.Timing.OverlayPollInterval)

	o := &Orchestrator{
		logger:   logger,
		cfg:      cfg,
		launcher: launcher,
		guard:    guard,
		actions:  NewActions(logger, guard, cfg.Timing),
		pattern:  pattern,
	}
	o.newControl = func(b browser.Browser, page browser.Page) Control {
		return NewMetaMask(b, page, logger, guard, cfg.Timing)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Actions exposes the setup steps, for callers composing their own sequence.
func (o *Orchestrator) Actions() *Actions { return o.actions }

func (o *Orchestrator) runLogger(flow string) *zap.Logger {
	return o.logger.With(zap.String("flow", flow), zap.String("run_id", uuid.NewString()))
}

// Bootstrap launches a browser and readies the wallet. A persisted profile
// is assumed to hold a vault and is only unlocked; otherwise the full first
// time setup runs.
func (o *Orchestrator) Bootstrap(ctx context.Context, lo browser.LaunchOptions, opts Options) (*Env, error) {
	log := o.runLogger("bootstrap")
	opts = opts.WithDefaults()

	b, err := o.launcher.Launch(ctx, lo)
	if err != nil {
		return nil, err
	}

	var ctl Control
	if lo.UserDataDir != "" {
		log.Info("Reusing profile.", zap.String("user_data_dir", lo.UserDataDir))
		ctl, err = o.SetupBootstrapped(ctx, b, opts.Password, false)
	} else {
		log.Info("Setting up a fresh profile.")
		ctl, err = o.SetupMetaMask(ctx, b, opts, nil)
	}
	if err != nil {
		return nil, o.abandon(ctx, b.Close, err)
	}
	log.Info("Wallet ready.")
	return &Env{Wallet: ctl, Browser: b, Page: ctl.Page()}, nil
}

// Connect attaches to a running browser and readies its wallet.
func (o *Orchestrator) Connect(ctx context.Context, co ConnectOptions, opts Options) (*Env, error) {
	b, err := o.launcher.Connect(ctx, co.Endpoint, co.Flask)
	if err != nil {
		return nil, err
	}
	ctl, err := o.ConnectBrowser(ctx, b, co.HomeURL, opts)
	if err != nil {
		// The browser was running before us and stays up.
		return nil, o.abandon(ctx, b.Release, err)
	}
	return &Env{Wallet: ctl, Browser: b, Page: ctl.Page()}, nil
}

// ConnectBrowser readies the wallet in an already connected browser,
// branching on the screen the wallet page shows. The wallet page is located
// by homeURL, not by the configured home pattern.
func (o *Orchestrator) ConnectBrowser(ctx context.Context, b browser.Browser, homeURL string, opts Options) (Control, error) {
	log := o.runLogger("connect")
	opts = opts.WithDefaults()

	if homeURL == "" {
		var err error
		homeURL, err = ResolveHomeURL(ctx, b, o.cfg.Wallet.ExtensionName, o.cfg.Timing.ActionTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve wallet address: %w", err)
		}
	}
	log = log.With(zap.String("home_url", homeURL))
	pattern := HomePattern(homeURL)

	found, err := o.dedupPages(ctx, b, homeURL)
	if err != nil {
		return nil, err
	}
	if found == 0 {
		log.Debug("No wallet page open, creating one.")
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.Goto(ctx, homeURL); err != nil {
			return nil, err
		}
	}

	page, err := Acquire(ctx, b, pattern)
	if err != nil {
		return nil, err
	}
	// The wallet sometimes renders a stale screen right after navigation.
	if err := page.Reload(ctx); err != nil {
		return nil, err
	}

	address, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}
	if IsRestoreVault(address) {
		log.Debug("Leaving restore-vault screen.")
		if err := page.Goto(ctx, strings.Replace(address, "restore-vault", "unlock", 1)); err != nil {
			return nil, err
		}
		if address, err = page.URL(ctx); err != nil {
			return nil, err
		}
	}

	// Checked one at a time in this order even though the patterns exclude
	// each other.
	switch {
	case IsLockScreen(address):
		log.Info("Wallet is locked.")
		return o.setupBootstrapped(ctx, b, pattern, opts.Password, false)
	case IsUnlocked(address):
		log.Info("Wallet is already unlocked.")
		return o.setupBootstrapped(ctx, b, pattern, opts.Password, true)
	case IsSetupScreen(address):
		log.Info("Wallet needs setup.")
		return o.setupMetaMask(ctx, b, pattern, opts, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address)
	}
}

// dedupPages keeps the first page at homeURL open and closes the others. It
// returns how many matching pages were found.
func (o *Orchestrator) dedupPages(ctx context.Context, b browser.Browser, homeURL string) (int, error) {
	pages, err := b.Pages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pages: %w", err)
	}
	found := 0
	for _, p := range pages {
		address, err := p.URL(ctx)
		if err != nil || !strings.HasPrefix(address, homeURL) {
			continue
		}
		found++
		if found == 1 {
			continue
		}
		o.logger.Debug("Closing duplicate wallet page.", zap.String("page_id", p.ID()))
		if err := p.Close(ctx); err != nil {
			return found, fmt.Errorf("failed to close duplicate wallet page: %w", err)
		}
	}
	return found, nil
}

// InitSnapEnv launches the restricted build, runs the first time setup and
// installs snap.
func (o *Orchestrator) InitSnapEnv(ctx context.Context, lo browser.LaunchOptions, opts Options, snap string, so InstallSnapOptions) (*Env, error) {
	log := o.runLogger("init-snap")
	lo.Flask = true

	b, err := o.launcher.Launch(ctx, lo)
	if err != nil {
		return nil, err
	}
	ctl, err := o.SetupMetaMask(ctx, b, opts.WithDefaults(), nil)
	if err != nil {
		return nil, o.abandon(ctx, b.Close, err)
	}
	id, err := ctl.InstallSnap(ctx, snap, so)
	if err != nil {
		return nil, o.abandon(ctx, b.Close, err)
	}
	log.Info("Snap environment ready.", zap.String("snap_id", id))
	return &Env{Wallet: ctl, Browser: b, Page: ctl.Page(), SnapID: id}, nil
}

// SetupMetaMask finds the wallet page and runs steps on it. A nil steps
// picks the sequence for the loaded build.
func (o *Orchestrator) SetupMetaMask(ctx context.Context, b browser.Browser, opts Options, steps []Step) (Control, error) {
	return o.setupMetaMask(ctx, b, o.pattern, opts, steps)
}

func (o *Orchestrator) setupMetaMask(ctx context.Context, b browser.Browser, pattern *regexp.Regexp, opts Options, steps []Step) (Control, error) {
	page, err := Acquire(ctx, b, pattern)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = o.actions.StepsFor(b.IsFlask())
	}

	vp := o.cfg.Browser.Viewport
	if err := page.SetViewport(ctx, vp.Width, vp.Height); err != nil {
		return nil, err
	}
	if err := RunSteps(ctx, page, opts, steps); err != nil {
		return nil, err
	}
	return o.newControl(b, page), nil
}

// SetupBootstrapped readies a wallet that already holds a vault. Unless
// skipLogin is set it unlocks with password. Leftover popovers are
// dismissed either way.
func (o *Orchestrator) SetupBootstrapped(ctx context.Context, b browser.Browser, password string, skipLogin bool) (Control, error) {
	return o.setupBootstrapped(ctx, b, o.pattern, password, skipLogin)
}

func (o *Orchestrator) setupBootstrapped(ctx context.Context, b browser.Browser, pattern *regexp.Regexp, password string, skipLogin bool) (Control, error) {
	page, err := Acquire(ctx, b, pattern)
	if err != nil {
		return nil, err
	}
	ctl := o.newControl(b, page)
	timing := o.cfg.Timing

	if err := page.Evaluate(ctx, "window.signedIn = false", nil); err != nil {
		return nil, err
	}

	if !skipLogin {
		if err := page.WaitForTimeout(ctx, timing.SettleDelay); err != nil {
			return nil, err
		}
		if err := o.guard.WaitForOverlay(ctx, page); err != nil {
			return nil, err
		}
		// The restricted build shows a second loading layer.
		if b.IsFlask() {
			if err := o.guard.WaitForOverlay(ctx, page); err != nil {
				return nil, err
			}
		}
		unlock := func(ctx context.Context) error { return ctl.Unlock(ctx, password) }
		if err := Retry(ctx, unlock, timing.UnlockAttempts); err != nil {
			return nil, fmt.Errorf("failed to unlock wallet after %d attempts: %w", timing.UnlockAttempts, err)
		}
	}

	clicks, err := DismissRepeatedly(ctx, page, whatsNewClose, timing.WhatsNewAttempts, timing.PopupTimeout)
	if err != nil {
		return nil, err
	}
	if clicks > 0 {
		o.logger.Debug("Dismissed what's new popups.", zap.Int("count", clicks))
	}
	if _, err := DismissRepeatedly(ctx, page, gotItButton, 1, timing.TooltipTimeout); err != nil {
		return nil, err
	}

	if err := o.guard.WaitForOverlay(ctx, page); err != nil {
		return nil, err
	}
	return ctl, nil
}

// abandon lets go of the browser of a failed flow through done, Close for a
// launched browser and Release for an attached one, and returns cause with
// any error from done attached.
func (o *Orchestrator) abandon(ctx context.Context, done func(context.Context) error, cause error) error {
	o.logger.Error("Wallet setup failed.", zap.Error(cause))
	return multierr.Append(cause, done(browser.Detach(ctx)))
}
