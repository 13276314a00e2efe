// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// LaunchOptions configures a locally launched browser.
type LaunchOptions struct {
	// ExtensionPath is the unpacked extension directory to load.
	ExtensionPath string
	// UserDataDir reuses an existing profile. Empty means a throwaway profile.
	UserDataDir string
	Headless    bool
	// Flask marks the loaded extension as the restricted/advanced build.
	Flask bool
	// Args are extra command line switches, with or without a leading "--".
	Args []string
}

// Launcher starts or attaches to chromium based browsers.
type Launcher struct {
	logger *zap.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(logger *zap.Logger) *Launcher {
	return &Launcher{logger: logger.Named("launcher")}
}

// Launch starts a browser process with the extension loaded. The process
// lives until the returned Browser is closed or ctx is canceled.
func (l *Launcher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	l.logger.Info("Launching browser.",
		zap.String("extension", opts.ExtensionPath),
		zap.String("user_data_dir", opts.UserDataDir),
		zap.Bool("headless", opts.Headless),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(opts)...)
	s, err := newSession(allocCtx, cancel, l.logger, opts.Flask, false)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return s, nil
}

// Connect attaches to an already running browser through its DevTools
// endpoint, either an http(s) address or a ws:// browser URL.
func (l *Launcher) Connect(ctx context.Context, endpoint string, flask bool) (Browser, error) {
	l.logger.Info("Connecting to browser.", zap.String("endpoint", endpoint))
	var opts []chromedp.RemoteAllocatorOption
	if strings.Contains(endpoint, "/devtools/browser/") {
		opts = append(opts, chromedp.NoModifyURL)
	}
	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, endpoint, opts...)
	s, err := newSession(allocCtx, cancel, l.logger, flask, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return s, nil
}

// flag is a single command line switch. A false bool removes the switch.
type flag struct {
	name  string
	value interface{}
}

// launchFlags lists the switches layered over chromedp's defaults. Later
// entries override earlier ones with the same name.
func launchFlags(opts LaunchOptions, goos string) []flag {
	flags := []flag{
		// Extensions are disabled by chromedp's defaults.
		{"disable-extensions", false},
		{"enable-automation", false},
		{"headless", false},
		{"disable-blink-features", "AutomationControlled"},
	}
	if opts.Headless {
		// Only the new headless mode runs extension pages.
		flags = append(flags, flag{"headless", "new"}, flag{"disable-gpu", true})
	}
	if opts.ExtensionPath != "" {
		flags = append(flags,
			flag{"disable-extensions-except", opts.ExtensionPath},
			flag{"load-extension", opts.ExtensionPath},
		)
	}
	if opts.UserDataDir != "" {
		flags = append(flags, flag{"user-data-dir", opts.UserDataDir})
	}

	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, flag{name, parts[1]})
		} else {
			flags = append(flags, flag{name, true})
		}
	}

	// Container friendly switches.
	if goos == "linux" {
		flags = append(flags,
			flag{"no-sandbox", true},
			flag{"disable-dev-shm-usage", true},
			flag{"disable-setuid-sandbox", true},
		)
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for opts.
func AllocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(opts, runtime.GOOS) {
		out = append(out, chromedp.Flag(f.name, f.value))
	}
	return out
}
