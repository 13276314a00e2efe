// File: internal/wallet/guard.go
package wallet

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

// overlaySelector matches the full screen layers the wallet shows while it
// is busy. Controls underneath them cannot be clicked.
var overlaySelector = browser.CSS(".loading-overlay, .app-loading-spinner")

// Retry invokes fn up to attempts times, immediately and without backoff,
// and returns the last error if every attempt fails. It stops early only
// when ctx is done.
func Retry(ctx context.Context, fn func(context.Context) error, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && ctx.Err() != nil {
			return err
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// IsTransient reports whether err is an absent or late element, the only
// conditions the tolerant dismissals swallow.
func IsTransient(err error) bool {
	return errors.Is(err, browser.ErrTimeout) || errors.Is(err, browser.ErrNotFound)
}

// DismissRepeatedly clicks sel until it stops appearing, at most maxAttempts
// times, waiting up to perAttempt for it each time. An absent control ends
// the loop without error. It returns the number of clicks made.
func DismissRepeatedly(ctx context.Context, page browser.Page, sel browser.Selector, maxAttempts int, perAttempt time.Duration) (int, error) {
	clicks := 0
	for clicks < maxAttempts {
		err := page.Click(ctx, sel, perAttempt)
		if IsTransient(err) {
			return clicks, nil
		}
		if err != nil {
			return clicks, err
		}
		clicks++
	}
	return clicks, nil
}

// Guard waits out transient UI layers.
type Guard struct {
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewGuard creates a Guard polling at pollInterval.
func NewGuard(logger *zap.Logger, pollInterval time.Duration) *Guard {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Guard{logger: logger.Named("guard"), pollInterval: pollInterval}
}

// WaitForOverlay blocks until no loading overlay is present on page. The
// first check runs immediately.
func (g *Guard) WaitForOverlay(ctx context.Context, page browser.Page) error {
	limiter := rate.NewLimiter(rate.Every(g.pollInterval), 1)
	polls := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		present, err := page.Exists(ctx, overlaySelector)
		if err != nil {
			return err
		}
		if !present {
			if polls > 0 {
				g.logger.Debug("Overlay cleared.", zap.Int("polls", polls))
			}
			return nil
		}
		polls++
	}
}
