// internal/browser/cdp_page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// cdpPage implements Page over a chromedp target context. The target is
// attached lazily so that listing pages does not attach to every tab.
type cdpPage struct {
	id      target.ID
	ctx     context.Context
	cancel  context.CancelFunc
	session *Session
	logger  *zap.Logger

	attachOnce sync.Once
	attachErr  error
	attached   bool
}

var _ Page = (*cdpPage)(nil)

func (p *cdpPage) ID() string { return string(p.id) }

// attach performs the first Run on the target context itself. The first Run
// must not carry an operation deadline, or its expiry would tear the target
// down with it.
func (p *cdpPage) attach() error {
	p.attachOnce.Do(func() {
		if err := chromedp.Run(p.ctx); err != nil {
			p.attachErr = fmt.Errorf("failed to attach to target %s: %w", p.id, err)
			return
		}
		p.attached = true
	})
	return p.attachErr
}

// run executes actions on the target, bounded by both the target lifetime
// and the caller's context.
func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	if err := p.attach(); err != nil {
		return err
	}
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// bounded runs actions under timeout and reports expiry as ErrTimeout,
// unless the caller's own context ended first.
func (p *cdpPage) bounded(ctx context.Context, sel Selector, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	err := p.run(opCtx, actions...)
	if err != nil && timeout > 0 && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %v", ErrTimeout, sel, timeout)
	}
	return err
}

func (p *cdpPage) URL(ctx context.Context) (string, error) {
	if p.attached {
		var loc string
		if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
			return "", fmt.Errorf("failed to read location: %w", err)
		}
		return loc, nil
	}
	info, err := p.session.targetInfo(ctx, p.id)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *cdpPage) Goto(ctx context.Context, address string) error {
	current, err := p.URL(ctx)
	if err == nil && sameDocument(current, address) {
		// Fragment-only moves never fire a load event; assign the location
		// directly instead of waiting for one.
		p.logger.Debug("Navigating within document.", zap.String("from", current), zap.String("to", address))
		return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("void (window.location.href = %s)", jsString(address)), nil))
	}
	p.logger.Debug("Navigating.", zap.String("url", address))
	if err := p.run(ctx, chromedp.Navigate(address)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", address, err)
	}
	return nil
}

// sameDocument reports whether a and b differ at most in their fragment.
func sameDocument(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ua.Fragment, ua.RawFragment = "", ""
	ub.Fragment, ub.RawFragment = "", ""
	return ua.String() == ub.String()
}

func (p *cdpPage) Reload(ctx context.Context) error {
	if err := p.run(ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

func (p *cdpPage) SetViewport(ctx context.Context, width, height int64) error {
	return p.run(ctx, chromedp.EmulateViewport(width, height))
}

func (p *cdpPage) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return p.run(ctx, chromedp.Evaluate(expression, res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *cdpPage) WaitForTimeout(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *cdpPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	q, opts := sel.queryOptions()
	return p.bounded(ctx, sel, timeout, chromedp.WaitVisible(q, opts...))
}

func (p *cdpPage) Exists(ctx context.Context, sel Selector) (bool, error) {
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(sel.allElementsJS()+".length > 0", &found)); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	return found, nil
}

func (p *cdpPage) Click(ctx context.Context, sel Selector, timeout time.Duration) error {
	q, opts := sel.queryOptions()
	return p.bounded(ctx, sel, timeout,
		chromedp.WaitVisible(q, opts...),
		chromedp.Click(q, append(opts, chromedp.NodeVisible)...),
	)
}

func (p *cdpPage) Type(ctx context.Context, sel Selector, text string, timeout time.Duration) error {
	q, opts := sel.queryOptions()
	return p.bounded(ctx, sel, timeout,
		chromedp.WaitVisible(q, opts...),
		chromedp.Clear(q, opts...),
		chromedp.SendKeys(q, text, opts...),
	)
}

func (p *cdpPage) Texts(ctx context.Context, sel Selector) ([]string, error) {
	var texts []string
	expr := sel.allElementsJS() + `.map((el) => el.textContent || "")`
	if err := p.run(ctx, chromedp.Evaluate(expr, &texts)); err != nil {
		return nil, fmt.Errorf("failed to read text of %s: %w", sel, err)
	}
	return texts, nil
}

func (p *cdpPage) Close(ctx context.Context) error {
	if err := p.session.closeTarget(ctx, p.id); err != nil {
		return err
	}
	p.cancel()
	return nil
}

// release detaches from the target and leaves it open. chromedp closes an
// attached target once its context ends, so the target is unset on the
// chromedp context before the cancel.
func (p *cdpPage) release(ctx context.Context) {
	if c := chromedp.FromContext(p.ctx); c != nil && c.Target != nil {
		if sid := c.Target.SessionID; sid != "" && c.Browser != nil {
			if err := target.DetachFromTarget().WithSessionID(sid).Do(cdp.WithExecutor(ctx, c.Browser)); err != nil {
				p.logger.Debug("Failed to detach from page.", zap.Error(err))
			}
		}
		c.Target = nil
	}
	p.cancel()
}
