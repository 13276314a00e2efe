// internal/browser/cdp_session.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const targetTypePage = "page"

// Session is a chromedp backed Browser. It owns the allocator and a
// browser-level context; page handles are derived from it on demand.
type Session struct {
	id          string
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
	flask       bool
	// remote is set when the browser was attached to rather than launched.
	remote bool

	mu           sync.Mutex
	pages        map[target.ID]*cdpPage
	listeners    map[uint64]func(PageInfo)
	nextListener uint64

	closeOnce sync.Once
	closeErr  error
}

var _ Browser = (*Session)(nil)

// newSession starts the browser-level context on top of an allocator and
// subscribes to target events. It takes ownership of allocCancel.
func newSession(allocCtx context.Context, allocCancel context.CancelFunc, logger *zap.Logger, flask, remote bool) (*Session, error) {
	id := uuid.New().String()
	ctx, cancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser. It runs on the session context
	// itself so that no operation deadline is tied to the process lifetime.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	s := &Session{
		id:          id,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With(zap.String("session_id", id)),
		flask:       flask,
		remote:      remote,
		pages:       make(map[target.ID]*cdpPage),
		listeners:   make(map[uint64]func(PageInfo)),
	}
	chromedp.ListenBrowser(ctx, s.onBrowserEvent)
	s.logger.Debug("Browser session started.", zap.Bool("flask", flask), zap.Bool("remote", remote))
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) IsFlask() bool { return s.flask }

func (s *Session) onBrowserEvent(ev interface{}) {
	var info *target.Info
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		info = ev.TargetInfo
	case *target.EventTargetInfoChanged:
		info = ev.TargetInfo
	case *target.EventTargetDestroyed:
		s.forget(ev.TargetID)
		return
	}
	if info == nil || info.Type != targetTypePage {
		return
	}

	s.mu.Lock()
	fns := make([]func(PageInfo), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	pi := PageInfo{ID: string(info.TargetID), URL: info.URL}
	for _, fn := range fns {
		fn(pi)
	}
}

func (s *Session) OnPageCreated(fn func(PageInfo)) func() {
	s.mu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, key)
			s.mu.Unlock()
		})
	}
}

func (s *Session) Pages(ctx context.Context) ([]Page, error) {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	pages := make([]Page, 0, len(infos))
	for _, info := range infos {
		if info.Type != targetTypePage {
			continue
		}
		pages = append(pages, s.pageFor(info.TargetID))
	}
	return pages, nil
}

func (s *Session) NewPage(ctx context.Context) (Page, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	tid := chromedp.FromContext(tabCtx).Target.TargetID

	p := &cdpPage{
		id:      tid,
		ctx:     tabCtx,
		cancel:  tabCancel,
		session: s,
		logger:  s.logger.With(zap.String("target_id", string(tid))),
	}
	// Already attached by the Run above.
	p.attachOnce.Do(func() { p.attached = true })

	s.mu.Lock()
	s.pages[tid] = p
	s.mu.Unlock()
	return p, nil
}

// pageFor returns the cached handle for tid, creating an unattached one.
func (s *Session) pageFor(tid target.ID) *cdpPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[tid]; ok {
		return p
	}
	ctx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(tid))
	p := &cdpPage{
		id:      tid,
		ctx:     ctx,
		cancel:  cancel,
		session: s,
		logger:  s.logger.With(zap.String("target_id", string(tid))),
	}
	s.pages[tid] = p
	return p
}

func (s *Session) forget(tid target.ID) {
	s.mu.Lock()
	p, ok := s.pages[tid]
	delete(s.pages, tid)
	s.mu.Unlock()
	if ok {
		p.cancel()
	}
}

func (s *Session) targetInfo(ctx context.Context, tid target.ID) (*target.Info, error) {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	var info *target.Info
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		info, err = target.GetTargetInfo().WithTargetID(tid).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get target info for %s: %w", tid, err)
	}
	return info, nil
}

func (s *Session) closeTarget(ctx context.Context, tid target.ID) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(tid).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to close target %s: %w", tid, err)
	}
	s.logger.Debug("Closed page.", zap.String("target_id", string(tid)))
	return nil
}

// Close cancels every page context, then the browser context and allocator.
// For a launched browser this terminates the process. An attached browser
// is released instead. It is idempotent.
func (s *Session) Close(ctx context.Context) error {
	if s.remote {
		return s.Release(ctx)
	}
	s.closeOnce.Do(func() {
		for _, p := range s.takePages() {
			p.cancel()
		}

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err := <-done:
			s.closeErr = multierr.Append(s.closeErr, err)
		case <-ctx.Done():
			s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("browser did not close gracefully: %w", ctx.Err()))
			s.cancel()
		}
		s.allocCancel()
		s.logger.Debug("Browser session closed.")
	})
	return s.closeErr
}

// Release detaches from every page and drops the connection. The browser
// and its tabs, including ones opened through this session, keep running.
// On a launched browser it closes the session.
func (s *Session) Release(ctx context.Context) error {
	if !s.remote {
		return s.Close(ctx)
	}
	s.closeOnce.Do(func() {
		for _, p := range s.takePages() {
			p.release(ctx)
		}
		// A plain cancel of the browser context drops the websocket; only
		// chromedp.Cancel would ask the browser to exit.
		s.cancel()
		s.allocCancel()
		s.logger.Debug("Browser session released.")
	})
	return s.closeErr
}

// takePages empties the page cache and the listener set.
func (s *Session) takePages() []*cdpPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := make([]*cdpPage, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	s.pages = make(map[target.ID]*cdpPage)
	s.listeners = make(map[uint64]func(PageInfo))
	return pages
}
