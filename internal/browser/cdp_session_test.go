// internal/browser/cdp_session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// detachedSession builds a Session over plain contexts, so shutdown paths can
// be checked without a browser. The returned counter tracks allocator cancels.
func detachedSession(t *testing.T, remote bool) (*Session, *int) {
	t.Helper()
	allocCancels := 0
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Session{
		id:          "session-1",
		allocCtx:    context.Background(),
		allocCancel: func() { allocCancels++ },
		ctx:         ctx,
		cancel:      cancel,
		logger:      zaptest.NewLogger(t),
		remote:      remote,
		pages:       make(map[target.ID]*cdpPage),
		listeners:   make(map[uint64]func(PageInfo)),
	}, &allocCancels
}

func addPage(s *Session, ctx context.Context, cancel context.CancelFunc, id target.ID) *cdpPage {
	p := &cdpPage{id: id, ctx: ctx, cancel: cancel, session: s, logger: s.logger}
	s.pages[id] = p
	return p
}

func TestSessionShutdown(t *testing.T) {
	t.Run("LaunchedCloseAsksBrowserToExit", func(t *testing.T) {
		s, allocCancels := detachedSession(t, false)
		pctx, pcancel := context.WithCancel(context.Background())
		addPage(s, pctx, pcancel, "tab-1")

		err := s.Close(context.Background())
		// chromedp.Cancel was attempted; over a plain context it can only
		// report the context as invalid.
		assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
		assert.Error(t, pctx.Err())
		assert.Equal(t, 1, *allocCancels)
	})

	t.Run("AttachedCloseOnlyReleases", func(t *testing.T) {
		s, allocCancels := detachedSession(t, true)
		pctx, pcancel := context.WithCancel(context.Background())
		addPage(s, pctx, pcancel, "tab-1")
		s.OnPageCreated(func(PageInfo) {})

		require.NoError(t, s.Close(context.Background()))
		assert.Error(t, s.ctx.Err())
		assert.Equal(t, 1, *allocCancels)
		assert.Empty(t, s.pages)
		assert.Empty(t, s.listeners)

		// Idempotent across both entry points.
		require.NoError(t, s.Release(context.Background()))
		assert.Equal(t, 1, *allocCancels)
	})

	t.Run("ReleaseLeavesAttachedTabsOpen", func(t *testing.T) {
		s, _ := detachedSession(t, true)
		tabCtx, tabCancel := chromedp.NewContext(context.Background())
		defer tabCancel()
		c := chromedp.FromContext(tabCtx)
		require.NotNil(t, c)
		// As if attached: chromedp would close this target when tabCtx ends.
		c.Target = &chromedp.Target{TargetID: "tab-1"}
		addPage(s, tabCtx, tabCancel, "tab-1")

		require.NoError(t, s.Release(context.Background()))
		assert.Nil(t, c.Target, "target must be unset before the page context is cancelled")
		assert.Error(t, tabCtx.Err())
	})

	t.Run("LaunchedReleaseCloses", func(t *testing.T) {
		s, allocCancels := detachedSession(t, false)
		err := s.Release(context.Background())
		assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
		assert.Equal(t, 1, *allocCancels)
	})
}
