// File: internal/wallet/acquire_test.go
package wallet

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/browser/browsertest"
)

var homePattern = regexp.MustCompile(`chrome-extension://[a-z]+/home.html`)

type acquired struct {
	page browser.Page
	err  error
}

func acquireAsync(ctx context.Context, b browser.Browser) <-chan acquired {
	out := make(chan acquired, 1)
	go func() {
		p, err := Acquire(ctx, b, homePattern)
		out <- acquired{p, err}
	}()
	return out
}

func TestAcquire(t *testing.T) {
	t.Run("existing page resolves immediately", func(t *testing.T) {
		b := browsertest.NewBrowser(false, "about:blank", home+"#unlock")

		page, err := Acquire(context.Background(), b, homePattern)
		require.NoError(t, err)
		assert.Equal(t, b.All()[1].ID(), page.ID())
		assert.Zero(t, b.Listeners(), "subscription must be released")
	})

	t.Run("first match wins", func(t *testing.T) {
		b := browsertest.NewBrowser(false, home+"#unlock", home)

		page, err := Acquire(context.Background(), b, homePattern)
		require.NoError(t, err)
		assert.Equal(t, b.All()[0].ID(), page.ID())
	})

	t.Run("waits for a matching page to be created", func(t *testing.T) {
		b := browsertest.NewBrowser(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result := acquireAsync(ctx, b)
		require.Eventually(t, func() bool { return b.Listeners() == 1 }, time.Second, time.Millisecond)

		b.AddPage("about:blank")
		select {
		case <-result:
			t.Fatal("resolved on a page that does not match")
		case <-time.After(20 * time.Millisecond):
		}

		created := b.AddPage(home)
		r := <-result
		require.NoError(t, r.err)
		assert.Equal(t, created.ID(), r.page.ID())
		assert.Zero(t, b.Listeners())
	})

	t.Run("resolves when a blank tab navigates to the wallet", func(t *testing.T) {
		b := browsertest.NewBrowser(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result := acquireAsync(ctx, b)
		require.Eventually(t, func() bool { return b.Listeners() == 1 }, time.Second, time.Millisecond)

		tab := b.AddPage("about:blank")
		require.NoError(t, tab.Goto(ctx, home+"#onboarding/welcome"))

		r := <-result
		require.NoError(t, r.err)
		assert.Equal(t, tab.ID(), r.page.ID())
	})

	t.Run("caller bounds the wait", func(t *testing.T) {
		b := browsertest.NewBrowser(false, "about:blank")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		page, err := Acquire(ctx, b, homePattern)
		assert.Nil(t, page)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, b.Listeners())
	})

	t.Run("closed pages are skipped", func(t *testing.T) {
		b := browsertest.NewBrowser(false, home+"#unlock", home)
		require.NoError(t, b.All()[0].Close(context.Background()))

		page, err := Acquire(context.Background(), b, homePattern)
		require.NoError(t, err)
		assert.Equal(t, b.All()[1].ID(), page.ID())
	})
}

func TestHomePattern(t *testing.T) {
	re := HomePattern("chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/index.html")

	assert.True(t, re.MatchString("chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/index.html"))
	assert.True(t, re.MatchString("chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/index.html#unlock"))
	// Dots are literal and the match is anchored.
	assert.False(t, re.MatchString("chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/indexxhtml"))
	assert.False(t, re.MatchString("https://evil.example/?chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/index.html"))

	b := browsertest.NewBrowser(false, "about:blank", "chrome-extension://jnlgamecbpmbajjfhmmmlhejkemejdma/index.html#")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := Acquire(ctx, b, re)
	require.NoError(t, err)
	assert.Equal(t, "page-2", p.ID())
}
