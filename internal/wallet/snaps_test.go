// File: internal/wallet/snaps_test.go
package wallet

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/walletctl/internal/browser/browsertest"
)

func TestSnapIDFromLocation(t *testing.T) {
	tests := map[string]string{
		"@metamask/example-snap":     "npm:@metamask/example-snap",
		"npm:@metamask/example-snap": "npm:@metamask/example-snap",
		"local:http://localhost:8081": "local:http://localhost:8081",
		"http://localhost:8081":       "local:http://localhost:8081",
		"https://snaps.example.com":   "local:https://snaps.example.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnapIDFromLocation(in), in)
	}
}

// snapBrowser holds an unlocked wallet page; dapp pages answer the pending
// install request with response.
func snapBrowser(response map[string]interface{}) (*browsertest.Browser, *browsertest.Page) {
	b := browsertest.NewBrowser(true, home)
	wallet := b.All()[0]
	wallet.SetTransient(snapInstallScroll, 0)
	b.OnNewPage = func(p *browsertest.Page) {
		p.EvalResult = func(expression string, res interface{}) error {
			if expression != pendingInstallVar {
				return nil
			}
			out, ok := res.(*map[string]interface{})
			if !ok {
				return fmt.Errorf("unexpected result type %T", res)
			}
			*out = response
			return nil
		}
	}
	return b, wallet
}

func TestInstallSnap(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	timing := testTiming()
	guard := NewGuard(logger, timing.OverlayPollInterval)

	t.Run("approves the prompts and returns the id", func(t *testing.T) {
		b, page := snapBrowser(map[string]interface{}{
			"npm:@metamask/example-snap": map[string]interface{}{"version": "1.2.0"},
		})
		mm := NewMetaMask(b, page, logger, guard, timing)

		id, err := mm.InstallSnap(ctx, "@metamask/example-snap", InstallSnapOptions{
			InstallationURL: "http://localhost:9000",
			Version:         "^1.0.0",
		})
		require.NoError(t, err)
		assert.Equal(t, "npm:@metamask/example-snap", id)

		assert.Equal(t, 1, page.Reloads())
		assert.Equal(t, 2, page.Clicks(snapConnectButton))
		assert.Equal(t, 1, page.Clicks(snapOkButton))
		assert.Zero(t, page.Clicks(snapWarningAccept))

		all := b.All()
		require.Len(t, all, 2)
		dapp := all[1]
		assert.True(t, dapp.Closed())
		assert.Contains(t, dapp.Actions(), "goto:http://localhost:9000")
		evals := dapp.Evals()
		require.Len(t, evals, 2)
		assert.True(t, strings.Contains(evals[0], `"wallet_requestSnaps"`))
		assert.Contains(t, evals[0], `{"npm:@metamask/example-snap":{"version":"^1.0.0"}}`)
	})

	t.Run("sensitive permissions are acknowledged", func(t *testing.T) {
		b, page := snapBrowser(map[string]interface{}{"local:http://localhost:8081": map[string]interface{}{}})
		page.SetTransient(snapPermission, 1)
		mm := NewMetaMask(b, page, logger, guard, timing)

		_, err := mm.InstallSnap(ctx, "http://localhost:8081", InstallSnapOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Clicks(snapPermission))
		assert.Equal(t, 1, page.Clicks(snapWarningAccept))
		assert.Contains(t, b.All()[1].Actions(), "goto:"+timing.SnapInstallURL)
	})

	t.Run("missing snap in the response", func(t *testing.T) {
		b, page := snapBrowser(map[string]interface{}{})
		mm := NewMetaMask(b, page, logger, guard, timing)

		_, err := mm.InstallSnap(ctx, "npm:other", InstallSnapOptions{})
		assert.ErrorIs(t, err, ErrSnapNotInstalled)
		assert.True(t, b.All()[1].Closed())
	})

	t.Run("error entry in the response", func(t *testing.T) {
		b, page := snapBrowser(map[string]interface{}{
			"npm:broken": map[string]interface{}{"error": map[string]interface{}{"message": "blocked"}},
		})
		mm := NewMetaMask(b, page, logger, guard, timing)

		_, err := mm.InstallSnap(ctx, "broken", InstallSnapOptions{})
		assert.ErrorIs(t, err, ErrSnapNotInstalled)
		assert.Contains(t, err.Error(), "blocked")
	})
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	timing := testTiming()
	page := browsertest.NewPage("p", home+"#unlock")
	mm := NewMetaMask(browsertest.NewBrowser(false), page, logger, NewGuard(logger, timing.OverlayPollInterval), timing)

	require.NoError(t, mm.Unlock(ctx, "s3cret"))
	assert.Equal(t, "s3cret", page.Typed(passwordInput))
	assert.Equal(t, 1, page.Clicks(unlockSubmit))
	assert.Same(t, page, mm.Page())

	page.SetTransient(accountMenuButton, 0)
	assert.Error(t, mm.Unlock(ctx, "wrong"))
}
