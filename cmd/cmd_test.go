// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/browser/browsertest"
	"github.com/xkilldash9x/walletctl/internal/mocks"
	"github.com/xkilldash9x/walletctl/internal/observability"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

const testHome = "chrome-extension://nkbihfbeogaeaoehlefnkodbefgpgknn/home.html"

// stubLauncher swaps the launcher used by the commands for the duration of t.
func stubLauncher(t *testing.T) *mocks.MockLauncher {
	t.Helper()
	m := new(mocks.MockLauncher)
	orig := newLauncher
	newLauncher = func(*zap.Logger) wallet.Launcher { return m }
	t.Cleanup(func() {
		newLauncher = orig
		m.AssertExpectations(t)
	})
	return m
}

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WALLETCTL_LOGGER_LEVEL", "error")
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeSummary(t *testing.T, out string) summary {
	t.Helper()
	var s summary
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	return s
}

func TestVersionCommand(t *testing.T) {
	orig := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = orig })

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "walletctl 1.2.3\n", out)
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"bootstrap", "connect", "init-snap", "state", "version"}, names)
}

func TestConnectCommand(t *testing.T) {
	t.Run("unlocked wallet", func(t *testing.T) {
		launcher := stubLauncher(t)
		b := browsertest.NewBrowser(false, testHome+"#")
		launcher.On("Connect", mock.Anything, "http://127.0.0.1:9222", false).Return(b, nil).Once()

		out, err := run(t, "connect", "--ws-endpoint", "http://127.0.0.1:9222", "--home-url", testHome)
		require.NoError(t, err)

		s := decodeSummary(t, out)
		assert.Equal(t, "connect", s.Flow)
		assert.Equal(t, "unlocked", s.State)
		assert.Equal(t, "page-1", s.PageID)
		assert.False(t, s.Holding)
		assert.True(t, b.Released(), "browser session should be released when not holding")
		assert.False(t, b.Closed(), "an attached browser must keep running")
	})

	t.Run("endpoint required", func(t *testing.T) {
		stubLauncher(t)
		_, err := run(t, "connect", "--home-url", testHome)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint is required")
	})

	t.Run("launcher failure", func(t *testing.T) {
		launcher := stubLauncher(t)
		boom := errors.New("connection refused")
		launcher.On("Connect", mock.Anything, "http://127.0.0.1:9222", false).Return(nil, boom).Once()

		_, err := run(t, "connect", "--ws-endpoint", "http://127.0.0.1:9222", "--home-url", testHome)
		assert.ErrorIs(t, err, boom)
	})
}

func TestStateCommand(t *testing.T) {
	launcher := stubLauncher(t)
	b := browsertest.NewBrowser(true, "about:blank", testHome+"#unlock")
	launcher.On("Connect", mock.Anything, "ws://127.0.0.1:9222/devtools/browser/abc", true).Return(b, nil).Once()

	out, err := run(t, "state", "--ws-endpoint", "ws://127.0.0.1:9222/devtools/browser/abc", "--flask")
	require.NoError(t, err)

	s := decodeSummary(t, out)
	assert.Equal(t, "state", s.Flow)
	assert.Equal(t, "lock-screen", s.State)
	assert.Equal(t, "page-2", s.PageID)
	assert.True(t, s.Flask)
	assert.True(t, b.Released())
	assert.False(t, b.Closed(), "probing must leave the browser running")

	// Probing must not touch the page.
	assert.Empty(t, b.All()[1].Actions())
}

func TestBootstrapCommandLaunchOptions(t *testing.T) {
	launcher := stubLauncher(t)
	boom := errors.New("no browser binary")
	launcher.On("Launch", mock.Anything, browser.LaunchOptions{
		ExtensionPath: "/opt/metamask",
		UserDataDir:   "/tmp/profile",
		Headless:      true,
		Args:          []string{"lang=en-US"},
	}).Return(nil, boom).Once()

	_, err := run(t, "bootstrap",
		"--extension", "/opt/metamask",
		"--user-data-dir", "/tmp/profile",
		"--headless",
		"--browser-arg", "lang=en-US")
	assert.ErrorIs(t, err, boom)
}

func TestInitSnapCommandRequiresSnap(t *testing.T) {
	stubLauncher(t)
	_, err := run(t, "init-snap")
	require.Error(t, err)
}
