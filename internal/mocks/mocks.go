// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/wallet"
)

// -- Wallet Control Mock --

// MockControl mocks the wallet.Control interface.
type MockControl struct {
	mock.Mock
}

var _ wallet.Control = (*MockControl)(nil)

func (m *MockControl) Page() browser.Page {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(browser.Page)
}

func (m *MockControl) Unlock(ctx context.Context, password string) error {
	return m.Called(ctx, password).Error(0)
}

func (m *MockControl) InstallSnap(ctx context.Context, idOrLocation string, opts wallet.InstallSnapOptions) (string, error) {
	args := m.Called(ctx, idOrLocation, opts)
	return args.String(0), args.Error(1)
}

// -- Launcher Mock --

// MockLauncher mocks the wallet.Launcher interface.
type MockLauncher struct {
	mock.Mock
}

var _ wallet.Launcher = (*MockLauncher)(nil)

func (m *MockLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Browser), args.Error(1)
}

func (m *MockLauncher) Connect(ctx context.Context, endpoint string, flask bool) (browser.Browser, error) {
	args := m.Called(ctx, endpoint, flask)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Browser), args.Error(1)
}
