// File: internal/wallet/state.go
package wallet

import (
	"context"
	"fmt"
	"regexp"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

// State is the wallet screen a page shows, derived from its address alone.
type State int

const (
	Unknown State = iota
	Unlocked
	LockScreen
	SetupScreen
	RestoreVault
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockScreen:
		return "lock-screen"
	case SetupScreen:
		return "setup-screen"
	case RestoreVault:
		return "restore-vault"
	default:
		return "unknown"
	}
}

// The patterns only look at the tail of the address. Trailing '#' characters
// are tolerated since the extension sometimes appends an empty fragment.
var (
	restoreVaultPattern = regexp.MustCompile(`#restore-vault#*$`)
	lockScreenPattern   = regexp.MustCompile(`#unlock#*$`)
	setupScreenPattern  = regexp.MustCompile(`welcome#*$`)
	unlockedPattern     = regexp.MustCompile(`home\.html#*$`)
)

func IsRestoreVault(address string) bool { return restoreVaultPattern.MatchString(address) }
func IsLockScreen(address string) bool   { return lockScreenPattern.MatchString(address) }
func IsSetupScreen(address string) bool  { return setupScreenPattern.MatchString(address) }
func IsUnlocked(address string) bool     { return unlockedPattern.MatchString(address) }

// Classify maps an address to a State, checking restore-vault, lock screen,
// setup screen and unlocked in that order.
func Classify(address string) State {
	switch {
	case IsRestoreVault(address):
		return RestoreVault
	case IsLockScreen(address):
		return LockScreen
	case IsSetupScreen(address):
		return SetupScreen
	case IsUnlocked(address):
		return Unlocked
	default:
		return Unknown
	}
}

// Probe reads the page's current address and classifies it. It never
// navigates, so repeated calls on an unchanged page agree.
func Probe(ctx context.Context, page browser.Page) (State, error) {
	address, err := page.URL(ctx)
	if err != nil {
		return Unknown, fmt.Errorf("failed to read wallet page address: %w", err)
	}
	return Classify(address), nil
}
