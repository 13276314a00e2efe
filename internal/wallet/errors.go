// File: internal/wallet/errors.go
package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotFound means no wallet UI state matched the acquired page.
	ErrWalletNotFound = errors.New("wallet not found in opened tabs")
	// ErrExtensionNotFound means the extension could not be located on the
	// browser's extensions page.
	ErrExtensionNotFound = errors.New("extension not found")
	// ErrUnknownExtension means no home page layout is known for the extension.
	ErrUnknownExtension = errors.New("no home page known for extension")
	// ErrSnapNotInstalled means the wallet answered the install request
	// without the requested snap.
	ErrSnapNotInstalled = errors.New("snap was not installed")
)

// StepError reports which setup step failed. The cause stays reachable
// through errors.Is and errors.As.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("setup step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
