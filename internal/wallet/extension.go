// File: internal/wallet/extension.go
package wallet

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

const extensionsPage = "chrome://extensions"

// The extensions page is built from nested shadow roots.
var (
	devModeToggle   = browser.Pierce("#devMode")
	devModeEnabled  = browser.Pierce("#devMode[checked]")
	extensionNames  = browser.Pierce("#name-and-version div")
	extensionIDText = browser.Pierce("#extension-id")
)

var (
	metamaskName = regexp.MustCompile(`(?i)^metamask`)
	braavosName  = regexp.MustCompile(`(?i)^braavos`)
)

// ExtensionID reads the id of the first installed extension whose name
// matches name from the browser's extensions page, turning developer mode
// on if needed so ids are shown.
func ExtensionID(ctx context.Context, b browser.Browser, name *regexp.Regexp, timeout time.Duration) (id string, err error) {
	page, err := b.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open extensions page: %w", err)
	}
	defer func() {
		err = multierr.Append(err, page.Close(browser.Detach(ctx)))
	}()

	if err := page.Goto(ctx, extensionsPage); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, devModeToggle, timeout); err != nil {
		return "", fmt.Errorf("developer mode toggle: %w", err)
	}
	enabled, err := page.Exists(ctx, devModeEnabled)
	if err != nil {
		return "", err
	}
	if !enabled {
		if err := page.Click(ctx, devModeToggle, timeout); err != nil {
			return "", fmt.Errorf("failed to enable developer mode: %w", err)
		}
		if err := page.WaitVisible(ctx, extensionIDText, timeout); err != nil {
			return "", fmt.Errorf("extension ids not shown: %w", err)
		}
	}

	names, err := page.Texts(ctx, extensionNames)
	if err != nil {
		return "", err
	}
	ids, err := page.Texts(ctx, extensionIDText)
	if err != nil {
		return "", err
	}
	if len(names) != len(ids) {
		return "", fmt.Errorf("%w: %d names but %d ids on the extensions page, is developer mode on?",
			ErrExtensionNotFound, len(names), len(ids))
	}

	for i, n := range names {
		if !name.MatchString(strings.TrimSpace(n)) {
			continue
		}
		// Rendered as "ID: <id>".
		fields := strings.Fields(ids[i])
		if len(fields) < 2 {
			return "", fmt.Errorf("%w: unexpected id text %q", ErrExtensionNotFound, ids[i])
		}
		return fields[1], nil
	}
	return "", fmt.Errorf("%w: no extension named like %q", ErrExtensionNotFound, name)
}

// ExtensionHomeURL returns the address of the extension's main view.
func ExtensionHomeURL(extensionName, id string) (string, error) {
	switch {
	case metamaskName.MatchString(extensionName):
		return fmt.Sprintf("chrome-extension://%s/home.html", id), nil
	case braavosName.MatchString(extensionName):
		return fmt.Sprintf("chrome-extension://%s/index.html", id), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownExtension, extensionName)
	}
}

// ResolveHomeURL looks the extension up by name and returns its home address.
func ResolveHomeURL(ctx context.Context, b browser.Browser, extensionName string, timeout time.Duration) (string, error) {
	re, err := regexp.Compile(extensionName)
	if err != nil {
		return "", fmt.Errorf("invalid extension name %q: %w", extensionName, err)
	}
	id, err := ExtensionID(ctx, b, re, timeout)
	if err != nil {
		return "", err
	}
	return ExtensionHomeURL(extensionName, id)
}
