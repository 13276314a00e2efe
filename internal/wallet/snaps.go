// File: internal/wallet/snaps.go
package wallet

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InstallSnapOptions tunes a snap installation.
type InstallSnapOptions struct {
	// InstallationURL is a page exposing the wallet provider. Empty uses the
	// configured snap install address.
	InstallationURL string
	// Version is a semver range passed with the request.
	Version string
}

// Snap approval prompts on the wallet page.
var (
	snapConnectButton = browser.TestID("page-container-footer-next")
	snapInstallScroll = browser.TestID("snap-install-scroll")
	snapPermission    = browser.CSS(".snap-install-warning input[type=checkbox]")
	snapWarningAccept = browser.TestID("snap-install-warning-modal-confirm")
	snapOkButton      = browser.Text("button", "Ok")
)

// pendingInstallVar holds the request promise on the dapp page between
// firing it and collecting its result.
const pendingInstallVar = "window.__walletctlSnapInstall"

// SnapIDFromLocation turns a package name, a local address or an already
// prefixed id into a snap id.
func SnapIDFromLocation(location string) string {
	switch {
	case strings.HasPrefix(location, "npm:"), strings.HasPrefix(location, "local:"):
		return location
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return "local:" + location
	default:
		return "npm:" + location
	}
}

// InstallSnap requests the snap from a dapp page, approves the prompts on
// the wallet page and returns the installed snap id.
func (m *MetaMask) InstallSnap(ctx context.Context, idOrLocation string, opts InstallSnapOptions) (id string, err error) {
	id = SnapIDFromLocation(idOrLocation)
	installURL := opts.InstallationURL
	if installURL == "" {
		installURL = m.timing.SnapInstallURL
	}
	logger := m.logger.With(zap.String("snap_id", id))
	logger.Info("Installing snap.", zap.String("installation_url", installURL))

	dapp, err := m.browser.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open installation page: %w", err)
	}
	defer func() {
		err = multierr.Append(err, dapp.Close(browser.Detach(ctx)))
	}()

	if err := dapp.Goto(ctx, installURL); err != nil {
		return "", err
	}

	params, err := json.Marshal(map[string]map[string]string{id: versionParams(opts.Version)})
	if err != nil {
		return "", err
	}
	request := fmt.Sprintf(`void (%s = window.ethereum.request({method: "wallet_requestSnaps", params: %s}))`, pendingInstallVar, params)
	if err := dapp.Evaluate(ctx, request, nil); err != nil {
		return "", fmt.Errorf("failed to request snap: %w", err)
	}

	if err := m.approveSnap(ctx); err != nil {
		return "", fmt.Errorf("failed to approve snap %s: %w", id, err)
	}

	var result map[string]interface{}
	if err := dapp.Evaluate(ctx, pendingInstallVar, &result); err != nil {
		return "", fmt.Errorf("snap request failed: %w", err)
	}
	if err := checkSnapResult(id, result); err != nil {
		return "", err
	}
	logger.Info("Snap installed.")
	return id, nil
}

func versionParams(version string) map[string]string {
	if version == "" {
		return map[string]string{}
	}
	return map[string]string{"version": version}
}

// approveSnap confirms the connect, permission and install prompts.
func (m *MetaMask) approveSnap(ctx context.Context) error {
	if err := m.page.Reload(ctx); err != nil {
		return err
	}
	if err := m.guard.WaitForOverlay(ctx, m.page); err != nil {
		return err
	}
	// Connect.
	if err := m.page.Click(ctx, snapConnectButton, m.timing.ActionTimeout); err != nil {
		return err
	}

	// Long permission lists must be scrolled to the end first.
	if _, err := DismissRepeatedly(ctx, m.page, snapInstallScroll, 1, m.timing.TooltipTimeout); err != nil {
		return err
	}
	// Install.
	if err := m.page.Click(ctx, snapConnectButton, m.timing.ActionTimeout); err != nil {
		return err
	}

	// Snaps with sensitive permissions ask for an extra acknowledgement.
	if needs, err := m.page.Exists(ctx, snapPermission); err != nil {
		return err
	} else if needs {
		if _, err := DismissRepeatedly(ctx, m.page, snapPermission, 1, m.timing.PopupTimeout); err != nil {
			return err
		}
		if err := m.page.Click(ctx, snapWarningAccept, m.timing.ActionTimeout); err != nil {
			return err
		}
	}

	return m.page.Click(ctx, snapOkButton, m.timing.ActionTimeout)
}

func checkSnapResult(id string, result map[string]interface{}) error {
	entry, ok := result[id]
	if !ok {
		return fmt.Errorf("%w: %s missing from response", ErrSnapNotInstalled, id)
	}
	fields, _ := entry.(map[string]interface{})
	if reason, failed := fields["error"]; failed && reason != nil {
		msg, err := json.MarshalToString(reason)
		if err != nil {
			msg = fmt.Sprint(reason)
		}
		return fmt.Errorf("%w: %s: %s", ErrSnapNotInstalled, id, msg)
	}
	return nil
}
