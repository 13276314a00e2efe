// File: internal/wallet/acquire.go
package wallet

import (
	"context"
	"fmt"
	"regexp"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

// Acquire returns the first open page whose address matches pattern. When
// none exists it waits for a page notification that matches and rescans
// every open page, since the notified page may already have moved on and a
// matching page may have appeared before the subscription was in place.
//
// There is no internal deadline; ctx bounds the wait.
func Acquire(ctx context.Context, b browser.Browser, pattern *regexp.Regexp) (browser.Page, error) {
	// Subscribe before the first scan so a page created in between still
	// wakes us up.
	notify := make(chan struct{}, 1)
	unsubscribe := b.OnPageCreated(func(info browser.PageInfo) {
		if !pattern.MatchString(info.URL) {
			return
		}
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		page, err := findPage(ctx, b, pattern)
		if err != nil || page != nil {
			return page, err
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for page matching %q: %w", pattern, ctx.Err())
		}
	}
}

// HomePattern matches homeURL and every address that extends it, such as
// its fragment routes.
func HomePattern(homeURL string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(homeURL))
}

func findPage(ctx context.Context, b browser.Browser, pattern *regexp.Regexp) (browser.Page, error) {
	pages, err := b.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	for _, p := range pages {
		address, err := p.URL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The tab went away between listing and reading.
			continue
		}
		if pattern.MatchString(address) {
			return p, nil
		}
	}
	return nil, nil
}
