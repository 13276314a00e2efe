// internal/browser/interfaces.go
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait for an element expires.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrNotFound is returned when a query matches nothing at the moment it runs.
	ErrNotFound = errors.New("element not found")
	// ErrClosed is returned by operations on a page or browser that was closed.
	ErrClosed = errors.New("browser target closed")
)

// Page is a borrowed handle to a single browser tab. Callers never own its
// lifecycle beyond the explicit Close.
type Page interface {
	// ID is the stable identifier of the underlying target.
	ID() string
	// URL returns the page's current address, fragment included.
	URL(ctx context.Context) (string, error)

	Goto(ctx context.Context, address string) error
	Reload(ctx context.Context) error
	SetViewport(ctx context.Context, width, height int64) error

	// Evaluate runs a JavaScript expression, awaiting a returned promise, and
	// decodes the result into res when res is non-nil.
	Evaluate(ctx context.Context, expression string, res interface{}) error
	// WaitForTimeout pauses for d unless ctx ends first.
	WaitForTimeout(ctx context.Context, d time.Duration) error

	// WaitVisible blocks until sel matches a visible element, failing with
	// ErrTimeout after timeout.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error
	// Exists reports whether sel matches any element right now.
	Exists(ctx context.Context, sel Selector) (bool, error)
	// Click waits up to timeout for sel to be visible and clicks it.
	Click(ctx context.Context, sel Selector, timeout time.Duration) error
	// Type waits up to timeout for sel, clears it and types text.
	Type(ctx context.Context, sel Selector, text string, timeout time.Duration) error
	// Texts returns the text content of every element matching sel.
	Texts(ctx context.Context, sel Selector) ([]string, error)

	Close(ctx context.Context) error
}

// PageInfo describes a page target as reported by a browser notification.
type PageInfo struct {
	ID  string
	URL string
}

// Browser is a connected browser session that owns a set of pages.
type Browser interface {
	// Pages returns every open page target.
	Pages(ctx context.Context) ([]Page, error)
	// NewPage opens a blank tab.
	NewPage(ctx context.Context) (Page, error)
	// OnPageCreated registers fn for page creation and address changes. The
	// callback runs on the event goroutine and must not block. The returned
	// function removes the registration.
	OnPageCreated(fn func(PageInfo)) (unsubscribe func())
	// IsFlask reports whether the restricted/advanced extension build is loaded.
	IsFlask() bool
	// Close tears the session down. For a launched browser this ends the
	// process. An attached browser is only released, as with Release.
	Close(ctx context.Context) error
	// Release drops the connection and leaves the browser and its tabs
	// running. A launched browser cannot outlive its session, so for one
	// Release is the same as Close.
	Release(ctx context.Context) error
}
