// internal/browser/browsertest/fake.go

// Package browsertest provides in-memory Browser and Page doubles that record
// interactions, so flows can be driven without a live browser.
package browsertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xkilldash9x/walletctl/internal/browser"
)

// Page is a scripted browser.Page.
//
// Clicks succeed by default. Selectors registered with SetTransient are only
// present a fixed number of times; once used up, Click reports
// browser.ErrTimeout and Exists reports false.
type Page struct {
	mu sync.Mutex

	id     string
	url    string
	closed bool
	owner  *Browser

	reloads   int
	viewport  [2]int64
	evals     []string
	sleeps    []time.Duration
	clicks    map[string]int
	typed     map[string]string
	order     []string
	transient map[string]int
	present   map[string]bool
	texts     map[string][]string
	clickErr  map[string]error

	// EvalResult, when set, fills res for Evaluate.
	EvalResult func(expression string, res interface{}) error
	// OnGoto runs after the address changed.
	OnGoto func(p *Page, address string)
	// OnReload runs after a reload is recorded.
	OnReload func(p *Page)
	// OnClick runs before the default click handling. A non-nil error is
	// returned to the caller.
	OnClick func(p *Page, sel browser.Selector) error
	// OnExists runs before every presence check.
	OnExists func(p *Page, sel browser.Selector)
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a detached page at address.
func NewPage(id, address string) *Page {
	return &Page{
		id:        id,
		url:       address,
		clicks:    make(map[string]int),
		typed:     make(map[string]string),
		transient: make(map[string]int),
		present:   make(map[string]bool),
		texts:     make(map[string][]string),
		clickErr:  make(map[string]error),
	}
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return p.url, nil
}

// SetURL changes the address without recording a navigation.
func (p *Page) SetURL(address string) {
	p.mu.Lock()
	p.url = address
	p.mu.Unlock()
}

func (p *Page) Goto(ctx context.Context, address string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	p.url = address
	p.order = append(p.order, "goto:"+address)
	hook := p.OnGoto
	p.mu.Unlock()

	if hook != nil {
		hook(p, address)
	}
	if p.owner != nil {
		p.owner.Emit(browser.PageInfo{ID: p.id, URL: address})
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	p.reloads++
	p.order = append(p.order, "reload")
	hook := p.OnReload
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) SetViewport(ctx context.Context, width, height int64) error {
	p.mu.Lock()
	p.viewport = [2]int64{width, height}
	p.mu.Unlock()
	return nil
}

func (p *Page) Evaluate(ctx context.Context, expression string, res interface{}) error {
	p.mu.Lock()
	p.evals = append(p.evals, expression)
	fn := p.EvalResult
	p.mu.Unlock()
	if fn != nil {
		return fn(expression, res)
	}
	return nil
}

func (p *Page) WaitForTimeout(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.sleeps = append(p.sleeps, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) WaitVisible(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.transient[sel.String()]; ok && n == 0 {
		return fmt.Errorf("%w: %s", browser.ErrTimeout, sel)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, sel browser.Selector) (bool, error) {
	p.mu.Lock()
	hook := p.OnExists
	p.mu.Unlock()
	if hook != nil {
		hook(p, sel)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.transient[sel.String()]; ok {
		return n > 0, nil
	}
	return p.present[sel.String()], nil
}

func (p *Page) Click(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		if err := hook(p, sel); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	key := sel.String()
	if err, ok := p.clickErr[key]; ok {
		return err
	}
	if n, ok := p.transient[key]; ok {
		if n == 0 {
			return fmt.Errorf("%w: %s after %v", browser.ErrTimeout, sel, timeout)
		}
		p.transient[key] = n - 1
	}
	p.clicks[key]++
	p.order = append(p.order, "click:"+key)
	return nil
}

func (p *Page) Type(ctx context.Context, sel browser.Selector, text string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.clickErr[sel.String()]; ok {
		return err
	}
	p.typed[sel.String()] = text
	p.order = append(p.order, "type:"+sel.String())
	return nil
}

func (p *Page) Texts(ctx context.Context, sel browser.Selector) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts[sel.String()]...), nil
}

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// SetTransient makes sel present for exactly n clicks.
func (p *Page) SetTransient(sel browser.Selector, n int) {
	p.mu.Lock()
	p.transient[sel.String()] = n
	p.mu.Unlock()
}

// SetPresent controls what Exists reports for sel.
func (p *Page) SetPresent(sel browser.Selector, present bool) {
	p.mu.Lock()
	p.present[sel.String()] = present
	p.mu.Unlock()
}

// SetTexts sets the texts returned for sel.
func (p *Page) SetTexts(sel browser.Selector, texts ...string) {
	p.mu.Lock()
	p.texts[sel.String()] = texts
	p.mu.Unlock()
}

// FailOn makes clicks and typing on sel return err.
func (p *Page) FailOn(sel browser.Selector, err error) {
	p.mu.Lock()
	p.clickErr[sel.String()] = err
	p.mu.Unlock()
}

// Clicks returns how often sel was clicked.
func (p *Page) Clicks(sel browser.Selector) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[sel.String()]
}

// Typed returns the last text typed into sel.
func (p *Page) Typed(sel browser.Selector) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[sel.String()]
}

// Reloads returns the number of reloads.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Viewport returns the last viewport set.
func (p *Page) Viewport() (int64, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport[0], p.viewport[1]
}

// Evals returns every evaluated expression in order.
func (p *Page) Evals() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evals...)
}

// Sleeps returns every WaitForTimeout duration in order.
func (p *Page) Sleeps() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.sleeps...)
}

// Actions returns navigations, reloads, clicks and typing in order.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Browser is a scripted browser.Browser.
type Browser struct {
	mu        sync.Mutex
	pages     []*Page
	listeners map[int]func(browser.PageInfo)
	next      int
	seq       int
	flask     bool
	closed    bool
	released  bool

	// OnNewPage runs for every page opened through NewPage.
	OnNewPage func(p *Page)
}

var _ browser.Browser = (*Browser)(nil)

// NewBrowser returns a browser holding pages at the given addresses.
func NewBrowser(flask bool, addresses ...string) *Browser {
	b := &Browser{flask: flask, listeners: make(map[int]func(browser.PageInfo))}
	for _, a := range addresses {
		b.attach(a)
	}
	return b
}

func (b *Browser) attach(address string) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	p := NewPage(fmt.Sprintf("page-%d", b.seq), address)
	p.owner = b
	b.pages = append(b.pages, p)
	return p
}

// AddPage opens a page at address and notifies listeners.
func (b *Browser) AddPage(address string) *Page {
	p := b.attach(address)
	b.Emit(browser.PageInfo{ID: p.id, URL: address})
	return p
}

// Emit delivers info to every listener.
func (b *Browser) Emit(info browser.PageInfo) {
	b.mu.Lock()
	keys := make([]int, 0, len(b.listeners))
	for k := range b.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(browser.PageInfo), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, b.listeners[k])
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(info)
	}
}

// Listeners returns the number of active page listeners.
func (b *Browser) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// All returns every page ever opened, closed ones included.
func (b *Browser) All() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) Pages(ctx context.Context) ([]browser.Page, error) {
	b.mu.Lock()
	all := append([]*Page(nil), b.pages...)
	b.mu.Unlock()

	out := make([]browser.Page, 0, len(all))
	for _, p := range all {
		if !p.Closed() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	p := b.AddPage("about:blank")
	b.mu.Lock()
	hook := b.OnNewPage
	b.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return p, nil
}

func (b *Browser) OnPageCreated(fn func(browser.PageInfo)) func() {
	b.mu.Lock()
	key := b.next
	b.next++
	b.listeners[key] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, key)
		b.mu.Unlock()
	}
}

func (b *Browser) IsFlask() bool { return b.flask }

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Release records that the session was let go without closing the browser.
func (b *Browser) Release(ctx context.Context) error {
	b.mu.Lock()
	b.released = true
	b.mu.Unlock()
	return nil
}

// Released reports whether Release was called.
func (b *Browser) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
