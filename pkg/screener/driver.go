package screener

import (
	"context"

	"github.com/root4loot/rscreener/pkg/devices"
)

// Driver starts a rendering engine. RodDriver and ChromedpDriver are the
// two implementations shipped with the package.
type Driver interface {
	Name() string
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running engine process.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error)
	Close() error
}

// BrowserContext is an isolated viewport context (own cookies, storage and
// device emulation). Closing it closes every page it opened.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Scroller is the part of a page the lazy-content revealer needs.
type Scroller interface {
	ScrollHeight(ctx context.Context) (int, error)
	ScrollByViewport(ctx context.Context) error
	ScrollTo(ctx context.Context, y int) error
}

// Page is a single tab inside a BrowserContext.
type Page interface {
	Scroller

	// Navigate loads url and returns once the network is idle. The returned
	// status is the main document's HTTP status, or 0 when it is unknown.
	Navigate(ctx context.Context, url string) (status int, err error)

	// AddStyle injects a stylesheet into the current document.
	AddStyle(ctx context.Context, css string) error

	// Screenshot returns a PNG of the entire scrollable document.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Scripts shared by the drivers. Each is a function expression.
const (
	documentStatusJS = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return nav && nav.responseStatus ? nav.responseStatus : 0;
}`
	scrollHeightJS = `() => Math.max(
	document.body ? document.body.scrollHeight : 0,
	document.documentElement ? document.documentElement.scrollHeight : 0)`
	scrollByViewportJS = `() => window.scrollBy(0, window.innerHeight)`
	scrollToJS         = `(y) => window.scrollTo(0, y)`
)

// ContextOptions configures device emulation for a BrowserContext.
type ContextOptions struct {
	Width      int
	Height     int
	PixelRatio float64
	UserAgent  string
	Mobile     bool
	Touch      bool
}

// ContextOptionsFor derives emulation settings from a device profile:
// phones get mobile+touch, tablets touch only, desktops neither.
func ContextOptionsFor(device devices.Device) ContextOptions {
	opts := ContextOptions{
		Width:      device.Width,
		Height:     device.Height,
		PixelRatio: device.PixelRatio,
		UserAgent:  device.UserAgent,
	}

	switch device.Category {
	case devices.Phone:
		opts.Mobile = true
		opts.Touch = true
	case devices.Tablet:
		opts.Touch = true
	}

	if opts.PixelRatio <= 0 {
		opts.PixelRatio = 1
	}

	return opts
}
