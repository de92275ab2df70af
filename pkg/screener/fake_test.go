package screener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// fakeDriver is an in-memory engine. Pages are built by newPage so each
// test decides how navigation, scrolling and screenshots behave.
type fakeDriver struct {
	launchErr error
	newPage   func() *fakePage

	launches atomic.Int32
	created  atomic.Int32
	closed   atomic.Int32

	browserClosed atomic.Int32
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Launch(ctx context.Context) (Browser, error) {
	d.launches.Add(1)
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	return &fakeBrowser{driver: d}, nil
}

type fakeBrowser struct {
	driver *fakeDriver
}

func (b *fakeBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	b.driver.created.Add(1)
	return &fakeContext{driver: b.driver, opts: opts}, nil
}

func (b *fakeBrowser) Close() error {
	b.driver.browserClosed.Add(1)
	return nil
}

type fakeContext struct {
	driver *fakeDriver
	opts   ContextOptions
}

func (c *fakeContext) NewPage(ctx context.Context) (Page, error) {
	if c.driver.newPage == nil {
		return newStaticPage(1000), nil
	}
	return c.driver.newPage(), nil
}

func (c *fakeContext) Close() error {
	c.driver.closed.Add(1)
	return nil
}

// fakePage simulates a document whose height can grow as it is scrolled.
type fakePage struct {
	mutex sync.Mutex

	status      int
	navigateErr error
	navigate    func(ctx context.Context) error
	image       []byte
	shotErr     error
	screenshot  func(ctx context.Context) ([]byte, error)
	panicOnShot bool

	heights   []int // height after each scroll; the last value repeats
	scrollErr error

	scrolls   int
	scrollY   int
	styles    []string
	scrollTos []int
}

func newStaticPage(height int) *fakePage {
	return &fakePage{status: 200, image: []byte("png"), heights: []int{height}}
}

func (p *fakePage) Navigate(ctx context.Context, url string) (int, error) {
	if p.navigate != nil {
		if err := p.navigate(ctx); err != nil {
			return 0, err
		}
	}
	if p.navigateErr != nil {
		return 0, p.navigateErr
	}
	return p.status, nil
}

func (p *fakePage) height() int {
	if p.scrolls < len(p.heights) {
		return p.heights[p.scrolls]
	}
	return p.heights[len(p.heights)-1]
}

func (p *fakePage) ScrollHeight(ctx context.Context) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.height(), nil
}

func (p *fakePage) ScrollByViewport(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	p.scrollY += 800
	return nil
}

func (p *fakePage) ScrollTo(ctx context.Context, y int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.scrollY = y
	p.scrollTos = append(p.scrollTos, y)
	return nil
}

func (p *fakePage) AddStyle(ctx context.Context, css string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.styles = append(p.styles, css)
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.panicOnShot {
		panic("renderer crashed")
	}
	if p.screenshot != nil {
		return p.screenshot(ctx)
	}
	return p.image, p.shotErr
}

// blockUntilDone waits for ctx, like a navigation that never goes idle.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var errConnectionReset = errors.New("net::ERR_CONNECTION_RESET")

func init() {
	RevealSettle = time.Millisecond
}

func newTestManager(d *fakeDriver) *Manager {
	m := NewManager(d)
	m.exit = func(int) {}
	return m
}
