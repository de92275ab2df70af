package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpDriver drives Chromium through chromedp.
type ChromedpDriver struct {
	Options LaunchOptions
}

// NewChromedpDriver creates a ChromedpDriver.
func NewChromedpDriver(opts LaunchOptions) *ChromedpDriver {
	return &ChromedpDriver{Options: opts}
}

func (d *ChromedpDriver) Name() string {
	return "chromedp"
}

// allocatorOptions returns the exec allocator flags for d.Options.
func (d *ChromedpDriver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)

	if !d.Options.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if d.Options.BinPath != "" {
		opts = append(opts, chromedp.ExecPath(d.Options.BinPath))
	}

	if !d.Options.RespectCertificateErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	if !d.Options.UseHTTP2 {
		opts = append(opts, chromedp.Flag("disable-http2", true))
	}

	return opts
}

// Launch starts the browser. Its lifetime is independent of ctx; it ends
// when the returned Browser is closed.
func (d *ChromedpDriver) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), d.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// the first Run on a fresh context starts the process
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &chromedpBrowser{ctx: browserCtx, cancel: cancelBrowser, cancelAlloc: cancelAlloc}, nil
}

type chromedpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

func (b *chromedpBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	return &chromedpContext{ctx: tabCtx, cancel: cancel, opts: opts}, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.cancelAlloc()
	return err
}

type chromedpContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ContextOptions

	mutex  sync.Mutex
	used   bool
	extras []context.CancelFunc
}

func (c *chromedpContext) NewPage(ctx context.Context) (Page, error) {
	c.mutex.Lock()
	tabCtx := c.ctx
	if c.used {
		var cancel context.CancelFunc
		tabCtx, cancel = chromedp.NewContext(c.ctx)
		c.extras = append(c.extras, cancel)
	}
	c.used = true
	c.mutex.Unlock()

	// the first Run must use the tab's own context, otherwise the target
	// would live only as long as the caller's deadline
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, err
	}

	page := &chromedpPage{ctx: tabCtx}

	runCtx, cancel := page.bind(ctx)
	defer cancel()

	var emulate []chromedp.EmulateViewportOption
	emulate = append(emulate, chromedp.EmulateScale(c.opts.PixelRatio))
	if c.opts.Mobile {
		emulate = append(emulate, chromedp.EmulateMobile)
	}
	if c.opts.Touch {
		emulate = append(emulate, chromedp.EmulateTouch)
	}

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(c.opts.Width), int64(c.opts.Height), emulate...),
	}
	if c.opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(c.opts.UserAgent))
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, err
	}

	return page, nil
}

// Close closes the tab and disposes its browser context.
func (c *chromedpContext) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cancel := range c.extras {
		cancel()
	}
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	return err
}

type chromedpPage struct {
	ctx context.Context
}

// bind derives a context from the tab that is also cancelled with ctx.
// Cancelling the derived context does not close the tab.
func (p *chromedpPage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromedpPage) eval(ctx context.Context, expr string, res interface{}) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expr, res))
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) (int, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	idle := make(chan struct{})
	var once sync.Once
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			once.Do(func() { close(idle) })
		}
	})

	err := chromedp.Run(runCtx,
		cdppage.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
	)
	if err != nil {
		if reason := netReason(err.Error()); reason != "" {
			return 0, &NetworkError{URL: url, Reason: reason}
		}
		return 0, err
	}

	select {
	case <-idle:
	case <-runCtx.Done():
		return 0, runCtx.Err()
	}

	var status int
	if err := chromedp.Run(runCtx, chromedp.Evaluate("("+documentStatusJS+")()", &status)); err != nil {
		return 0, err
	}
	return status, nil
}

// netReason extracts the net::ERR_* code from a chromedp page load error.
func netReason(msg string) string {
	i := strings.Index(msg, "net::ERR_")
	if i < 0 {
		return ""
	}
	return strings.Fields(msg[i:])[0]
}

func (p *chromedpPage) ScrollHeight(ctx context.Context) (int, error) {
	var height int
	err := p.eval(ctx, "("+scrollHeightJS+")()", &height)
	return height, err
}

func (p *chromedpPage) ScrollByViewport(ctx context.Context) error {
	return p.eval(ctx, "("+scrollByViewportJS+")()", nil)
}

func (p *chromedpPage) ScrollTo(ctx context.Context, y int) error {
	return p.eval(ctx, fmt.Sprintf("(%s)(%d)", scrollToJS, y), nil)
}

func (p *chromedpPage) AddStyle(ctx context.Context, css string) error {
	quoted, err := json.Marshal(css)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
	const style = document.createElement('style');
	style.textContent = %s;
	(document.head || document.documentElement).appendChild(style);
})()`, quoted)
	return p.eval(ctx, expr, nil)
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	var buf []byte
	// quality 100 makes chromedp emit PNG
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}
