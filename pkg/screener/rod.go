package screener

import (
	"context"
	"errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/root4loot/goutils/log"
	"github.com/ysmood/gson"
)

// LaunchOptions contains the browser process flags shared by all drivers.
type LaunchOptions struct {
	Headless                 bool   // Run without a window
	BinPath                  string // Browser binary, looked up when empty
	RespectCertificateErrors bool   // Fail on invalid certificates instead of ignoring them
	UseHTTP2                 bool   // Leave HTTP2 enabled
}

// NewLaunchOptions returns LaunchOptions initialized with default values.
func NewLaunchOptions() LaunchOptions {
	return LaunchOptions{
		Headless: true,
	}
}

// NewDriver returns the driver registered under name ("rod" or "chromedp").
func NewDriver(name string, opts LaunchOptions) (Driver, error) {
	switch name {
	case "", "rod":
		return NewRodDriver(opts), nil
	case "chromedp":
		return NewChromedpDriver(opts), nil
	default:
		return nil, errors.New("unknown engine " + name + " (want rod or chromedp)")
	}
}

// RodDriver drives Chromium through go-rod.
type RodDriver struct {
	Options LaunchOptions
}

// NewRodDriver creates a RodDriver.
func NewRodDriver(opts LaunchOptions) *RodDriver {
	return &RodDriver{Options: opts}
}

func (d *RodDriver) Name() string {
	return "rod"
}

// Launch starts a browser process and connects to it.
func (d *RodDriver) Launch(ctx context.Context) (Browser, error) {
	path := d.Options.BinPath
	if path == "" {
		path, _ = launcher.LookPath()
	}

	l := launcher.New().
		Headless(d.Options.Headless).
		NoSandbox(true)

	if path != "" {
		l = l.Bin(path)
	}

	if !d.Options.RespectCertificateErrors {
		l.Set("ignore-certificate-errors")
	}

	if !d.Options.UseHTTP2 {
		l.Set("disable-http2")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}

	log.Debugf("Connected to browser at %s", controlURL)
	return &rodBrowser{browser: browser, launcher: l}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (b *rodBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, err
	}
	// detach from ctx so later calls aren't bound to the caller's deadline
	return &rodContext{browser: incognito.Context(context.Background()), opts: opts}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodContext struct {
	browser *rod.Browser
	opts    ContextOptions
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.opts.Width,
		Height:            c.opts.Height,
		DeviceScaleFactor: c.opts.PixelRatio,
		Mobile:            c.opts.Mobile,
	})
	if err != nil {
		return nil, err
	}

	if c.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.opts.UserAgent}); err != nil {
			return nil, err
		}
	}

	if c.opts.Touch {
		err := proto.EmulationSetTouchEmulationEnabled{
			Enabled:        true,
			MaxTouchPoints: gson.Int(5),
		}.Call(page)
		if err != nil {
			return nil, err
		}
	}

	return &rodPage{page: page.Context(context.Background())}, nil
}

// Close disposes the incognito browser context and every page in it.
func (c *rodContext) Close() error {
	return c.browser.Close()
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) (int, error) {
	page := p.page.Context(ctx)

	err := awaitNavigation(ctx, func(ctx context.Context) func() {
		return p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	}, func() error {
		return page.Navigate(url)
	})
	if err != nil {
		var navErr *rod.ErrNavigation
		if errors.As(err, &navErr) {
			return 0, &NetworkError{URL: url, Reason: navErr.Reason}
		}
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := page.Eval(documentStatusJS)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// awaitNavigation registers a network idle listener, runs navigate and waits
// for the listener. The listener's context is cancelled on every return, so
// a failed navigation does not leave it subscribed.
func awaitNavigation(ctx context.Context, listen func(context.Context) func(), navigate func() error) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wait := listen(waitCtx)
	if err := navigate(); err != nil {
		return err
	}
	wait()

	return nil
}

func (p *rodPage) ScrollHeight(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(scrollHeightJS)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *rodPage) ScrollByViewport(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollByViewportJS)
	return err
}

func (p *rodPage) ScrollTo(ctx context.Context, y int) error {
	_, err := p.page.Context(ctx).Eval(scrollToJS, y)
	return err
}

func (p *rodPage) AddStyle(ctx context.Context, css string) error {
	return p.page.Context(ctx).AddStyleTag("", css)
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
