package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/root4loot/goutils/log"
)

// CaptureOutcome is the result of one capture attempt. Image is set when
// Success is true, Error otherwise.
type CaptureOutcome struct {
	Success    bool
	DeviceName string
	Image      []byte
	Error      string
}

func failed(deviceName string, err error) CaptureOutcome {
	msg := rootMessage(err)
	if msg == "" {
		msg = "unknown capture error"
	}
	return CaptureOutcome{DeviceName: deviceName, Error: msg}
}

// Capture takes a full-page screenshot of req.URL emulating req.Device.
// It never panics and never returns an error: every failure, including a
// panic inside the driver, becomes a failed outcome. The browser context
// acquired for the capture is always released before returning.
func Capture(ctx context.Context, m *Manager, req CaptureRequest) (outcome CaptureOutcome) {
	name := req.Device.Name

	defer func() {
		if r := recover(); r != nil {
			outcome = failed(name, fmt.Errorf("capture panicked: %v", r))
		}
	}()

	navBudget, revealBudget, shotBudget := DefaultBudgetSplit.Apply(req.Timeout)

	session, err := m.NewContext(ctx, req.Device)
	if err != nil {
		return failed(name, err)
	}
	defer func() {
		if err := m.CloseContext(session); err != nil {
			log.Debugf("Error closing context for %s: %v", name, err)
		}
	}()

	image, err := runCapture(ctx, session, req, navBudget, revealBudget, shotBudget)
	if err != nil {
		log.Debugf("Capture of %s on %s failed: %v", req.URL, name, err)
		return failed(name, err)
	}

	return CaptureOutcome{Success: true, DeviceName: name, Image: image}
}

func runCapture(ctx context.Context, session *Session, req CaptureRequest, navBudget, revealBudget, shotBudget time.Duration) ([]byte, error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not open page: %w", err)
	}

	log.Debugf("Navigating to %s as %s (budget %v)", req.URL, req.Device.Name, navBudget)

	navCtx, cancel := context.WithTimeout(ctx, navBudget)
	status, err := page.Navigate(navCtx, req.URL)
	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded)
	cancel()

	if timedOut {
		return nil, &NavigationTimeoutError{URL: req.URL, Budget: navBudget}
	}
	if err != nil {
		return nil, err
	}
	if status >= 400 && !req.Ignores(status) {
		return nil, &HTTPStatusError{URL: req.URL, StatusCode: status}
	}

	if req.PostLoadWait > 0 && !sleep(ctx, req.PostLoadWait) {
		return nil, ctx.Err()
	}

	if req.HideCookieBanners {
		if err := page.AddStyle(ctx, CookieBannerCSS(CookieBannerSelectors)); err != nil {
			log.Debugf("Could not hide cookie banners on %s: %v", req.URL, err)
		}
	}

	if req.ScrollForLazyContent {
		revealCtx, cancel := context.WithTimeout(ctx, revealBudget)
		stats := Reveal(revealCtx, page, req.MaxScrollIterations, revealBudget)
		cancel()
		log.Debugf("Revealed %s on %s in %d scrolls (height %d)", req.URL, req.Device.Name, stats.Iterations, stats.FinalHeight)
	}

	shotCtx, cancel := context.WithTimeout(ctx, shotBudget)
	defer cancel()

	if err := page.AddStyle(shotCtx, freezeCSS); err != nil {
		log.Debugf("Could not freeze animations on %s: %v", req.URL, err)
	}

	image, err := page.Screenshot(shotCtx)
	if errors.Is(shotCtx.Err(), context.DeadlineExceeded) {
		return nil, &ScreenshotTimeoutError{Budget: shotBudget}
	}
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	if len(image) == 0 {
		return nil, errors.New("screenshot failed: empty image")
	}

	return image, nil
}
