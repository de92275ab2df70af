package screener

import (
	"strconv"
	"time"

	"github.com/root4loot/goutils/sliceutil"
	"github.com/root4loot/rscreener/pkg/devices"
)

// CaptureConfig holds the per-capture settings shared by every device in a run.
type CaptureConfig struct {
	Timeout              time.Duration // Total budget for one capture attempt
	PostLoadWait         time.Duration // Settle delay after network idle
	ScrollForLazyContent bool          // Scroll the page before capturing
	MaxScrollIterations  int           // Upper bound on reveal scrolls
	HideCookieBanners    bool          // Inject the cookie banner stylesheet
	IgnoreStatusCodes    []int         // 4xx/5xx statuses that should still be captured
}

// ExecOptions controls fan-out across devices.
type ExecOptions struct {
	Concurrency int           // Max captures in flight
	MaxAttempts int           // Attempts per device, including the first
	RetryDelay  time.Duration // Wait between attempts
	OnProgress  ProgressFunc  // Optional, informational only
}

// ProgressFunc is called once per finished device, in completion order.
type ProgressFunc func(completed, total int, outcome ExecutionOutcome)

// CaptureRequest is one (url, device) capture.
type CaptureRequest struct {
	URL    string
	Device devices.Device
	CaptureConfig
}

// NewCaptureConfig returns a CaptureConfig initialized with default values.
func NewCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Timeout:              30 * time.Second,
		PostLoadWait:         500 * time.Millisecond,
		ScrollForLazyContent: true,
		MaxScrollIterations:  10,
		HideCookieBanners:    true,
	}
}

// NewExecOptions returns an ExecOptions initialized with default values.
func NewExecOptions() ExecOptions {
	return ExecOptions{
		Concurrency: 10,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Ignores reports whether status is in IgnoreStatusCodes.
func (c CaptureConfig) Ignores(status int) bool {
	codes := make([]string, len(c.IgnoreStatusCodes))
	for i, code := range c.IgnoreStatusCodes {
		codes[i] = strconv.Itoa(code)
	}
	return sliceutil.Contains(codes, strconv.Itoa(status))
}

// Request builds the CaptureRequest for url on device.
func (c CaptureConfig) Request(url string, device devices.Device) CaptureRequest {
	return CaptureRequest{URL: url, Device: device, CaptureConfig: c}
}

// BudgetSplit divides a capture's timeout between its three phases.
// The shares were tuned by hand and are not load-bearing.
type BudgetSplit struct {
	Navigation float64
	Reveal     float64
	Screenshot float64
}

// DefaultBudgetSplit gives navigation 60%, reveal and settle 25%, screenshot 15%.
var DefaultBudgetSplit = BudgetSplit{Navigation: 0.60, Reveal: 0.25, Screenshot: 0.15}

// Apply returns the navigation, reveal and screenshot budgets for total.
func (b BudgetSplit) Apply(total time.Duration) (navigation, reveal, screenshot time.Duration) {
	share := func(f float64) time.Duration {
		return time.Duration(float64(total) * f)
	}
	return share(b.Navigation), share(b.Reveal), share(b.Screenshot)
}
