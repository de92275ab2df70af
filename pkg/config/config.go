// Package config holds the settings of a capture run: defaults, an
// optional YAML file that overrides them, and argument validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/root4loot/goutils/sliceutil"
	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/screener"
	"gopkg.in/yaml.v3"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 50
)

// Config is a capture run. Durations are milliseconds so the YAML file
// and the command line use the same units.
type Config struct {
	Engine              string           `yaml:"engine"`
	Concurrency         int              `yaml:"concurrency"`
	Timeout             int              `yaml:"timeout"`
	Wait                int              `yaml:"wait"`
	MaxAttempts         int              `yaml:"max_attempts"`
	RetryDelay          int              `yaml:"retry_delay"`
	Scroll              bool             `yaml:"scroll"`
	MaxScrollIterations int              `yaml:"max_scroll_iterations"`
	HideCookieBanners   bool             `yaml:"hide_cookie_banners"`
	IgnoreStatusCodes   []int            `yaml:"ignore_status_codes"`
	Output              string           `yaml:"output"`
	Pages               []string         `yaml:"pages"`
	Categories          []string         `yaml:"categories"`
	Imprint             bool             `yaml:"imprint"`
	AvoidDuplicates     bool             `yaml:"avoid_duplicates"`
	DuplicateThreshold  int              `yaml:"duplicate_threshold"`
	Headless            bool             `yaml:"headless"`
	BrowserPath         string           `yaml:"browser_path"`
	UseHTTP2            bool             `yaml:"use_http2"`
	RespectCertErrors   bool             `yaml:"respect_cert_errors"`
	Devices             []devices.Device `yaml:"devices"` // Extra device profiles
}

// ValidationError is returned for bad arguments, as opposed to failures
// while running.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Default returns a Config initialized with default values.
func Default() Config {
	capture := screener.NewCaptureConfig()
	exec := screener.NewExecOptions()

	return Config{
		Engine:              "rod",
		Concurrency:         exec.Concurrency,
		Timeout:             int(capture.Timeout.Milliseconds()),
		Wait:                int(capture.PostLoadWait.Milliseconds()),
		MaxAttempts:         exec.MaxAttempts,
		RetryDelay:          int(exec.RetryDelay.Milliseconds()),
		Scroll:              capture.ScrollForLazyContent,
		MaxScrollIterations: capture.MaxScrollIterations,
		HideCookieBanners:   capture.HideCookieBanners,
		Output:              "./screenshots",
		DuplicateThreshold:  94,
		Headless:            true,
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the
// file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the numeric settings and the engine name.
func (c Config) Validate() error {
	if err := ValidateConcurrency(c.Concurrency); err != nil {
		return err
	}
	if err := ValidateWait(c.Wait); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: fmt.Sprintf("Timeout must be a positive number of milliseconds, got %d", c.Timeout)}
	}
	if c.MaxAttempts < 1 {
		return &ValidationError{Field: "max_attempts", Message: fmt.Sprintf("Max attempts must be at least 1, got %d", c.MaxAttempts)}
	}
	if c.RetryDelay < 0 {
		return &ValidationError{Field: "retry_delay", Message: fmt.Sprintf("Retry delay must be a positive number, got %d", c.RetryDelay)}
	}
	if c.MaxScrollIterations < 0 {
		return &ValidationError{Field: "max_scroll_iterations", Message: fmt.Sprintf("Max scroll iterations must not be negative, got %d", c.MaxScrollIterations)}
	}
	if c.AvoidDuplicates && (c.DuplicateThreshold < 1 || c.DuplicateThreshold > 100) {
		return &ValidationError{Field: "duplicate_threshold", Message: fmt.Sprintf("Duplicate threshold must be between 1 and 100, got %d", c.DuplicateThreshold)}
	}
	if !sliceutil.Contains([]string{"rod", "chromedp"}, c.Engine) {
		return &ValidationError{Field: "engine", Message: fmt.Sprintf("Unknown engine %q (want rod or chromedp)", c.Engine)}
	}
	for _, category := range c.Categories {
		if !sliceutil.Contains(devices.CategoryNames(), category) {
			return &ValidationError{Field: "categories", Message: fmt.Sprintf("Unknown device category %q", category)}
		}
	}
	for _, d := range c.Devices {
		if d.Name == "" || d.Width <= 0 || d.Height <= 0 {
			return &ValidationError{Field: "devices", Message: fmt.Sprintf("Device %q needs a name, width and height", d.Name)}
		}
	}
	return nil
}

// ValidateConcurrency checks that n is within MinConcurrency..MaxConcurrency.
func ValidateConcurrency(n int) error {
	if n < MinConcurrency || n > MaxConcurrency {
		return &ValidationError{
			Field:   "concurrency",
			Message: fmt.Sprintf("Concurrency must be an integer between %d and %d, got %d", MinConcurrency, MaxConcurrency, n),
		}
	}
	return nil
}

// ValidateWait checks the post-load wait in milliseconds.
func ValidateWait(ms int) error {
	if ms < 0 {
		return &ValidationError{
			Field:   "wait",
			Message: fmt.Sprintf("Wait buffer must be a positive number of milliseconds, got %d", ms),
		}
	}
	return nil
}

// ValidateURL parses raw and requires an http or https URL with a host.
func ValidateURL(raw string) (*url.URL, error) {
	const example = "Example: https://example.com"

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return nil, &ValidationError{Field: "url", Message: fmt.Sprintf("Invalid URL %q. %s", raw, example)}
	}

	if !sliceutil.Contains([]string{"http", "https"}, strings.ToLower(u.Scheme)) {
		return nil, &ValidationError{Field: "url", Message: fmt.Sprintf("Invalid protocol %s: in %q. %s", u.Scheme, raw, example)}
	}

	if u.Host == "" {
		return nil, &ValidationError{Field: "url", Message: fmt.Sprintf("Invalid URL %q. %s", raw, example)}
	}

	return u, nil
}

// ResolvePages returns the page paths to capture: pages when given,
// otherwise pathArg, otherwise "/". Every path gets a leading slash.
func ResolvePages(pathArg string, pages []string) []string {
	var resolved []string

	switch {
	case len(pages) > 0:
		resolved = append(resolved, pages...)
	case pathArg != "":
		resolved = []string{pathArg}
	default:
		resolved = []string{"/"}
	}

	for i, p := range resolved {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		resolved[i] = p
	}

	return resolved
}

// BuildURL replaces the path (and query) of base with page.
func BuildURL(base *url.URL, page string) string {
	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	path, query, _ := strings.Cut(page, "?")
	u.Path = path
	u.RawPath = ""
	u.RawQuery = query

	return u.String()
}

// SelectDevices returns the catalog filtered by the configured categories
// plus any extra devices from the config file.
func (c Config) SelectDevices() []devices.Device {
	phones := sliceutil.Contains(c.Categories, string(devices.Phone))
	tablets := sliceutil.Contains(c.Categories, string(devices.Tablet))
	desktops := sliceutil.Contains(c.Categories, string(devices.Desktop))

	selected := devices.Select(phones, tablets, desktops)

	for _, d := range c.Devices {
		if len(c.Categories) == 0 || sliceutil.Contains(c.Categories, string(d.Category)) {
			selected = append(selected, d)
		}
	}

	return selected
}

// CaptureConfig converts the run settings into engine settings.
func (c Config) CaptureConfig() screener.CaptureConfig {
	return screener.CaptureConfig{
		Timeout:              ms(c.Timeout),
		PostLoadWait:         ms(c.Wait),
		ScrollForLazyContent: c.Scroll,
		MaxScrollIterations:  c.MaxScrollIterations,
		HideCookieBanners:    c.HideCookieBanners,
		IgnoreStatusCodes:    c.IgnoreStatusCodes,
	}
}

// ExecOptions converts the run settings into executor settings.
func (c Config) ExecOptions() screener.ExecOptions {
	return screener.ExecOptions{
		Concurrency: c.Concurrency,
		MaxAttempts: c.MaxAttempts,
		RetryDelay:  ms(c.RetryDelay),
	}
}

// LaunchOptions converts the run settings into browser launch settings.
func (c Config) LaunchOptions() screener.LaunchOptions {
	opts := screener.NewLaunchOptions()
	opts.Headless = c.Headless
	opts.BinPath = c.BrowserPath
	opts.UseHTTP2 = c.UseHTTP2
	opts.RespectCertificateErrors = c.RespectCertErrors
	return opts
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
