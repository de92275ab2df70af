package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/config"
	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/output"
	"github.com/root4loot/rscreener/pkg/screener"
)

const (
	version = "0.1.0"
	usage   = `USAGE:
  rscreener [options] <url> [path]

INPUT:
  <url>                          base URL (http or https)
  [path]                         page path to capture                                    (Default: /)
  -p,   --pages                  comma separated paths, or a file with one path per line

DEVICES:
        --phones-only            capture phones
        --tablets-only           capture tablets
        --desktops-only          capture desktops and laptops
                                 Combining these captures the union. Without any of them
                                 every device is captured.

CONFIGURATIONS:
  -c,   --concurrency            number of concurrent captures (1-50)                    (Default: 10)
  -w,   --wait                   wait after page load (milliseconds)                     (Default: 500)
  -to,  --timeout                capture timeout per attempt (milliseconds)              (Default: 30000)
  -ma,  --max-attempts           attempts per device, including the first                (Default: 3)
  -e,   --engine                 browser driver (rod, chromedp)                          (Default: rod)
  -ns,  --no-scroll              do not scroll to load lazy content                      (Default: false)
  -kcb, --keep-cookie-banners    do not hide cookie consent banners                      (Default: false)
  -uh,  --use-http2              use HTTP2                                               (Default: false)
  -rce, --respect-cert-err       respect certificate errors                              (Default: false)
  -isc, --ignore-status-codes    capture pages with these status codes (comma separated)
  -ad,  --avoid-duplicates       prevent saving duplicate outputs                        (Default: false)
  -dt,  --duplicate-threshold    threshold for similarity percentage (1-100)             (Default: 94)
                                 Applicable only when --avoid-duplicates is enabled. Outputs
                                 with a similarity score greater than or equal to this value
                                 will be considered duplicates and will not be saved.
        --browser                path to a Chrome or Chromium binary                     (Default: auto)
        --config                 YAML file with default settings

OUTPUT:
  -o,   --outfolder              save outputs to specified folder                        (Default: ./screenshots)
  -i,   --imprint                add URL, device and fold line to saved images           (Default: false)
  -s,   --silence                silence output
        --debug                  enable debug mode
        --version                display version
`
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
)

type cli struct {
	config.Config
	TargetURL string
	PathArg   string

	stdout    io.Writer
	now       func() time.Time
	newDriver func(name string, opts screener.LaunchOptions) (screener.Driver, error)
}

func newCLI() *cli {
	return &cli{
		Config:    config.Default(),
		stdout:    os.Stdout,
		now:       time.Now,
		newDriver: screener.NewDriver,
	}
}

func init() {
	log.Init("rscreener")
}

func main() {
	cli := newCLI()

	if err := cli.parseFlags(os.Args[1:]); err != nil {
		if errors.Is(err, errExit) {
			os.Exit(exitOK)
		}
		log.Errorf("%v", err)
		os.Exit(exitArgument)
	}

	// the browser manager handles SIGINT/SIGTERM once the browser is up
	os.Exit(cli.run(context.Background()))
}

// errExit is returned by parseFlags after --help or --version.
var errExit = errors.New("exit")

// parseFlags reads the command line. A --config file is loaded first so
// explicit flags override it.
func (cli *cli) parseFlags(args []string) error {
	if path := configPathFromArgs(args); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cli.Config = cfg
	}

	var help, ver, debug, silence bool
	var phonesOnly, tabletsOnly, desktopsOnly bool
	var noScroll, keepBanners bool
	var pages, ignoreStatusCodes, configPath string

	defaults := cli.Config
	fs := flag.NewFlagSet("rscreener", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// INPUT
	fs.StringVar(&pages, "pages", strings.Join(defaults.Pages, ","), "")
	fs.StringVar(&pages, "p", strings.Join(defaults.Pages, ","), "")

	// DEVICES
	fs.BoolVar(&phonesOnly, "phones-only", false, "")
	fs.BoolVar(&tabletsOnly, "tablets-only", false, "")
	fs.BoolVar(&desktopsOnly, "desktops-only", false, "")

	// CONFIGURATIONS
	fs.IntVar(&cli.Concurrency, "concurrency", defaults.Concurrency, "")
	fs.IntVar(&cli.Concurrency, "c", defaults.Concurrency, "")
	fs.IntVar(&cli.Wait, "wait", defaults.Wait, "")
	fs.IntVar(&cli.Wait, "w", defaults.Wait, "")
	fs.IntVar(&cli.Timeout, "timeout", defaults.Timeout, "")
	fs.IntVar(&cli.Timeout, "to", defaults.Timeout, "")
	fs.IntVar(&cli.MaxAttempts, "max-attempts", defaults.MaxAttempts, "")
	fs.IntVar(&cli.MaxAttempts, "ma", defaults.MaxAttempts, "")
	fs.StringVar(&cli.Engine, "engine", defaults.Engine, "")
	fs.StringVar(&cli.Engine, "e", defaults.Engine, "")
	fs.BoolVar(&noScroll, "no-scroll", !defaults.Scroll, "")
	fs.BoolVar(&noScroll, "ns", !defaults.Scroll, "")
	fs.BoolVar(&keepBanners, "keep-cookie-banners", !defaults.HideCookieBanners, "")
	fs.BoolVar(&keepBanners, "kcb", !defaults.HideCookieBanners, "")
	fs.BoolVar(&cli.UseHTTP2, "use-http2", defaults.UseHTTP2, "")
	fs.BoolVar(&cli.UseHTTP2, "uh", defaults.UseHTTP2, "")
	fs.BoolVar(&cli.RespectCertErrors, "respect-cert-err", defaults.RespectCertErrors, "")
	fs.BoolVar(&cli.RespectCertErrors, "rce", defaults.RespectCertErrors, "")
	fs.StringVar(&ignoreStatusCodes, "ignore-status-codes", "", "")
	fs.StringVar(&ignoreStatusCodes, "isc", "", "")
	fs.BoolVar(&cli.AvoidDuplicates, "avoid-duplicates", defaults.AvoidDuplicates, "")
	fs.BoolVar(&cli.AvoidDuplicates, "ad", defaults.AvoidDuplicates, "")
	fs.IntVar(&cli.DuplicateThreshold, "duplicate-threshold", defaults.DuplicateThreshold, "")
	fs.IntVar(&cli.DuplicateThreshold, "dt", defaults.DuplicateThreshold, "")
	fs.StringVar(&cli.BrowserPath, "browser", defaults.BrowserPath, "")
	fs.StringVar(&configPath, "config", "", "")

	// OUTPUT
	fs.StringVar(&cli.Output, "outfolder", defaults.Output, "")
	fs.StringVar(&cli.Output, "o", defaults.Output, "")
	fs.BoolVar(&cli.Imprint, "imprint", defaults.Imprint, "")
	fs.BoolVar(&cli.Imprint, "i", defaults.Imprint, "")
	fs.BoolVar(&silence, "silence", false, "")
	fs.BoolVar(&silence, "s", false, "")
	fs.BoolVar(&debug, "debug", false, "")
	fs.BoolVar(&help, "help", false, "")
	fs.BoolVar(&help, "h", false, "")
	fs.BoolVar(&ver, "version", false, "")

	// flag stops at the first positional argument, so keep parsing
	// whatever follows it
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				help = true
				break
			}
			return err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	if help {
		fmt.Fprint(cli.stdout, usage)
		return errExit
	}

	if ver {
		fmt.Fprintln(cli.stdout, "rscreener", version)
		return errExit
	}

	switch {
	case debug:
		log.SetLevel(log.DebugLevel)
	case silence:
		log.SetLevel(log.FatalLevel)
		cli.stdout = io.Discard
	}

	if len(positional) == 0 {
		fmt.Fprint(cli.stdout, usage)
		return errors.New("No target specified")
	}
	if len(positional) > 2 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(positional[2:], " "))
	}

	cli.TargetURL = positional[0]
	if len(positional) == 2 {
		cli.PathArg = positional[1]
	}

	cli.Scroll = !noScroll
	cli.HideCookieBanners = !keepBanners

	var categories []string
	if phonesOnly {
		categories = append(categories, string(devices.Phone))
	}
	if tabletsOnly {
		categories = append(categories, string(devices.Tablet))
	}
	if desktopsOnly {
		categories = append(categories, string(devices.Desktop))
	}
	if len(categories) > 0 {
		cli.Categories = categories
	}

	var err error
	if cli.Pages, err = parsePages(pages); err != nil {
		return err
	}

	if ignoreStatusCodes != "" {
		if cli.IgnoreStatusCodes, err = parseStatusCodes(ignoreStatusCodes); err != nil {
			return err
		}
	}

	return nil
}

// configPathFromArgs finds the value of --config ahead of the real parse.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// parsePages accepts a comma separated list or the path of a file with
// one page per line.
func parsePages(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if info, err := os.Stat(value); err == nil && !info.IsDir() {
		lines, err := fileutil.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("could not read pages file: %w", err)
		}
		return nonEmpty(lines), nil
	}

	return nonEmpty(strings.Split(value, ",")), nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseStatusCodes(value string) ([]int, error) {
	var codes []int
	for _, code := range strings.Split(value, ",") {
		statusCode, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil || statusCode < 100 || statusCode > 599 {
			return nil, &config.ValidationError{Field: "ignore_status_codes", Message: "Invalid status code: " + code}
		}
		codes = append(codes, statusCode)
	}
	return codes, nil
}

// run captures every page on every selected device and returns the exit code.
func (cli *cli) run(ctx context.Context) int {
	start := cli.now()

	base, err := config.ValidateURL(cli.TargetURL)
	if err != nil {
		return cli.argumentError(err)
	}

	pathArg := cli.PathArg
	if pathArg == "" && len(cli.Pages) == 0 && base.Path != "" && base.Path != "/" {
		pathArg = base.Path
		if base.RawQuery != "" {
			pathArg += "?" + base.RawQuery
		}
	}
	pages := config.ResolvePages(pathArg, cli.Pages)

	if err := cli.Config.Validate(); err != nil {
		return cli.argumentError(err)
	}

	devs := cli.SelectDevices()
	if len(devs) == 0 {
		log.Errorf("No devices selected. Check your filter flags.")
		return exitArgument
	}

	fmt.Fprintln(cli.stdout, titleStyle.Render(fmt.Sprintf("\nCapturing %d devices across %d page(s)...", len(devs), len(pages))))
	fmt.Fprintln(cli.stdout, dimStyle.Render("URL: "+base.String()))
	fmt.Fprintln(cli.stdout, dimStyle.Render("Pages: "+strings.Join(pages, ", ")))
	fmt.Fprintln(cli.stdout, dimStyle.Render(fmt.Sprintf("Concurrency: %d", cli.Concurrency)))

	runDir, err := output.NewRunDir(cli.Output, start)
	if err != nil {
		log.Errorf("Could not create output folder: %v", err)
		return exitFailure
	}
	fmt.Fprintln(cli.stdout, dimStyle.Render("Output: "+runDir))

	var deduper *output.Deduper
	if cli.AvoidDuplicates {
		if deduper, err = output.NewDeduper(cli.DuplicateThreshold); err != nil {
			return cli.argumentError(err)
		}
	}

	driver, err := cli.newDriver(cli.Engine, cli.LaunchOptions())
	if err != nil {
		return cli.argumentError(err)
	}

	manager := screener.NewManager(driver)
	defer func() {
		if err := manager.Close(); err != nil {
			log.Debugf("Error closing browser: %v", err)
		}
	}()

	if _, err := manager.Launch(ctx); err != nil {
		log.Errorf("%v", err)
		return exitFailure
	}

	captured := 0
	for _, page := range pages {
		if ctx.Err() != nil {
			log.Warnf("Interrupted, skipping remaining pages")
			break
		}

		dir := runDir
		if len(pages) > 1 {
			dir = output.PageDir(runDir, page)
		}

		captured += cli.capturePage(ctx, manager, config.BuildURL(base, page), devs, dir, deduper, start)
	}

	fmt.Fprintln(cli.stdout, successStyle.Render("\nDone in "+output.FormatDuration(cli.now().Sub(start))))

	if captured == 0 {
		return exitFailure
	}
	return exitOK
}

// capturePage runs one page across all devices, saves the images and
// writes the report. It returns the number of successful captures.
func (cli *cli) capturePage(ctx context.Context, manager *screener.Manager, pageURL string, devs []devices.Device, dir string, deduper *output.Deduper, start time.Time) int {
	fmt.Fprintln(cli.stdout, titleStyle.Render("\nCapturing: "+pageURL))

	opts := cli.ExecOptions()
	opts.OnProgress = func(completed, total int, outcome screener.ExecutionOutcome) {
		status := successStyle.Render("OK")
		if !outcome.Success {
			status = failureStyle.Render("FAIL")
		}
		fmt.Fprintf(cli.stdout, "\r  %d/%d %s %s  ", completed, total, outcome.DeviceName, status)
	}

	result := screener.CaptureAll(ctx, manager, pageURL, devs, cli.CaptureConfig(), opts)

	// clear the progress line
	fmt.Fprint(cli.stdout, "\r"+strings.Repeat(" ", 60)+"\r")

	displayCaptureSummary(cli.stdout, result.SuccessCount, result.FailureCount)
	displayFailureSummary(cli.stdout, result.Outcomes)

	outcomes := result.Outcomes
	if deduper != nil {
		outcomes = deduper.Filter(outcomes)
	}

	toSave := outcomes
	if cli.Imprint {
		toSave = output.ImprintAll(outcomes, devs, pageURL)
	}

	saved := output.SaveAll(toSave, devs, dir)
	fmt.Fprintln(cli.stdout, dimStyle.Render(fmt.Sprintf("  %d files saved", saved.SavedCount)))

	shots := output.PrepareScreenshots(outcomes, devs)
	reportPath, err := output.WriteReport(output.ReportData{
		URL:         pageURL,
		CapturedAt:  cli.now(),
		Duration:    cli.now().Sub(start),
		DeviceCount: len(shots),
	}, shots, dir)
	if err != nil {
		log.Errorf("Could not write report: %v", err)
	} else {
		log.Resultf("Report saved to %s", reportPath)
	}

	return result.SuccessCount
}

func (cli *cli) argumentError(err error) int {
	log.Errorf("%v", err)

	msg := err.Error()
	if strings.Contains(msg, "Invalid URL") || strings.Contains(msg, "Invalid protocol") {
		fmt.Fprintln(cli.stdout, dimStyle.Render("\nHint: URL must start with http:// or https://"))
	}

	return exitArgument
}
