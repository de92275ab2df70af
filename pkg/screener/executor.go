package screener

import (
	"context"
	"fmt"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/devices"
	"golang.org/x/sync/errgroup"
)

// AggregateResult collects the outcome of every device in a run. Outcomes
// is in the same order as the devices passed to CaptureAll.
type AggregateResult struct {
	Outcomes      []ExecutionOutcome
	SuccessCount  int
	FailureCount  int
	TotalAttempts int
}

type task func(ctx context.Context, device devices.Device) ExecutionOutcome

// CaptureAll captures url on every device with at most opts.Concurrency
// captures in flight. A failing device never affects the others and every
// device gets exactly one outcome.
func CaptureAll(ctx context.Context, m *Manager, url string, devs []devices.Device, cfg CaptureConfig, opts ExecOptions) AggregateResult {
	log.Debugf("Capturing %s on %d devices (concurrency %d)", url, len(devs), opts.Concurrency)

	return captureAll(ctx, devs, opts, func(ctx context.Context, device devices.Device) ExecutionOutcome {
		return CaptureWithRetry(ctx, m, cfg.Request(url, device), opts.MaxAttempts, opts.RetryDelay)
	})
}

func captureAll(ctx context.Context, devs []devices.Device, opts ExecOptions, run task) AggregateResult {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	total := len(devs)
	outcomes := make([]ExecutionOutcome, total)

	// progress is drained by a single goroutine, so observers see
	// completions one at a time and can't stall the workers
	progress := make(chan ExecutionOutcome, total)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		completed := 0
		for outcome := range progress {
			completed++
			notify(opts.OnProgress, completed, total, outcome)
		}
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, device := range devs {
		g.Go(func() error {
			outcome := runTask(ctx, run, device)
			outcomes[i] = outcome
			progress <- outcome
			return nil
		})
	}

	_ = g.Wait()
	close(progress)
	<-drained

	result := AggregateResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		result.TotalAttempts += outcome.Attempts
		if outcome.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	return result
}

// runTask shields the executor from a task that panics instead of
// returning a failed outcome.
func runTask(ctx context.Context, run task, device devices.Device) (outcome ExecutionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Capture task for %s crashed: %v", device.Name, r)
			outcome = ExecutionOutcome{
				CaptureOutcome: CaptureOutcome{DeviceName: device.Name, Error: fmt.Sprintf("capture task crashed: %v", r)},
				Attempts:       1,
			}
		}
	}()

	outcome = run(ctx, device)
	if outcome.Attempts < 1 {
		outcome.Attempts = 1
	}
	if outcome.DeviceName == "" {
		outcome.DeviceName = device.Name
	}
	return outcome
}

func notify(fn ProgressFunc, completed, total int, outcome ExecutionOutcome) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Debugf("Progress callback panicked: %v", r)
		}
	}()

	fn(completed, total, outcome)
}
