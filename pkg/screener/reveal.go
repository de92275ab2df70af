package screener

import (
	"context"
	"time"

	"github.com/root4loot/goutils/log"
)

// RevealSettle is the pause after each scroll that lets lazy content start loading.
var RevealSettle = 100 * time.Millisecond

const scrollTopTimeout = 5 * time.Second

// RevealStats describes what a Reveal call did.
type RevealStats struct {
	Iterations  int
	FinalHeight int
	TimedOut    bool
}

// Reveal scrolls page one viewport at a time so lazy-loaded content gets a
// chance to load. It stops after maxIterations scrolls, when the document
// height stops changing, or once budget has elapsed, and always scrolls back
// to the top afterwards. Errors end the loop early but are never returned.
func Reveal(ctx context.Context, page Scroller, maxIterations int, budget time.Duration) (stats RevealStats) {
	start := time.Now()

	defer func() {
		// ctx may already be spent by the time we get here
		topCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scrollTopTimeout)
		defer cancel()
		if err := page.ScrollTo(topCtx, 0); err != nil {
			log.Debugf("Could not scroll back to top: %v", err)
		}
	}()

	previous, err := page.ScrollHeight(ctx)
	if err != nil {
		log.Debugf("Could not read scroll height: %v", err)
		return stats
	}
	stats.FinalHeight = previous

	for stats.Iterations < maxIterations {
		if time.Since(start) > budget {
			stats.TimedOut = true
			break
		}

		if err := page.ScrollByViewport(ctx); err != nil {
			log.Debugf("Scroll failed after %d iterations: %v", stats.Iterations, err)
			break
		}
		stats.Iterations++

		if !sleep(ctx, RevealSettle) {
			break
		}

		height, err := page.ScrollHeight(ctx)
		if err != nil {
			log.Debugf("Could not read scroll height: %v", err)
			break
		}
		stats.FinalHeight = height

		if height == previous {
			break
		}
		previous = height
	}

	return stats
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
