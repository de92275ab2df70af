package screener

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRevealStaticPage(t *testing.T) {
	page := newStaticPage(2000)

	stats := Reveal(context.Background(), page, 10, time.Second)

	if stats.Iterations > 2 {
		t.Errorf("Expected at most 2 scrolls on a static page, got %d", stats.Iterations)
	}
	if stats.FinalHeight != 2000 {
		t.Errorf("Expected FinalHeight 2000, got %d", stats.FinalHeight)
	}
	if page.scrollY != 0 {
		t.Errorf("Expected page back at the top, got %d", page.scrollY)
	}
}

func TestRevealGrowingPage(t *testing.T) {
	page := newStaticPage(0)
	page.heights = []int{1000, 2000, 3000, 3500, 3500}

	stats := Reveal(context.Background(), page, 10, time.Second)

	if stats.Iterations != 4 {
		t.Errorf("Expected 4 scrolls until the height settles, got %d", stats.Iterations)
	}
	if stats.FinalHeight != 3500 {
		t.Errorf("Expected FinalHeight 3500, got %d", stats.FinalHeight)
	}
	if page.scrollY != 0 {
		t.Errorf("Expected page back at the top, got %d", page.scrollY)
	}
}

func TestRevealMaxIterations(t *testing.T) {
	page := newStaticPage(0)
	for h := 1000; h <= 50000; h += 1000 {
		page.heights = append(page.heights, h)
	}

	stats := Reveal(context.Background(), page, 3, time.Second)

	if stats.Iterations != 3 {
		t.Errorf("Expected 3 scrolls, got %d", stats.Iterations)
	}
	if page.scrolls != 3 {
		t.Errorf("Expected the page scrolled 3 times, got %d", page.scrolls)
	}
}

func TestRevealZeroIterations(t *testing.T) {
	page := newStaticPage(1000)

	stats := Reveal(context.Background(), page, 0, time.Second)

	if stats.Iterations != 0 || page.scrolls != 0 {
		t.Errorf("Expected no scrolls, got %d", stats.Iterations)
	}
	if len(page.scrollTos) != 1 {
		t.Errorf("Expected one scroll back to the top, got %d", len(page.scrollTos))
	}
}

func TestRevealBudget(t *testing.T) {
	page := newStaticPage(0)
	for h := 1000; h <= 100000; h += 1000 {
		page.heights = append(page.heights, h)
	}

	saved := RevealSettle
	RevealSettle = 20 * time.Millisecond
	defer func() { RevealSettle = saved }()

	stats := Reveal(context.Background(), page, 100, 50*time.Millisecond)

	if stats.Iterations >= 100 {
		t.Errorf("Expected the budget to stop the loop early, got %d scrolls", stats.Iterations)
	}
	if !stats.TimedOut {
		t.Errorf("Expected TimedOut to be set")
	}
	if page.scrollY != 0 {
		t.Errorf("Expected page back at the top, got %d", page.scrollY)
	}
}

func TestRevealScrollError(t *testing.T) {
	page := newStaticPage(1000)
	page.scrollErr = errors.New("execution context was destroyed")

	stats := Reveal(context.Background(), page, 10, time.Second)

	if stats.Iterations != 0 {
		t.Errorf("Expected no completed scrolls, got %d", stats.Iterations)
	}
	if len(page.scrollTos) != 1 {
		t.Errorf("Expected scroll back to the top even after an error")
	}
}

func TestRevealCancelledContext(t *testing.T) {
	page := newStaticPage(0)
	page.heights = []int{1000, 2000, 3000}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Reveal(ctx, page, 10, time.Second)

	if len(page.scrollTos) != 1 || page.scrollY != 0 {
		t.Errorf("Expected scroll back to the top with a cancelled context")
	}
}
