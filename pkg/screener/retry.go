package screener

import (
	"context"
	"strings"
	"time"

	"github.com/root4loot/goutils/log"
)

// PermanentMarkers are error fragments that will fail again on retry with
// the same input: DNS, certificate, malformed URL and client-side 4xx errors.
// Status markers are anchored to the "HTTP <code>" prefix of HTTPStatusError.
// They follow Chromium's net:: vocabulary plus the Go-side equivalents.
var PermanentMarkers = []string{
	"net::ERR_NAME_NOT_RESOLVED",
	"no such host",
	"net::ERR_CERT_",
	"x509:",
	"invalid url",
	"net::ERR_INVALID_URL",
	"HTTP 404",
	"HTTP 403",
	"HTTP 401",
	"browser is shutting down",
}

// ExecutionOutcome is a CaptureOutcome with the number of attempts it took.
type ExecutionOutcome struct {
	CaptureOutcome
	Attempts int
}

// IsTransient reports whether a failed capture is worth retrying. An empty
// message has nothing to retry and is not transient.
func IsTransient(msg string) bool {
	if msg == "" {
		return false
	}

	lower := strings.ToLower(msg)
	for _, marker := range PermanentMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return false
		}
	}
	return true
}

// CaptureWithRetry runs Capture up to maxAttempts times, stopping at the
// first success or the first permanent failure.
func CaptureWithRetry(ctx context.Context, m *Manager, req CaptureRequest, maxAttempts int, retryDelay time.Duration) ExecutionOutcome {
	return captureWithRetry(ctx, func(ctx context.Context) CaptureOutcome {
		return Capture(ctx, m, req)
	}, maxAttempts, retryDelay)
}

func captureWithRetry(ctx context.Context, capture func(context.Context) CaptureOutcome, maxAttempts int, retryDelay time.Duration) ExecutionOutcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var outcome ExecutionOutcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome = ExecutionOutcome{CaptureOutcome: capture(ctx), Attempts: attempt}

		if outcome.Success {
			return outcome
		}

		if !IsTransient(outcome.Error) || attempt == maxAttempts {
			break
		}

		log.Debugf("Attempt %d/%d for %s failed, retrying: %s", attempt, maxAttempts, outcome.DeviceName, outcome.Error)

		if !sleep(ctx, retryDelay) {
			break
		}
	}

	return outcome
}
