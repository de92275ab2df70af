package screener

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LaunchError is returned when the browser process cannot be started.
// It is fatal to the whole run rather than to a single device.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// The messages below are matched by IsTransient, so they carry no URL and
// render budgets in seconds.

// NavigationTimeoutError is returned when navigation does not reach network
// idle within its share of the capture budget.
type NavigationTimeoutError struct {
	URL    string
	Budget time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("navigation timeout of %s exceeded", seconds(e.Budget))
}

// NetworkError carries the engine's connection-level failure reason,
// e.g. net::ERR_NAME_NOT_RESOLVED or net::ERR_CERT_DATE_INVALID.
type NetworkError struct {
	URL    string
	Reason string
}

func (e *NetworkError) Error() string {
	return "navigation failed: " + e.Reason
}

// HTTPStatusError is returned when the main document answered with a 4xx/5xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ScreenshotTimeoutError is returned when the full-page raster could not be
// extracted within its share of the capture budget.
type ScreenshotTimeoutError struct {
	Budget time.Duration
}

func (e *ScreenshotTimeoutError) Error() string {
	return fmt.Sprintf("screenshot timeout of %s exceeded", seconds(e.Budget))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}

// IsLaunchError reports whether err (or anything it wraps) is a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}

// rootMessage joins the messages of an error chain, stopping at the first
// repeat so wrapped causes are not printed twice.
func rootMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		if !strings.Contains(msg, inner.Error()) {
			msg += " | " + inner.Error()
		}
	}
	return msg
}
