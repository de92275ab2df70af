package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/root4loot/rscreener/pkg/screener"
)

type errorType string

const (
	errorDNS        errorType = "dns"
	errorSSL        errorType = "ssl"
	errorConnection errorType = "connection"
	errorTimeout    errorType = "timeout"
	errorHTTP       errorType = "http"
	errorURL        errorType = "url"
	errorUnknown    errorType = "unknown"
)

const maxErrorLength = 60

var httpStatusPattern = regexp.MustCompile(`\bhttp (\d{3})\b`)

// formattedError is a capture error rewritten for humans.
type formattedError struct {
	Type    errorType
	Message string
	Hint    string
}

// formatCaptureError classifies a raw capture error. Connection errors are
// matched before timeouts because Chromium reports ERR_CONNECTION_TIMED_OUT.
func formatCaptureError(raw string) formattedError {
	msg := strings.ToLower(raw)

	switch {
	case isDNSError(msg):
		return formattedError{errorDNS, "Domain not found", "Check the URL is spelled correctly and the domain exists"}
	case isSSLError(msg):
		return formattedError{errorSSL, "SSL certificate error", "The site's certificate is invalid, expired or self-signed"}
	case strings.Contains(msg, "err_connection_refused") || strings.Contains(msg, "connection refused"):
		return formattedError{errorConnection, "Connection refused", "Make sure the server is running and reachable"}
	case strings.Contains(msg, "err_connection") || strings.Contains(msg, "connection reset"):
		return formattedError{errorConnection, "Connection failed", "Check your network and that the server is up"}
	case isTimeoutError(msg):
		return formattedError{errorTimeout, "Page load timed out", "The page took too long to load. Try a larger --timeout or --wait"}
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return formattedError{errorHTTP, "Page not found (404)", "Check the path exists on the server"}
	case strings.Contains(msg, "403"):
		return formattedError{errorHTTP, "Access forbidden (403)", "The server refused access to this page"}
	case strings.Contains(msg, "401"):
		return formattedError{errorHTTP, "Authentication required (401)", "The page requires login"}
	case httpStatusPattern.MatchString(msg):
		code := httpStatusPattern.FindStringSubmatch(msg)[1]
		return formattedError{errorHTTP, "Server returned " + code, "Use --ignore-status-codes " + code + " to capture it anyway"}
	case strings.Contains(msg, "invalid url") || strings.Contains(msg, "invalid protocol"):
		return formattedError{errorURL, "Invalid URL", "URL must start with http:// or https://"}
	}

	return formattedError{Type: errorUnknown, Message: truncate(raw, maxErrorLength)}
}

func isDNSError(msg string) bool {
	return strings.Contains(msg, "err_name_not_resolved") ||
		strings.Contains(msg, "no such host")
}

func isSSLError(msg string) bool {
	return strings.Contains(msg, "err_cert") ||
		strings.Contains(msg, "err_ssl") ||
		strings.Contains(msg, "x509:")
}

func isTimeoutError(msg string) bool {
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "exceeded")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// displayFailureSummary lists every failed device with a readable reason.
// Nothing is written when all captures succeeded.
func displayFailureSummary(w io.Writer, outcomes []screener.ExecutionOutcome) {
	var failures []screener.ExecutionOutcome
	for _, o := range outcomes {
		if !o.Success {
			failures = append(failures, o)
		}
	}

	if len(failures) == 0 {
		return
	}

	fmt.Fprintln(w, failureStyle.Render("\n  Failures:"))
	for _, o := range failures {
		message, hint := "Unknown error", ""
		if o.Error != "" {
			formatted := formatCaptureError(o.Error)
			message, hint = formatted.Message, formatted.Hint
		}

		attempts := ""
		if o.Attempts > 1 {
			attempts = dimStyle.Render(fmt.Sprintf(" (after %d attempts)", o.Attempts))
		}

		fmt.Fprintf(w, "    %s %s: %s%s\n", failureStyle.Render("✗"), deviceStyle.Render(o.DeviceName), message, attempts)
		if hint != "" {
			fmt.Fprintln(w, dimStyle.Render("      Hint: "+hint))
		}
	}
}

// displayCaptureSummary prints the per-page success/failure counts.
func displayCaptureSummary(w io.Writer, succeeded, failed int) {
	if failed == 0 {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("  All %d captures completed successfully", succeeded)))
		return
	}

	fmt.Fprintln(w, titleStyle.Render("  Summary"))
	fmt.Fprintf(w, "    Succeeded: %s\n", successStyle.Render(fmt.Sprint(succeeded)))
	fmt.Fprintf(w, "    Failed:    %s\n", failureStyle.Render(fmt.Sprint(failed)))
}
