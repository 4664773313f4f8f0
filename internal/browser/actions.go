package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Interaction primitives. Each wraps a raw surface operation with the
// timeout and retry policy the flaky portal requires. Boolean-returning
// primitives let callers apply section-level fallback policy instead of
// aborting the whole lookup.

const waitPollInterval = 200 * time.Millisecond

// WaitFor polls for selector visibility on the surface until timeout.
// Returns false instead of an error so callers can branch on "results never
// appeared" versus propagating a failure.
func WaitFor(ctx context.Context, s Surface, selector string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.IsVisible(ctx, selector) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(waitPollInterval):
		}
	}
}

// FillField waits for the field to appear and sets its value. Fails with an
// ElementNotFoundError when the selector never resolves within timeout.
func FillField(ctx context.Context, s Surface, selector, value string, timeout time.Duration) error {
	if !WaitFor(ctx, s, selector, timeout) {
		return &models.ElementNotFoundError{Selector: selector}
	}
	return s.Fill(ctx, selector, value)
}

// ClickWithRetry waits for visibility, clicks, then waits for the page to
// settle. Clicks that trigger no navigation are still successes; much of
// the portal submits via AJAX. Retries up to maxAttempts with linear
// backoff and reports the final outcome as a boolean.
func ClickWithRetry(ctx context.Context, s Surface, selector string, maxAttempts int, timeout time.Duration, logger *slog.Logger) bool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	err := retry.Do(
		func() error {
			if !WaitFor(ctx, s, selector, timeout) {
				return &models.ElementNotFoundError{Selector: selector}
			}
			if err := s.Click(ctx, selector); err != nil {
				return err
			}
			awaitSettled(ctx, s, timeout)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.DelayType(linearBackoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Warn("click retry", "selector", selector, "attempt", n+1, "error", err)
			}
		}),
	)
	if err != nil {
		if logger != nil {
			logger.Warn("click failed after retries", "selector", selector, "attempts", maxAttempts, "error", err)
		}
		return false
	}
	return true
}

// linearBackoff grows the delay with the attempt number: 1s, 2s, 3s, ...
func linearBackoff(n uint, _ error, config *retry.Config) time.Duration {
	return time.Duration(n+1) * time.Second
}

// ExtractHTML returns the inner markup of the first matching element, or ""
// when it is absent. Missing optional chrome must not abort extraction.
func ExtractHTML(ctx context.Context, s Surface, selector string) string {
	return s.InnerHTML(ctx, selector)
}

// ExtractText returns the visible text of the first matching element, or ""
// when it is absent.
func ExtractText(ctx context.Context, s Surface, selector string) string {
	return s.InnerText(ctx, selector)
}

// awaitSettled waits for the document to report readiness after a click and
// gives in-flight AJAX updates a moment to land. "No navigation occurred"
// is not a failure.
func awaitSettled(ctx context.Context, s Surface, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var state string
		if err := s.Evaluate(ctx, `document.readyState`, &state); err == nil && state == "complete" {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(waitPollInterval):
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(settleDelay):
	}
}

func errSelectorMissing(selector string) error {
	return &models.ElementNotFoundError{Selector: selector}
}
