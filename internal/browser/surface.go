package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// Surface is one rendering surface of the current document: the top-level
// page or an embedded frame. Navigation logic is written against this
// interface so it stays agnostic of where the portal chose to render its
// content.
type Surface interface {
	// Name identifies the surface in logs.
	Name() string
	// Matches reports whether the surface's frame name or address contains
	// the given marker. The top-level page never matches.
	Matches(marker string) bool
	// Evaluate runs a JavaScript expression against the surface's document
	// and unmarshals the result into out (out may be nil).
	Evaluate(ctx context.Context, js string, out any) error
	// Exists reports whether a selector resolves on the surface right now.
	Exists(ctx context.Context, selector string) bool
	// IsVisible reports whether a selector resolves to a visible element.
	IsVisible(ctx context.Context, selector string) bool
	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Fill sets the value of the input matching selector.
	Fill(ctx context.Context, selector, value string) error
	// InnerHTML returns the markup inside the first match, "" when absent.
	InnerHTML(ctx context.Context, selector string) string
	// InnerText returns the text of the first match, "" when absent.
	InnerText(ctx context.Context, selector string) string
}

// domSurface implements Surface for both the page and same-origin frames by
// rooting every DOM query at a JavaScript document expression.
type domSurface struct {
	sess     *Session
	name     string
	root     string
	frameID  string
	frameSrc string
}

func (d *domSurface) Name() string { return d.name }

func (d *domSurface) Matches(marker string) bool {
	if d.root == "document" {
		return false
	}
	marker = strings.ToLower(marker)
	return strings.Contains(strings.ToLower(d.frameID), marker) ||
		strings.Contains(strings.ToLower(d.frameSrc), marker)
}

func (d *domSurface) Evaluate(ctx context.Context, js string, out any) error {
	runCtx, cancel := d.sess.run(ctx, d.sess.cfg.ActionTimeout)
	defer cancel()

	wrapped := fmt.Sprintf(`(() => {
		const __root = %s;
		if (!__root) { return null; }
		return (function(document) { return (%s); })(__root);
	})()`, d.root, js)
	err := chromedp.Run(runCtx, chromedp.Evaluate(wrapped, out))
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &models.ActionTimeoutError{Action: "evaluate", Timeout: d.sess.cfg.ActionTimeout}
	}
	return err
}

func (d *domSurface) Exists(ctx context.Context, selector string) bool {
	var found bool
	js := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := d.Evaluate(ctx, js, &found); err != nil {
		return false
	}
	return found
}

func (d *domSurface) IsVisible(ctx context.Context, selector string) bool {
	var visible bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !!(el && (el.offsetParent !== null || el.getClientRects().length > 0));
	})()`, selector)
	if err := d.Evaluate(ctx, js, &visible); err != nil {
		return false
	}
	return visible
}

func (d *domSurface) Click(ctx context.Context, selector string) error {
	var clicked bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, selector)
	err := d.Evaluate(ctx, js, &clicked)
	if err != nil {
		// A click that triggers navigation tears down the execution context
		// before the result is delivered; that is a successful click.
		if isContextTornDown(err) {
			return nil
		}
		return err
	}
	if !clicked {
		return errSelectorMissing(selector)
	}
	return nil
}

func (d *domSurface) Fill(ctx context.Context, selector, value string) error {
	var filled bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, selector, value)
	if err := d.Evaluate(ctx, js, &filled); err != nil {
		return err
	}
	if !filled {
		return errSelectorMissing(selector)
	}
	return nil
}

func (d *domSurface) InnerHTML(ctx context.Context, selector string) string {
	var html string
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.innerHTML : "";
	})()`, selector)
	if err := d.Evaluate(ctx, js, &html); err != nil {
		return ""
	}
	return html
}

func (d *domSurface) InnerText(ctx context.Context, selector string) string {
	var text string
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? (el.innerText || el.textContent || "") : "";
	})()`, selector)
	if err := d.Evaluate(ctx, js, &text); err != nil {
		return ""
	}
	return text
}

// isContextTornDown recognizes the errors chromedp reports when the page
// navigated away mid-evaluation.
func isContextTornDown(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "Cannot find context") ||
		strings.Contains(msg, "Inspected target navigated or closed") ||
		strings.Contains(msg, "Execution context was destroyed")
}

// settleDelay is how long a surface is given to fire AJAX updates after a
// click before callers re-inspect the DOM.
const settleDelay = 500 * time.Millisecond
