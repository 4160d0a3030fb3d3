package browser

import (
	"fmt"

	"github.com/go-rod/rod"
)

// WaitForIFrames recursively waits for DOM stability on all visible iframes.
// This ensures that iframe content is fully loaded before interaction.
func WaitForIFrames(page *rod.Page) {
	page.MustWaitDOMStable()

	iframes, err := page.Elements("iframe")
	if err != nil {
		return
	}

	for _, iframe := range iframes {
		visible, _ := iframe.Visible()
		if !visible {
			continue
		}

		frame, err := iframe.Frame()
		if err != nil {
			continue
		}

		WaitForIFrames(frame)
	}
}

// FindInFrames looks for selector in the page, then depth-first in its
// visible iframes. The login form of the portal is sometimes served inside
// one.
func FindInFrames(page *rod.Page, selector string) (*rod.Element, error) {
	if has, el, err := page.Has(selector); err == nil && has {
		return el, nil
	}

	iframes, err := page.Elements("iframe")
	if err != nil {
		return nil, fmt.Errorf("failed to list iframes: %w", err)
	}

	for _, iframe := range iframes {
		if visible, _ := iframe.Visible(); !visible {
			continue
		}
		frame, err := iframe.Frame()
		if err != nil {
			continue
		}
		if el, err := FindInFrames(frame, selector); err == nil {
			return el, nil
		}
	}

	return nil, fmt.Errorf("element %q not found in page or iframes", selector)
}

// InlineIFrames replaces every same-origin <iframe> in the live DOM with a
// <div data-captured-iframe="true"> holding its styles and body, then
// returns the page HTML and the number of iframes found. A plain page.HTML()
// would only carry empty iframe tags.
//
// The live DOM is modified; callers navigate away before the next capture.
func InlineIFrames(page *rod.Page) (string, int, error) {
	iframes, err := page.Elements("iframe")
	if err != nil {
		return "", 0, fmt.Errorf("failed to get iframe elements: %w", err)
	}

	if len(iframes) > 0 {
		if _, err := page.Eval(inlineIframesJS); err != nil {
			return "", 0, fmt.Errorf("failed to inline iframes: %w", err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", 0, err
	}

	return html, len(iframes), nil
}

const inlineIframesJS string = `() => {
	function inlineIframes(root) {
		const iframes = root.querySelectorAll('iframe');

		iframes.forEach((iframe) => {
			try {
				const iframeDoc = iframe.contentDocument || iframe.contentWindow.document;
				if (!iframeDoc || !iframeDoc.body) return;

				// Nested iframes first
				inlineIframes(iframeDoc);

				const container = root.createElement('div');
				container.setAttribute('data-captured-iframe', 'true');
				container.setAttribute('data-iframe-src', iframe.src || '');
				container.setAttribute('data-iframe-id', iframe.id || '');
				container.setAttribute('data-iframe-name', iframe.name || '');

				let contentHTML = '';
				if (iframeDoc.head) {
					iframeDoc.head.querySelectorAll('style').forEach((style) => {
						contentHTML += '<style data-from-iframe="true">'
							+ style.textContent + '<\/style>';
					});
				}
				contentHTML += iframeDoc.body.innerHTML;

				container.innerHTML = contentHTML;
				iframe.parentNode.replaceChild(container, iframe);
			} catch(e) {
				const errDiv = root.createElement('div');
				errDiv.setAttribute('data-captured-iframe', 'true');
				errDiv.setAttribute('data-iframe-error', e.message);
				errDiv.setAttribute('data-iframe-src', iframe.src || '');
				errDiv.textContent = '[iframe not accessible: ' + e.message + ']';
				iframe.parentNode.replaceChild(errDiv, iframe);
			}
		});
	}
	inlineIframes(document);
}`
