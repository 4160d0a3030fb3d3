// Package browser provides utilities for browser automation with Rod.
package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// LaunchOptions configures the browser used to capture portal pages.
type LaunchOptions struct {
	// Bin is the Chrome binary, empty to let rod find or download one
	Bin      string
	Headless bool
}

// Launch starts a browser that hides the usual automation markers and opens
// a stealth page in it. The caller closes the returned browser.
func Launch(opts LaunchOptions) (*rod.Browser, *rod.Page, error) {
	l := launcher.New().
		Headless(opts.Headless).
		// Disable the "Automation" internal flags
		Set("disable-blink-features", "AutomationControlled").
		Set("exclude-switches", "enable-automation").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", "1920,1080").
		Devtools(false)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("failed to open stealth page: %w", err)
	}

	return browser, page, nil
}
