// probe-selectors opens the portal in a visible browser and reports, for each
// page, which frame holds which of the selectors the scraper parses. Run it
// when parser tests still pass but live runs find no bills.
//
// Usage:
//
//	go run ./scripts/probe-selectors
//
// Navigation to the login and billing pages is automatic; log in by hand
// when prompted.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/browser"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider/numericable"
)

type selectorProbe struct {
	Name     string
	Selector string
}

var probes = []selectorProbe{
	// Login
	{"App key input", numericable.SelectorAppKeyInput},
	{"Login input", `input[name="login"]`},
	{"Password input", `input[name="pwd"]`},
	{"Access token input", numericable.SelectorAccessTokenInput},

	// Billing
	{"Latest bill block", numericable.SelectorFirstBill},
	{"Latest bill date", numericable.SelectorFirstBill + " " + numericable.SelectorFirstBillDate},
	{"Older bill blocks", numericable.SelectorOtherBills},
	{"Older bill date", numericable.SelectorOtherBills + " " + numericable.SelectorOtherBillDate},
	{"Bill amount", "#facture " + numericable.SelectorBillAmount},
	{"Bill download link", "#facture " + numericable.SelectorBillLink},

	// Popups
	{"Cookie banner", "[id*='cookie'], [class*='cookie']"},
}

type pageToInspect struct {
	Name         string
	Path         string
	Instructions string
}

var pages = []pageToInspect{
	{"Login page", "/pages/connection/Login.aspx", "Wait for the login form"},
	{"Account home", "", "Log in with valid credentials, wait for the home page"},
	{"Billing page", "/pages/billing/Invoice.aspx", "Wait for the bill list"},
}

func main() {
	accountURL := flag.String("portal", numericable.DefaultAccountURL, "Account portal base URL")
	chromeBin := flag.String("chrome", "", "Chrome binary (default: let rod find one)")
	flag.Parse()

	fmt.Println("================================================================")
	fmt.Println("  SELECTOR PROBE: NUMERICABLE")
	fmt.Println("================================================================")
	fmt.Println()

	b, page, err := browser.Launch(browser.LaunchOptions{Bin: *chromeBin})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer b.MustClose()

	reader := bufio.NewReader(os.Stdin)

	for _, pg := range pages {
		fmt.Println("----------------------------------------------------------------")
		fmt.Printf("PAGE: %s\n", pg.Name)
		if pg.Path != "" {
			if err := page.Navigate(strings.TrimRight(*accountURL, "/") + pg.Path); err != nil {
				fmt.Printf("  navigation failed: %v\n", err)
			}
		}
		fmt.Printf("  -> %s\n", pg.Instructions)
		fmt.Print("  Press ENTER when ready (or 'skip'/'quit'): ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input == "quit" {
			break
		}
		if input == "skip" {
			fmt.Printf("  Skipped.\n\n")
			continue
		}

		browser.WaitForIFrames(page)
		time.Sleep(500 * time.Millisecond)

		if info, err := page.Info(); err == nil {
			fmt.Printf("\n  URL: %s\n\n", info.URL)
		}

		inspectFrame(page, "main", 1)
		fmt.Println()
	}

	fmt.Println("================================================================")
	fmt.Println("  Probe complete. Update selectors.go and the fixtures if a")
	fmt.Println("  selector moved or disappeared.")
	fmt.Println("================================================================")
}

// inspectFrame probes one frame, then recurses into its iframes.
func inspectFrame(page *rod.Page, path string, depth int) {
	indent := strings.Repeat("  ", depth)

	found := 0
	for _, probe := range probes {
		els, err := page.Timeout(500 * time.Millisecond).Elements(probe.Selector)
		if err != nil || len(els) == 0 {
			continue
		}
		visible, _ := els[0].Visible()
		fmt.Printf("%sFOUND  %-22s  %-40s  count=%d visible=%v\n",
			indent, probe.Name, truncate(probe.Selector, 40), len(els), visible)
		found++
	}
	if found == 0 {
		fmt.Printf("%s(no known selectors found)\n", indent)
	}

	iframes, err := page.Elements("iframe")
	if err != nil {
		return
	}

	for i, iframe := range iframes {
		label := fmt.Sprintf("iframe[%d]", i)
		if id := attr(iframe, "id"); id != "" {
			label = "iframe#" + id
		} else if name := attr(iframe, "name"); name != "" {
			label = fmt.Sprintf("iframe[name=%s]", name)
		}
		childPath := path + " > " + label
		visible, _ := iframe.Visible()

		fmt.Printf("\n%sIFRAME %s  visible=%v  src=%s\n", indent, childPath, visible, truncate(attr(iframe, "src"), 80))

		frame, err := iframe.Frame()
		if err != nil {
			fmt.Printf("%s  (cannot access frame: %v)\n", indent, err)
			continue
		}

		inspectFrame(frame, childPath, depth+1)
	}
}

func attr(el *rod.Element, name string) string {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
