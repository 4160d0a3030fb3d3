// capture-fixtures saves Numericable portal pages as test fixtures.
//
// Usage:
//
//	go run ./scripts/capture-fixtures/main.go                  # browser capture of HTML pages
//	go run ./scripts/capture-fixtures/main.go -autofill        # fill the login form from config
//	go run ./scripts/capture-fixtures/main.go -mode=har -scenario=login-success
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/grez-lucas/numericable-scraper/internal/config"
	browserutil "github.com/grez-lucas/numericable-scraper/internal/scraper/browser"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider/numericable"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/testutil"
)

const providerDir = "internal/scraper/provider/numericable/testdata"

// Pages to capture in browser mode
var capturePages = []PageCapture{
	{Name: "login_page", Path: "/pages/connection/Login.aspx", Instructions: "Login page is loading (don't login yet)"},
	{Name: "home", Instructions: "Login with VALID credentials, wait for the account home"},
	{Name: "invoices", Path: "/pages/billing/Invoice.aspx", Instructions: "Billing page is loading"},
	{Name: "login_error", Path: "/pages/connection/Login.aspx", Instructions: "Logout, enter INVALID credentials and submit (or skip)"},
}

type PageCapture struct {
	Name         string
	Path         string // navigated to automatically when set
	Instructions string
}

func main() {
	mode := flag.String("mode", "browser", "Capture mode: browser (HTML fixtures) or har (HTTP recording)")
	outputDir := flag.String("output", "", "Output directory (default: "+providerDir+"/{fixtures,recordings})")
	scenario := flag.String("scenario", "login-success", "Recording name in har mode")
	autofill := flag.Bool("autofill", false, "Type the configured credentials into the login form")
	chromeBin := flag.String("chrome", "", "Chrome binary (default: let rod find one)")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	switch *mode {
	case "browser":
		outDir := *outputDir
		if outDir == "" {
			outDir = filepath.Join(providerDir, "fixtures")
		}
		captureBrowser(cfg, outDir, *chromeBin, *autofill)
	case "har":
		outDir := *outputDir
		if outDir == "" {
			outDir = filepath.Join(providerDir, "recordings")
		}
		captureHAR(cfg, filepath.Join(outDir, *scenario+".har"))
	default:
		fmt.Printf("Unknown mode %q (want browser or har)\n", *mode)
		os.Exit(1)
	}
}

// captureHAR runs the HTTP login and bills page fetch through a recording
// transport and saves the sanitized exchange.
func captureHAR(cfg *config.Config, path string) {
	if err := cfg.ValidateForSync(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	recorder := testutil.NewRecorder(http.DefaultTransport)
	scraper, err := numericable.NewScraper(
		numericable.WithAccountURL(cfg.Portal.AccountURL),
		numericable.WithConnectionURL(cfg.Portal.ConnectionURL),
		numericable.WithTimeout(cfg.Timeout()),
		numericable.WithTransport(recorder),
	)
	if err != nil {
		fmt.Printf("Error creating scraper: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = scraper.Close() }()

	ctx := context.Background()
	_, loginErr := scraper.Login(ctx, provider.Credentials{Login: cfg.Account.Login, Password: cfg.Account.Password})
	if loginErr != nil {
		fmt.Printf("⚠️  Login failed, recording the failing exchange: %v\n", loginErr)
	} else if _, err := scraper.FetchBillsPage(ctx); err != nil {
		fmt.Printf("⚠️  Bills page failed: %v\n", err)
	}

	har := testutil.SanitizeHAR(recorder.HAR())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := testutil.SaveHAR(path, har); err != nil {
		fmt.Printf("Error saving HAR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Recorded %d request(s) to %s (sanitized)\n", len(har.Entries), path)
}

func captureBrowser(cfg *config.Config, outDir, chromeBin string, autofill bool) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║           NUMERICABLE FIXTURE CAPTURE TOOL                     ║")
	fmt.Println("╠════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Portal: %-52s  ║\n", cfg.Portal.AccountURL)
	fmt.Printf("║  Output: %-52s  ║\n", outDir)
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	browser, page, err := browserutil.Launch(browserutil.LaunchOptions{Bin: chromeBin})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer browser.MustClose()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📋 Instructions:")
	fmt.Println("   - A browser window has opened")
	fmt.Println("   - Follow the prompts below")
	fmt.Println("   - Press ENTER after completing each step")
	fmt.Println("   - Type 'skip' to skip a page")
	fmt.Println("   - Type 'quit' to exit")
	fmt.Println()

	for _, capture := range capturePages {
		fmt.Println("────────────────────────────────────────────────────────────────")
		fmt.Printf("📄 Capturing: %s.html\n", capture.Name)

		if capture.Path != "" {
			if err := page.Navigate(strings.TrimRight(cfg.Portal.AccountURL, "/") + capture.Path); err != nil {
				fmt.Printf("   ⚠️  Navigation failed: %v\n", err)
			}
		}
		if autofill && capture.Name == "home" {
			fillLogin(page, cfg)
		}

		fmt.Printf("📝 Instructions: %s\n", capture.Instructions)
		fmt.Print("   Press ENTER when ready (or 'skip'/'quit'): ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input == "quit" {
			fmt.Println("\n👋 Exiting...")
			break
		}
		if input == "skip" {
			fmt.Printf("   ⏭️  Skipped %s\n\n", capture.Name)
			continue
		}

		savePage(page, outDir, capture.Name)
	}

	saveMetadata(outDir, cfg.Portal.AccountURL)

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("✅ Capture complete!")
	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Sanitize sensitive data before committing!")
	fmt.Println("   Run: go run ./scripts/sanitize-fixtures/main.go")
	fmt.Println("════════════════════════════════════════════════════════════════")
}

// fillLogin types the configured credentials into the login form.
func fillLogin(page *rod.Page, cfg *config.Config) {
	if cfg.Account.Login == "" || cfg.Account.Password == "" {
		fmt.Println("   ⚠️  No credentials configured, fill the form by hand")
		return
	}

	browserutil.WaitForIFrames(page)
	if err := browserutil.Fill(page, `input[name="login"]`, cfg.Account.Login, true); err != nil {
		fmt.Printf("   ⚠️  Could not fill login: %v\n", err)
		return
	}
	if err := browserutil.Fill(page, `input[name="pwd"]`, cfg.Account.Password, true); err != nil {
		fmt.Printf("   ⚠️  Could not fill password: %v\n", err)
		return
	}
	fmt.Println("   ⌨️  Credentials typed, submit the form")
}

func savePage(page *rod.Page, outDir, name string) {
	browserutil.WaitForIFrames(page)
	time.Sleep(1 * time.Second)

	// Screenshot before the DOM is modified by inlining
	screenshotPath := filepath.Join(outDir, name+".png")
	if buf, err := page.Screenshot(false, nil); err == nil {
		if writeErr := os.WriteFile(screenshotPath, buf, 0o644); writeErr != nil {
			fmt.Printf("   ⚠️  Error saving screenshot: %v\n", writeErr)
		} else {
			fmt.Printf("   📸 Screenshot: %s\n", screenshotPath)
		}
	} else {
		fmt.Printf("   ⚠️  Screenshot failed: %v\n", err)
	}

	html, iframeCount, err := browserutil.InlineIFrames(page)
	if err != nil {
		fmt.Printf("   ⚠️  %v, saving outer document\n", err)
		if html, err = page.HTML(); err != nil {
			fmt.Printf("   ❌ Error capturing HTML: %v\n\n", err)
			return
		}
	}
	if iframeCount > 0 {
		fmt.Printf("   🔲 Inlined %d iframe(s) into captured HTML\n", iframeCount)
	}

	htmlPath := filepath.Join(outDir, name+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		fmt.Printf("   ❌ Error saving HTML: %v\n\n", err)
		return
	}

	fmt.Printf("   ✅ Saved: %s\n", htmlPath)
	if info, err := page.Info(); err == nil {
		fmt.Printf("   🔗 URL: %s\n\n", info.URL)
	}
}

func saveMetadata(outDir, portal string) {
	metadata := fmt.Sprintf(`# Fixture Metadata
portal: %s
captured_at: %s
captured_by: %s

## Files
See .html files in this directory.
Screenshots (.png) provided for visual reference.

The token_response fixture is not a browser page: record it with
-mode=har and copy the /Oauth/login/ response body.

## Notes
- These fixtures should be sanitized before committing
- Update when the portal changes
- Re-run capture if tests start failing
`, portal, time.Now().Format(time.RFC3339), os.Getenv("USER"))

	metaPath := filepath.Join(outDir, "README.md")
	if err := os.WriteFile(metaPath, []byte(metadata), 0o644); err != nil {
		fmt.Printf("⚠️  Error saving metadata: %v\n", err)
	}
}
