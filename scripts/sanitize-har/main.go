// sanitize-har removes credentials, app keys and access tokens from HAR
// recordings before committing.
//
// Usage:
//
//	go run ./scripts/sanitize-har/main.go -scenario=login-success
//	go run ./scripts/sanitize-har/main.go -input=recording.har -output=sanitized.har
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grez-lucas/numericable-scraper/internal/scraper/testutil"
)

const recordingsDir = "internal/scraper/provider/numericable/testdata/recordings"

func main() {
	scenario := flag.String("scenario", "", "Recording name under "+recordingsDir+" (e.g. login-success)")
	inputPath := flag.String("input", "", "Input HAR file path")
	outputPath := flag.String("output", "", "Output HAR file path (defaults to input path)")
	dryRun := flag.Bool("dry-run", false, "Show what would be redacted without modifying")
	flag.Parse()

	var inPath string
	switch {
	case *scenario != "":
		inPath = filepath.Join(recordingsDir, *scenario+".har")
	case *inputPath != "":
		inPath = *inputPath
	default:
		printUsage()
		os.Exit(1)
	}
	outPath := inPath
	if *outputPath != "" {
		outPath = *outputPath
	}

	fmt.Printf("Loading HAR file: %s\n", inPath)

	// Chrome 1.2 and simplified formats are both accepted
	har, err := testutil.LoadHAR(inPath)
	if err != nil {
		fmt.Printf("Error loading HAR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d entries\n", len(har.Entries))

	sanitized := testutil.SanitizeHAR(har)

	total := 0
	for i := range har.Entries {
		changes := redactions(har.Entries[i], sanitized.Entries[i])
		total += len(changes)
		if *dryRun && len(changes) > 0 {
			fmt.Printf("\nEntry %d: %s %s\n", i+1, har.Entries[i].Request.Method, truncateURL(har.Entries[i].Request.URL))
			for _, c := range changes {
				fmt.Printf("  - %s\n", c)
			}
		}
	}
	fmt.Printf("\nRedacted %d sensitive value(s)\n", total)

	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes written.")
		return
	}

	if err := testutil.SaveHAR(outPath, sanitized); err != nil {
		fmt.Printf("Error saving HAR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sanitized HAR saved to: %s\n", outPath)
	fmt.Println("\nSafe to commit!")
}

func printUsage() {
	fmt.Println("sanitize-har - Remove sensitive data from HAR files before committing")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run ./scripts/sanitize-har/main.go -scenario=login-success")
	fmt.Println("  go run ./scripts/sanitize-har/main.go -input=recording.har")
	fmt.Println("  go run ./scripts/sanitize-har/main.go -input=in.har -output=out.har")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -scenario  Recording name (login-success, login-missing-appkey, ...)")
	fmt.Println("  -input     Input HAR file path")
	fmt.Println("  -output    Output HAR file path (defaults to input)")
	fmt.Println("  -dry-run   Show redactions without modifying file")
}

// redactions describes what sanitizing changed in one entry.
func redactions(orig, san testutil.HAREntry) []string {
	var out []string

	if orig.Request.URL != san.Request.URL {
		out = append(out, "URL query parameters redacted")
	}
	out = append(out, headerRedactions("Request", orig.Request.Headers, san.Request.Headers)...)
	if orig.Request.Body != san.Request.Body {
		out = append(out, "request form redacted (login, pwd or appkey)")
	}
	out = append(out, headerRedactions("Response", orig.Response.Headers, san.Response.Headers)...)
	if orig.Response.Content.Text != san.Response.Content.Text {
		out = append(out, "response body redacted (appkey or accessToken)")
	}

	return out
}

func headerRedactions(side string, orig, san []testutil.HARHeader) []string {
	var out []string
	for j, h := range orig {
		if j < len(san) && h.Value != san[j].Value {
			out = append(out, fmt.Sprintf("%s header '%s' redacted", side, h.Name))
		}
	}
	return out
}

func truncateURL(url string) string {
	if len(url) > 80 {
		return url[:77] + "..."
	}
	return url
}
