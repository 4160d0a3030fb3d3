// sanitize-fixtures redacts customer data from captured HTML fixtures.
//
// Usage:
//
//	go run ./scripts/sanitize-fixtures/main.go [-dir=...] [--dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/grez-lucas/numericable-scraper/internal/scraper/testutil"
)

var sanitizePatterns = []struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}{
	// Customer and contract numbers, e.g. "N° client : 123456789"
	{
		regexp.MustCompile(`(?i)(n°\s*(?:de\s+)?(?:client|contrat|compte)\s*:?\s*)\d{6,}`),
		`${1}000000000`,
		"Customer number",
	},

	// Greeting with civility and full name
	{
		regexp.MustCompile(`(?i)(Bonjour|Bienvenue)\s+(M\.|Mme|Mlle|Monsieur|Madame)?\s*[A-ZÀÂÉÈÊËÎÏÔÙÛÜÇ][\wÀ-ÿ'-]+(\s+[A-ZÀÂÉÈÊËÎÏÔÙÛÜÇ][\wÀ-ÿ'-]+)?`),
		"$1 PRENOM NOM",
		"Full name",
	},

	// French phone numbers
	{
		regexp.MustCompile(`\b0[1-9](?:[ .]?\d{2}){4}\b`),
		"01 00 00 00 00",
		"Phone number",
	},

	// Email addresses
	{
		regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		"client@example.com",
		"Email",
	},

	// IBAN shown on direct debit details
	{
		regexp.MustCompile(`\bFR\d{2}(?:\s?[0-9A-Z]{4}){5}\s?[0-9A-Z]{3}\b`),
		"FR00 0000 0000 0000 0000 0000 000",
		"IBAN",
	},

	// Session tokens in scripts
	{
		regexp.MustCompile(`(?i)(token|session)["\s:=]+["']?[a-zA-Z0-9_-]{20,}["']?`),
		`$1="REDACTED"`,
		"Token",
	},

	// Cookies in HTML
	{
		regexp.MustCompile(`(?i)document\.cookie\s*=\s*["'][^"']+["']`),
		`document.cookie="REDACTED"`,
		"Cookie",
	},
}

func main() {
	dir := flag.String("dir", filepath.Join("internal", "scraper", "provider", "numericable", "testdata", "fixtures"), "Fixtures directory")
	dryRun := flag.Bool("dry-run", false, "Show what would be changed without modifying files")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*.html"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No HTML files found in %s\n", *dir)
		os.Exit(1)
	}

	fmt.Printf("🔒 Sanitizing fixtures in %s\n", *dir)
	if *dryRun {
		fmt.Println("    (DRY RUN - no files will be modified)")
	}
	fmt.Println()

	for _, file := range files {
		sanitizeFile(file, *dryRun)
	}

	fmt.Println()
	fmt.Println("✅ Sanitization complete!")
	if *dryRun {
		fmt.Println("    Run without --dry-run to apply changes")
	}
}

func sanitizeFile(path string, dryRun bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("❌ Error reading %s: %v\n", path, err)
		return
	}

	original := string(content)
	var changes []string

	// App key and access token inputs
	sanitized := testutil.SanitizeHTML(original)
	if sanitized != original {
		changes = append(changes, "  - App key / access token inputs")
	}

	for _, pattern := range sanitizePatterns {
		if matches := pattern.Pattern.FindAllString(sanitized, -1); len(matches) > 0 {
			sanitized = pattern.Pattern.ReplaceAllString(sanitized, pattern.Replacement)
			changes = append(changes, fmt.Sprintf("  - %s: %d matched", pattern.Description, len(matches)))
		}
	}

	filename := filepath.Base(path)
	if len(changes) == 0 {
		fmt.Printf("📄 %s: No sensitive data found\n", filename)
		return
	}

	fmt.Printf("📄 %s: Found sensitive data\n", filename)
	for _, change := range changes {
		fmt.Println(change)
	}

	if dryRun {
		return
	}
	if err := os.WriteFile(path, []byte(sanitized), 0o644); err != nil {
		fmt.Printf("    ❌ Error writing %s: %v\n", path, err)
	} else {
		fmt.Println("    ✅ Sanitized and saved")
	}
}
