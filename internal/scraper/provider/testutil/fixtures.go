package testutil

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	scrapertest "github.com/grez-lucas/numericable-scraper/internal/scraper/testutil"
)

// providerDir resolves the directory of a provider package, e.g.
// internal/scraper/provider/numericable.
func providerDir(provider string) string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filepath.Dir(filename)), provider)
}

// LoadFixture reads an HTML fixture file for the given provider
func LoadFixture(t *testing.T, provider, name string) string {
	t.Helper()

	path := filepath.Join(providerDir(provider), "testdata", "fixtures", name+".html")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to load fixture %s/%s: %v", provider, name, err)
	}

	return string(data)
}

// LoadRecording reads a HAR recording for the given provider.
func LoadRecording(t *testing.T, provider, name string) *scrapertest.HARLog {
	t.Helper()

	path := filepath.Join(providerDir(provider), "testdata", "recordings", name+".har")
	return scrapertest.MustLoadHAR(t, path)
}

// FixturePage wraps a fixture into a HAR entry answering method+url.
func FixturePage(t *testing.T, provider, name, method, url string) scrapertest.HAREntry {
	t.Helper()

	return scrapertest.HAREntry{
		Request: scrapertest.HARRequest{Method: method, URL: url},
		Response: scrapertest.HARResponse{
			Status: 200,
			Content: scrapertest.HARContent{
				MimeType: "text/html; charset=utf-8",
				Text:     LoadFixture(t, provider, name),
			},
		},
	}
}

// FixtureDocument wraps a binary fixture file (e.g. bill.pdf) into a base64
// HAR entry answering method+url.
func FixtureDocument(t *testing.T, provider, file, mimeType, method, url string) scrapertest.HAREntry {
	t.Helper()

	path := filepath.Join(providerDir(provider), "testdata", "fixtures", file)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to load fixture %s/%s: %v", provider, file, err)
	}

	return scrapertest.HAREntry{
		Request: scrapertest.HARRequest{Method: method, URL: url},
		Response: scrapertest.HARResponse{
			Status: 200,
			Content: scrapertest.HARContent{
				MimeType: mimeType,
				Text:     base64.StdEncoding.EncodeToString(data),
				Encoding: "base64",
				Size:     len(data),
			},
		},
	}
}
