package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// RecordedRequest is a request observed by the Replayer.
type RecordedRequest struct {
	Method string
	URL    string
	Body   string
}

// Replayer serves recorded HTTP responses during test execution. It
// implements http.RoundTripper so it can back any net/http based client.
type Replayer struct {
	// exactMatches maps "METHOD URL" to entries, in recording order
	exactMatches map[string][]*HAREntry

	// pathMatches maps "METHOD scheme://host/path" to entries
	// Used as fallback when exact match fails
	pathMatches map[string][]*HAREntry

	// served counts how many times each key has been answered
	served map[string]int

	// passthrough sends unmatched requests to the real network
	passthrough http.RoundTripper

	// verbose enables logging of matched/unmatched requests
	verbose bool

	mu       sync.Mutex
	requests []RecordedRequest
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithPassthrough allows unmatched requests to go to the real network.
// By default, unmatched requests get a 404.
func WithPassthrough(enabled bool) ReplayerOption {
	return func(r *Replayer) {
		if enabled {
			r.passthrough = http.DefaultTransport
		} else {
			r.passthrough = nil
		}
	}
}

// WithVerbose enables verbose logging of request matching.
func WithVerbose(enabled bool) ReplayerOption {
	return func(r *Replayer) {
		r.verbose = enabled
	}
}

// NewReplayer creates a replayer from a HAR log. Entries sharing a key are
// served in recording order; the last one is repeated once exhausted.
func NewReplayer(har *HARLog, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		exactMatches: make(map[string][]*HAREntry),
		pathMatches:  make(map[string][]*HAREntry),
		served:       make(map[string]int),
	}

	for _, opt := range opts {
		opt(r)
	}

	// Index entries for fast lookup
	for i := range har.Entries {
		entry := &har.Entries[i]
		method := strings.ToUpper(entry.Request.Method)

		exactKey := method + " " + entry.Request.URL
		r.exactMatches[exactKey] = append(r.exactMatches[exactKey], entry)

		if pathKey, ok := pathMatchKey(method, entry.Request.URL); ok {
			r.pathMatches[pathKey] = append(r.pathMatches[pathKey], entry)
		}
	}

	return r
}

// RoundTrip implements http.RoundTripper.
func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	reqURL := req.URL.String()
	method := strings.ToUpper(req.Method)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	r.mu.Lock()
	r.requests = append(r.requests, RecordedRequest{Method: method, URL: reqURL, Body: string(body)})
	entry := r.lookup(method, reqURL)
	r.mu.Unlock()

	if entry == nil {
		if r.verbose {
			log.Printf("[replayer] no match for: %s %s", method, reqURL)
		}

		if r.passthrough != nil {
			return r.passthrough.RoundTrip(req)
		}

		return notFound(req), nil
	}

	if r.verbose {
		log.Printf("[replayer] matched: %s %s -> %d", method, reqURL, entry.Response.Status)
	}

	return buildResponse(req, entry), nil
}

// Requests returns every request seen so far, in order.
func (r *Replayer) Requests() []RecordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecordedRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

// Stats returns statistics about the replayer's index.
func (r *Replayer) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]int{
		"exact_matches": len(r.exactMatches),
		"path_matches":  len(r.pathMatches),
		"requests":      len(r.requests),
	}
}

// lookup must be called with r.mu held.
func (r *Replayer) lookup(method, reqURL string) *HAREntry {
	exactKey := method + " " + reqURL
	if entries, ok := r.exactMatches[exactKey]; ok {
		return r.next(exactKey, entries)
	}

	pathKey, ok := pathMatchKey(method, reqURL)
	if !ok {
		return nil
	}
	if entries, ok := r.pathMatches[pathKey]; ok {
		return r.next(pathKey, entries)
	}

	return nil
}

func (r *Replayer) next(key string, entries []*HAREntry) *HAREntry {
	i := r.served[key]
	r.served[key] = i + 1
	if i >= len(entries) {
		i = len(entries) - 1
	}
	return entries[i]
}

func pathMatchKey(method, rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return method + " " + parsed.Scheme + "://" + parsed.Host + parsed.Path, true
}

// buildResponse turns a recorded HAR entry into an *http.Response.
func buildResponse(req *http.Request, entry *HAREntry) *http.Response {
	resp := entry.Response

	// Decode body if base64 encoded
	var body []byte
	if resp.Content.Encoding == "base64" {
		var err error
		body, err = base64.StdEncoding.DecodeString(resp.Content.Text)
		if err != nil {
			body = []byte(resp.Content.Text)
		}
	} else {
		body = []byte(resp.Content.Text)
	}

	header := make(http.Header)
	for _, h := range resp.Headers {
		name := strings.ToLower(h.Name)
		// The body is served decoded and re-measured
		if name == "content-encoding" || name == "content-length" {
			continue
		}
		header.Add(h.Name, h.Value)
	}
	if header.Get("Content-Type") == "" && resp.Content.MimeType != "" {
		header.Set("Content-Type", resp.Content.MimeType)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// notFound builds a 404 response for unmatched requests.
func notFound(req *http.Request) *http.Response {
	body := []byte(`{"error": "no recording found for URL"}`)

	return &http.Response{
		Status:        "404 Not Found",
		StatusCode:    http.StatusNotFound,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
