package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(method, url string, status int, body string) HAREntry {
	return HAREntry{
		Request:  HARRequest{Method: method, URL: url},
		Response: HARResponse{Status: status, Content: HARContent{MimeType: "text/html", Text: body}},
	}
}

func do(t *testing.T, rt http.RoundTripper, method, url, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestReplayer_ExactMatchWinsOverPath(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx", 200, "login form"),
		entry("GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx?accessToken=TK&link=HOME", 200, "home"),
	}})

	_, body := do(t, r, "GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx?accessToken=TK&link=HOME", "")
	assert.Equal(t, "home", body)

	_, body = do(t, r, "GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx", "")
	assert.Equal(t, "login form", body)
}

func TestReplayer_PathFallback(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx?accessToken=%5BREDACTED%5D&link=HOME", 200, "home"),
	}})

	resp, body := do(t, r, "GET", "https://moncompte.numericable.fr/pages/connection/Login.aspx?accessToken=real&link=HOME", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "home", body)
}

func TestReplayer_MethodMatters(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("POST", "https://connexion.numericable.fr/Oauth/login/", 200, "token"),
	}})

	resp, _ := do(t, r, "GET", "https://connexion.numericable.fr/Oauth/login/", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplayer_ServesInRecordingOrderThenRepeatsLast(t *testing.T) {
	u := "https://moncompte.numericable.fr/pages/billing/Invoice.aspx"
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("GET", u, 302, "first"),
		entry("GET", u, 200, "second"),
	}})

	var got []string
	for i := 0; i < 3; i++ {
		_, body := do(t, r, "GET", u, "")
		got = append(got, body)
	}

	assert.Equal(t, []string{"first", "second", "second"}, got)
}

func TestReplayer_RecordsRequests(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("POST", "https://connexion.numericable.fr/Oauth/login/", 200, "token"),
	}})

	do(t, r, "post", "https://connexion.numericable.fr/Oauth/login/", "login=jdupont&pwd=s3cret")
	do(t, r, "GET", "https://connexion.numericable.fr/unknown", "")

	reqs := r.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, RecordedRequest{
		Method: "POST",
		URL:    "https://connexion.numericable.fr/Oauth/login/",
		Body:   "login=jdupont&pwd=s3cret",
	}, reqs[0])
	assert.Empty(t, reqs[1].Body)

	stats := r.Stats()
	assert.Equal(t, 1, stats["exact_matches"])
	assert.Equal(t, 2, stats["requests"])
}

func TestReplayer_Base64Body(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{{
		Request: HARRequest{Method: "GET", URL: "https://moncompte.numericable.fr/pdf/a.pdf"},
		Response: HARResponse{
			Status:  200,
			Headers: []HARHeader{{Name: "Content-Length", Value: "999"}, {Name: "Content-Type", Value: "application/pdf"}},
			Content: HARContent{MimeType: "application/pdf", Text: "JVBERi0xLjQK", Encoding: "base64"},
		},
	}}})

	resp, body := do(t, r, "GET", "https://moncompte.numericable.fr/pdf/a.pdf", "")

	assert.Equal(t, "%PDF-1.4\n", body)
	assert.Equal(t, int64(len(body)), resp.ContentLength)
	assert.Empty(t, resp.Header.Get("Content-Length"))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestReplayer_UnmatchedIs404(t *testing.T) {
	r := NewReplayer(&HARLog{})

	resp, body := do(t, r, "GET", "https://moncompte.numericable.fr/", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "no recording found")
}
