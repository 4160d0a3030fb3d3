package browser

import (
	"testing"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPage creates a Rod browser and page for testing. The browser connects
// to a headless Chromium instance. The page is closed via t.Cleanup.
func setupPage(t *testing.T) *rod.Page {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	browser := rod.New().MustConnect()
	t.Cleanup(func() { browser.MustClose() })

	page := browser.MustPage()
	t.Cleanup(func() { page.MustClose() })

	return page
}

func setBody(page *rod.Page, html string) {
	page.MustNavigate("about:blank").MustWaitLoad()
	page.MustEval(`(html) => { document.body.innerHTML = html; }`, html)
}

func TestInlineIFrames_NoIframe(t *testing.T) {
	page := setupPage(t)
	setBody(page, `<div id="facture"><p class="right">45,67 €</p></div>`)

	html, count, err := InlineIFrames(page)

	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Contains(t, html, `id="facture"`)
	assert.NotContains(t, html, "data-captured-iframe")
}

func TestInlineIFrames_SameOrigin(t *testing.T) {
	page := setupPage(t)
	setBody(page, `<iframe name="content" srcdoc="<p id='inner'>Mes factures</p>"></iframe>`)
	page.MustElement("iframe").MustFrame().MustElement("#inner")

	html, count, err := InlineIFrames(page)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Contains(t, html, `data-captured-iframe="true"`)
	assert.Contains(t, html, `data-iframe-name="content"`)
	assert.Contains(t, html, "Mes factures")
	assert.NotContains(t, html, "<iframe")
}

func TestFindInFrames(t *testing.T) {
	page := setupPage(t)
	setBody(page, `<p>outer</p><iframe srcdoc="<form><input id='login' name='login'></form>"></iframe>`)
	page.MustElement("iframe").MustFrame().MustElement("#login")

	el, err := FindInFrames(page, "#login")
	require.NoError(t, err)
	assert.Equal(t, "login", *el.MustAttribute("name"))

	_, err = FindInFrames(page, "#pwd")
	assert.ErrorContains(t, err, "not found")
}

func TestFill(t *testing.T) {
	page := setupPage(t)
	setBody(page, `<input id="login" value="previous">`)

	require.NoError(t, Fill(page, "#login", "jdupont", false))

	assert.Equal(t, "jdupont", page.MustElement("#login").MustProperty("value").String())
}
