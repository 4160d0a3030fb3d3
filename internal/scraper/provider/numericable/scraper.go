// Package numericable defines the scraper and parsing logic to process the
// Numericable customer portal.
package numericable

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
)

const (
	DefaultAccountURL    = "https://moncompte.numericable.fr"
	DefaultConnectionURL = "https://connexion.numericable.fr"

	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	maxRedirects = 10

	pathLogin   = "/pages/connection/Login.aspx"
	pathInvoice = "/pages/billing/Invoice.aspx"
	pathOAuth   = "/Oauth/Oauth.php"
	pathOLogin  = "/Oauth/login/"
)

type options struct {
	accountURL       string
	connectionURL    string
	timeout          time.Duration
	userAgent        string
	transport        http.RoundTripper
	cloudflareBypass bool
	logger           logging.Logger
}

type Option func(*options)

// WithAccountURL overrides the account portal base URL.
func WithAccountURL(u string) Option {
	return func(o *options) { o.accountURL = u }
}

// WithConnectionURL overrides the authentication portal base URL.
func WithConnectionURL(u string) Option {
	return func(o *options) { o.connectionURL = u }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTransport replaces the HTTP transport, e.g. with a HAR replayer.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithCloudflareBypass wraps the transport so requests look like a browser
// to Cloudflare's bot checks.
func WithCloudflareBypass(enabled bool) Option {
	return func(o *options) { o.cloudflareBypass = enabled }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Scraper drives the portal's login handshake and bill retrieval. A Scraper
// owns one cookie jar and must not be shared between concurrent runs.
type Scraper struct {
	http          *resty.Client
	accountURL    string
	connectionURL string
	log           logging.Logger
	session       *provider.Session
}

var _ provider.BillScraper = (*Scraper)(nil)

func NewScraper(opts ...Option) (*Scraper, error) {
	o := options{
		accountURL:    DefaultAccountURL,
		connectionURL: DefaultConnectionURL,
		timeout:       DefaultTimeout,
		userAgent:     DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.GetLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(o.timeout)
	client.SetHeader("user-agent", o.userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))

	if o.transport != nil {
		client.SetTransport(o.transport)
	}
	if o.cloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	log := o.logger.WithField(logging.FieldProvider, provider.ProviderNumericable)
	instrumentClient(client, log)

	return &Scraper{
		http:          client,
		accountURL:    o.accountURL,
		connectionURL: o.connectionURL,
		log:           log,
	}, nil
}

// Close releases idle connections held by the session.
func (s *Scraper) Close() error {
	s.http.GetClient().CloseIdleConnections()
	return nil
}

// Session returns the current session, nil before a successful Login.
func (s *Scraper) Session() *provider.Session {
	return s.session
}

// AccountURL is the base URL bill links are resolved against.
func (s *Scraper) AccountURL() string {
	return s.accountURL
}

// Login runs the portal handshake: app key, OAuth initiation, credential
// exchange, then token redemption. Failures before the token is obtained are
// reported as provider.ErrLoginFailed, redemption failures as
// provider.ErrUnknown.
func (s *Scraper) Login(ctx context.Context, creds provider.Credentials) (*provider.Session, error) {
	s.session = nil

	appKey, err := s.fetchAppKey(ctx)
	if err != nil {
		return nil, s.wrap("FetchAppKey", provider.ErrLoginFailed, err, "GET "+pathLogin)
	}

	accessToken, err := s.fetchAccessToken(ctx, appKey, creds)
	if err != nil {
		return nil, s.wrap("FetchAccessToken", provider.ErrLoginFailed, err, "POST "+pathOAuth+", POST "+pathOLogin)
	}

	if err := s.authenticateWithToken(ctx, accessToken); err != nil {
		return nil, s.wrap("AuthenticateWithToken", provider.ErrUnknown, err, "GET "+pathLogin+"?link=HOME")
	}

	s.session = &provider.Session{
		ID:            uuid.NewString(),
		ProviderCode:  provider.ProviderNumericable,
		Authenticated: true,
		StartedAt:     time.Now(),
	}
	return s.session, nil
}

// FetchBillsPage returns the billing history page HTML.
func (s *Scraper) FetchBillsPage(ctx context.Context) (string, error) {
	if s.session == nil || !s.session.Authenticated {
		return "", s.wrap("FetchBillsPage", provider.ErrUnknown, provider.ErrSessionExpired, "")
	}

	s.log.Info("Fetching bills page")
	res, err := s.get(ctx, s.accountURL+pathInvoice, nil)
	if err != nil {
		return "", s.wrap("FetchBillsPage", provider.ErrUnknown, err, "GET "+pathInvoice)
	}

	return res.String(), nil
}

// ParseBills parses a billing page fetched by this scraper.
func (s *Scraper) ParseBills(html string) ([]provider.Bill, error) {
	return parseBills(html, s.accountURL, s.log)
}

// Download fetches a bill document through the authenticated session.
func (s *Scraper) Download(ctx context.Context, url string) ([]byte, error) {
	res, err := s.get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return res.Body(), nil
}

// --- HANDSHAKE STEPS ---

func (s *Scraper) fetchAppKey(ctx context.Context) (string, error) {
	s.log.Info("Fetching app key")

	res, err := s.get(ctx, s.accountURL+pathLogin, nil)
	if err != nil {
		return "", err
	}

	return ParseAppKey(res.String())
}

func (s *Scraper) fetchAccessToken(ctx context.Context, appKey string, creds provider.Credentials) (string, error) {
	s.log.Info("Logging in with app key")

	// The OAuth initiation response only matters for the cookies it sets.
	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"action":   "connect",
			"linkSSO":  s.connectionURL + pathLogin + "?link=HOME",
			"appkey":   appKey,
			"isMobile": "",
		}).
		Post(s.connectionURL + pathOAuth)
	if err != nil {
		return "", classify(err)
	}
	s.log.Debug("oauth initiation answered", logging.F(logging.FieldStatus, res.StatusCode()))

	res, err = s.postForm(ctx, s.connectionURL+pathOLogin, map[string]string{
		"login": creds.Login,
		"pwd":   creds.Password,
	})
	if err != nil {
		return "", err
	}

	return ParseAccessToken(res.String())
}

func (s *Scraper) authenticateWithToken(ctx context.Context, accessToken string) error {
	s.log.Info("Authenticating by token")

	_, err := s.get(ctx, s.accountURL+pathLogin, map[string]string{
		"link":        "HOME",
		"accessToken": accessToken,
	})
	return err
}

// --- LOW LEVEL UTILITIES ---

func (s *Scraper) get(ctx context.Context, url string, query map[string]string) (*resty.Response, error) {
	req := s.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	res, err := req.Get(url)
	if err != nil {
		return nil, classify(err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, res.StatusCode())
	}
	return res, nil
}

func (s *Scraper) postForm(ctx context.Context, url string, form map[string]string) (*resty.Response, error) {
	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(url)
	if err != nil {
		return nil, classify(err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("POST %s: unexpected status %d", url, res.StatusCode())
	}
	return res, nil
}

// wrap tags cause with its tier. details names the request(s) of the step.
func (s *Scraper) wrap(operation string, tier error, cause error, details string) error {
	return &provider.ScraperError{
		ProviderCode: provider.ProviderNumericable,
		Operation:    operation,
		Cause:        fmt.Errorf("%w: %w", tier, cause),
		Details:      details,
	}
}

// classify tags transport timeouts with provider.ErrTimeout.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", provider.ErrTimeout, err)
	}
	return err
}
