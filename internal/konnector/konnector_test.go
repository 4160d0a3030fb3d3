package konnector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/reconcile"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	loginErr error
	fetchErr error
	parseErr error
	bills    []provider.Bill
	calls    []string
}

func (f *fakeScraper) Login(_ context.Context, _ provider.Credentials) (*provider.Session, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &provider.Session{ID: "s", ProviderCode: provider.ProviderNumericable, Authenticated: true}, nil
}

func (f *fakeScraper) FetchBillsPage(_ context.Context) (string, error) {
	f.calls = append(f.calls, "fetch")
	return "<html></html>", f.fetchErr
}

func (f *fakeScraper) ParseBills(_ string) ([]provider.Bill, error) {
	f.calls = append(f.calls, "parse")
	return f.bills, f.parseErr
}

type fakeSaver struct {
	err    error
	saved  []provider.Bill
	params Params
	calls  int
}

func (f *fakeSaver) SaveBills(_ context.Context, bills []provider.Bill, params Params) error {
	f.calls++
	f.saved = bills
	f.params = params
	return f.err
}

type linkCall struct {
	bill     provider.Bill
	selector string
	policy   reconcile.Policy
}

type fakeLinker struct {
	failAt int // 1-based call index that fails, 0 never
	calls  []linkCall
}

func (f *fakeLinker) LinkBill(_ context.Context, bill provider.Bill, selector string, policy reconcile.Policy) error {
	f.calls = append(f.calls, linkCall{bill: bill, selector: selector, policy: policy})
	if f.failAt == len(f.calls) {
		return errors.New("linker unavailable")
	}
	return nil
}

type recordingTerminator struct {
	codes []string
}

func (r *recordingTerminator) Terminate(code string) {
	r.codes = append(r.codes, code)
}

func testBills(n int) []provider.Bill {
	bills := make([]provider.Bill, n)
	for i := range bills {
		bills[i] = provider.Bill{
			Date:   time.Date(2021, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewFromInt(int64(10 + i)),
			PdfURL: fmt.Sprintf("https://moncompte.numericable.fr/pdf/%d.pdf", i),
		}
	}
	return bills
}

type harness struct {
	scraper    *fakeScraper
	saver      *fakeSaver
	linker     *fakeLinker
	terminator *recordingTerminator
	logger     *logging.MockLogger
	konnector  *Konnector
}

func newHarness(scraper *fakeScraper, linker *fakeLinker) *harness {
	h := &harness{
		scraper:    scraper,
		saver:      &fakeSaver{},
		linker:     linker,
		terminator: &recordingTerminator{},
		logger:     logging.NewMockLogger(),
	}
	h.konnector = New(h.scraper, h.saver, h.linker,
		WithTerminator(h.terminator),
		WithLogger(h.logger),
	)
	return h
}

var testParams = Params{
	Credentials: provider.Credentials{Login: "jdupont", Password: "s3cret"},
	Folder:      "/tmp/bills",
}

func TestRun_Success(t *testing.T) {
	bills := testBills(3)
	h := newHarness(&fakeScraper{bills: bills}, &fakeLinker{})

	got, err := h.konnector.Run(context.Background(), testParams)

	require.NoError(t, err)
	assert.Equal(t, bills, got)
	assert.Equal(t, []string{"login", "fetch", "parse"}, h.scraper.calls)
	assert.Equal(t, 1, h.saver.calls)
	assert.Equal(t, bills, h.saver.saved)
	assert.Equal(t, testParams, h.saver.params)
	assert.Empty(t, h.terminator.codes)
}

func TestRun_LinksOncePerBillWithFixedPolicy(t *testing.T) {
	bills := testBills(4)
	h := newHarness(&fakeScraper{bills: bills}, &fakeLinker{})

	_, err := h.konnector.Run(context.Background(), testParams)
	require.NoError(t, err)

	require.Len(t, h.linker.calls, len(bills))
	for i, call := range h.linker.calls {
		assert.Equal(t, bills[i], call.bill)
		assert.Empty(t, call.selector)
		assert.Equal(t, 1, call.policy.MinDateDelta)
		assert.Equal(t, 1, call.policy.MaxDateDelta)
		assert.True(t, decimal.RequireFromString("0.1").Equal(call.policy.AmountDelta))
		assert.Equal(t, []string{"numericable"}, call.policy.Identifiers)
	}
}

func TestRun_NoBills(t *testing.T) {
	h := newHarness(&fakeScraper{bills: []provider.Bill{}}, &fakeLinker{})

	got, err := h.konnector.Run(context.Background(), testParams)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, h.saver.calls)
	assert.Empty(t, h.linker.calls)
}

func TestRun_Failures(t *testing.T) {
	loginFailed := &provider.ScraperError{
		ProviderCode: provider.ProviderNumericable,
		Operation:    "FetchAppKey",
		Cause:        fmt.Errorf("%w: %w", provider.ErrLoginFailed, provider.ErrParsingFailed),
	}
	redeemFailed := &provider.ScraperError{
		ProviderCode: provider.ProviderNumericable,
		Operation:    "AuthenticateWithToken",
		Cause:        fmt.Errorf("%w: status 500", provider.ErrUnknown),
	}

	tests := []struct {
		name      string
		scraper   *fakeScraper
		saveErr   error
		wantCode  string
		wantCalls []string
		wantSaves int
	}{
		{
			name:      "app key or token missing",
			scraper:   &fakeScraper{loginErr: loginFailed},
			wantCode:  CodeLoginFailed,
			wantCalls: []string{"login"},
		},
		{
			name:      "token redemption fails",
			scraper:   &fakeScraper{loginErr: redeemFailed},
			wantCode:  CodeUnknownError,
			wantCalls: []string{"login"},
		},
		{
			name:      "bills page unavailable",
			scraper:   &fakeScraper{fetchErr: errors.New("502")},
			wantCode:  CodeUnknownError,
			wantCalls: []string{"login", "fetch"},
		},
		{
			name:      "parse fails",
			scraper:   &fakeScraper{parseErr: provider.ErrParsingFailed},
			wantCode:  CodeUnknownError,
			wantCalls: []string{"login", "fetch", "parse"},
		},
		{
			name:      "save fails",
			scraper:   &fakeScraper{bills: testBills(2)},
			saveErr:   errors.New("disk full"),
			wantCode:  CodeUnknownError,
			wantCalls: []string{"login", "fetch", "parse"},
			wantSaves: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.scraper, &fakeLinker{})
			h.saver.err = tc.saveErr

			got, err := h.konnector.Run(context.Background(), testParams)

			assert.Nil(t, got)
			var te *TerminalError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tc.wantCode, te.Code)
			assert.Equal(t, tc.wantCode, CodeOf(err))
			assert.Equal(t, []string{tc.wantCode}, h.terminator.codes)
			assert.Equal(t, tc.wantCalls, h.scraper.calls)
			assert.Equal(t, tc.wantSaves, h.saver.calls)
			assert.Empty(t, h.linker.calls)
			assert.Len(t, h.logger.GetEntriesByLevel("ERROR"), 1)
		})
	}
}

func TestRun_LinkFailureHalts(t *testing.T) {
	h := newHarness(&fakeScraper{bills: testBills(4)}, &fakeLinker{failAt: 2})

	got, err := h.konnector.Run(context.Background(), testParams)

	assert.Nil(t, got)
	assert.Equal(t, CodeUnknownError, CodeOf(err))
	assert.Equal(t, []string{CodeUnknownError}, h.terminator.codes)
	// Bills after the failing one are never linked
	assert.Len(t, h.linker.calls, 2)
}

func TestTerminalError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&TerminalError{Code: CodeUnknownError, Cause: cause})

	assert.Equal(t, "UNKNOWN_ERROR: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, CodeOf(cause))
}

func TestTerminatorFunc(t *testing.T) {
	var got string
	TerminatorFunc(func(code string) { got = code }).Terminate(CodeLoginFailed)

	assert.Equal(t, CodeLoginFailed, got)
}
