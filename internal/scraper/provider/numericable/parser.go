package numericable

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
)

const (
	// -- BILLS --

	CurrencySuffix = "€"

	BillDateLayout = "02/01/2006"

	// Other bills carry a "du " label in front of their date.
	otherBillDatePrefixLen = 3
)

var amountReplacer = strings.NewReplacer(
	CurrencySuffix, "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	",", ".",
)

// billBlock holds the raw text of one bill entry before conversion.
type billBlock struct {
	DateText   string
	AmountText string
	Href       string
	HasHref    bool
}

// ToBill converts a raw bill block into a Bill. Fields that cannot be parsed
// are left at their zero value so the caller can drop the record.
func (b *billBlock) ToBill(accountURL string) provider.Bill {
	var bill provider.Bill

	if date, err := ParseBillDate(b.DateText); err == nil {
		bill.Date = date
	}

	if amount, err := ParseFrenchAmount(b.AmountText); err == nil {
		bill.Amount = amount
	}

	if b.HasHref && strings.TrimSpace(b.Href) != "" {
		bill.PdfURL = strings.TrimRight(accountURL, "/") + strings.TrimSpace(b.Href)
	}

	return bill
}

// --- PUBLIC API ---

// ParseAppKey extracts the ephemeral app key from the login page form.
func ParseAppKey(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrParsingFailed, err)
	}

	appKey := strings.TrimSpace(doc.Find(SelectorAppKeyInput).AttrOr("value", ""))
	if appKey == "" {
		return "", fmt.Errorf("%w: could not retrieve app key with selector: %s", provider.ErrParsingFailed, SelectorAppKeyInput)
	}

	return appKey, nil
}

// ParseAccessToken extracts the access token from the credential submission
// response.
func ParseAccessToken(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrParsingFailed, err)
	}

	token := strings.TrimSpace(doc.Find(SelectorAccessTokenInput).AttrOr("value", ""))
	if token == "" {
		return "", fmt.Errorf("%w: token fetching failed with selector: %s", provider.ErrParsingFailed, SelectorAccessTokenInput)
	}

	return token, nil
}

// ParseBills parses the billing history page. The first bill block comes
// first; malformed entries are dropped one by one and never abort the parse.
func ParseBills(html string, accountURL string) ([]provider.Bill, error) {
	return parseBills(html, accountURL, logging.GetLogger().WithField(logging.FieldProvider, provider.ProviderNumericable))
}

func parseBills(html string, accountURL string, log logging.Logger) ([]provider.Bill, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrParsingFailed, err)
	}

	log.Info("Parsing bill page")

	blocks := extractBillBlocks(doc)
	bills := make([]provider.Bill, 0, len(blocks))

	for i, block := range blocks {
		bill := block.ToBill(accountURL)
		if !bill.IsValid() {
			log.Debug("dropping incomplete bill",
				logging.F("index", i),
				logging.F("date_text", block.DateText),
				logging.F("amount_text", block.AmountText),
				logging.F("has_link", bill.PdfURL != ""),
			)
			continue
		}
		bills = append(bills, bill)
	}

	log.Info(fmt.Sprintf("%d bill(s) retrieved", len(bills)), logging.F(logging.FieldCount, len(bills)))
	if len(bills) == 0 {
		log.Info("no bills retrieved")
	}

	return bills, nil
}

// --- PRIVATE DOMAIN LOGIC ---

func extractBillBlocks(doc *goquery.Document) []billBlock {
	var blocks []billBlock

	if first := doc.Find(SelectorFirstBill).First(); first.Length() > 0 {
		block := parseBlock(first)
		block.DateText = first.Find(SelectorFirstBillDate).First().Text()
		blocks = append(blocks, block)
	}

	doc.Find(SelectorOtherBills).Each(func(_ int, s *goquery.Selection) {
		block := parseBlock(s)
		block.DateText = stripDatePrefix(s.Find(SelectorOtherBillDate).First().Text())
		blocks = append(blocks, block)
	})

	return blocks
}

// parseBlock reads the amount and link shared by both bill layouts.
func parseBlock(s *goquery.Selection) billBlock {
	href, exists := s.Find(SelectorBillLink).First().Attr("href")
	return billBlock{
		AmountText: s.Find(SelectorBillAmount).First().Text(),
		Href:       href,
		HasHref:    exists,
	}
}

func stripDatePrefix(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= otherBillDatePrefixLen {
		return ""
	}
	return strings.TrimSpace(string(runes[otherBillDatePrefixLen:]))
}

// --- LOW LEVEL UTILITIES ---

// ParseFrenchAmount parses a euro amount written with a comma decimal
// separator and a trailing currency sign, e.g. "45,67 €". Text after the
// sign ("45,67 € TTC") is ignored.
func ParseFrenchAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if before, after, found := strings.Cut(s, CurrencySuffix); found {
		if strings.TrimSpace(before) != "" {
			s = before
		} else {
			s = after
		}
	}

	cleanStr := amountReplacer.Replace(strings.TrimSpace(s))
	if cleanStr == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	return decimal.NewFromString(cleanStr)
}

// ParseBillDate parses a DD/MM/YYYY date strictly.
func ParseBillDate(s string) (time.Time, error) {
	cleanStr := strings.TrimSpace(s)
	t, err := time.Parse(BillDateLayout, cleanStr)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
