package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

type Credentials struct {
	Login    string
	Password string
}

type Session struct {
	ID            string
	ProviderCode  ProviderCode
	Authenticated bool
	StartedAt     time.Time
}

// Bill is one invoice listed on a portal. A Bill is only kept when all three
// fields are set, see IsValid.
type Bill struct {
	Date   time.Time
	Amount decimal.Decimal // EUR
	PdfURL string
}

func (b Bill) IsValid() bool {
	return !b.Date.IsZero() && !b.Amount.IsZero() && b.PdfURL != ""
}
