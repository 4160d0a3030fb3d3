// Package provider defines the common structs and logic used throughout
// billing portal implementations.
package provider

import "context"

type BillScraper interface {
	// Login authenticates with the portal and establishes a session
	Login(ctx context.Context, creds Credentials) (*Session, error)

	// FetchBillsPage returns the raw billing history page of an authenticated session
	FetchBillsPage(ctx context.Context) (string, error)

	// ParseBills extracts the bills listed on a billing history page
	ParseBills(html string) ([]Bill, error)
}

type ProviderCode string

const (
	ProviderNumericable ProviderCode = "NUMERICABLE"
)
