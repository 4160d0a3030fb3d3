package numericable

// CSS Selectors for the Numericable customer portal
const (
	// Login page (moncompte)
	SelectorAppKeyInput = `#PostForm input[name="appkey"]`

	// Credential submission response (connexion)
	SelectorAccessTokenInput = `#accessToken`

	// Billing page
	SelectorFirstBill     = `#firstFact`
	SelectorFirstBillDate = `h2 span`
	SelectorOtherBills    = `#facture > div:not(#firstFact)`
	SelectorOtherBillDate = `h3`
	SelectorBillAmount    = `p.right`
	SelectorBillLink      = `a.linkBtn`
)
