package customer

import "github.com/monitaro/pjmanager/internal/app/forms"

// Customer is a dealer the business trades with. Customers are created once
// and never edited.
type Customer struct {
	ID           int64        `json:"id,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
	DealerCode   string       `json:"dealer_code"`
	CompanyName  string       `json:"company_name"`
	OfficeName   string       `json:"office_name"`
	PostalCode   string       `json:"postal_code"`
	Address      string       `json:"address"`
	Tel          string       `json:"tel"`
	Fax          string       `json:"fax"`
	ContactName  string       `json:"contact_name"`
	ContactEmail string       `json:"contact_email"`
	PaymentTerms string       `json:"payment_terms"`
	CreditLimit  forms.Number `json:"credit_limit"`
	Remarks      string       `json:"remarks"`
}
