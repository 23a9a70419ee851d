package product

import "github.com/monitaro/pjmanager/internal/app/forms"

// Product is a catalog item. Code is unique across the catalog. Optional text
// and price fields are nil when blank.
type Product struct {
	ID                 int64        `json:"id,omitempty"`
	CreatedAt          string       `json:"created_at,omitempty"`
	Code               string       `json:"product_code"`
	Name               string       `json:"product_name"`
	Category1          *string      `json:"category_1"`
	Category2          *string      `json:"category_2"`
	CategoryMain       string       `json:"category_main"`
	ModelNumber        *string      `json:"model_number"`
	SizeInfo           *string      `json:"size_info"`
	Manufacturer       *string      `json:"manufacturer"`
	RentalPriceMonthly forms.Number `json:"rental_price_monthly"`
	SalesPrice         forms.Number `json:"sales_price"`
	CostPrice          forms.Number `json:"cost_price"`
	Remarks            *string      `json:"remarks"`
}

// OptionalText returns the nullable text fields of p.
func (p *Product) OptionalText() []**string {
	return []**string{&p.Category1, &p.Category2, &p.ModelNumber, &p.SizeInfo, &p.Manufacturer, &p.Remarks}
}
