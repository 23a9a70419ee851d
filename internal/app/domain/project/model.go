package project

// TransactionType distinguishes rentals from sales.
type TransactionType string

const (
	TransactionRental TransactionType = "レンタル"
	TransactionSale   TransactionType = "販売"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionRental || t == TransactionSale
}

// Status is the contract lifecycle stage.
type Status string

const (
	StatusSigned       Status = "成約"
	StatusWorkComplete Status = "作業完了"
	StatusShipped      Status = "発送済"
	StatusInstalled    Status = "設置済"
	StatusRemoved      Status = "撤去済"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusSigned, StatusWorkComplete, StatusShipped, StatusInstalled, StatusRemoved}

// MaxAccessories is the number of accessory slots kept per project.
const MaxAccessories = 10

// Project is one rental or sale engagement. Dates are yyyy-mm-dd text and nil
// when unset.
type Project struct {
	ID        int64  `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`

	Number          string          `json:"pj_number"`
	ProjectDate     *string         `json:"project_date"`
	TransactionType TransactionType `json:"transaction_type"`
	ContractStatus  Status          `json:"contract_status"`

	SalesPerson       string `json:"sales_person"`
	DealerName        string `json:"dealer_name"`
	DealerContact     string `json:"dealer_contact"`
	GeneralContractor string `json:"general_contractor"`

	SiteName             string `json:"site_name"`
	InstallationLocation string `json:"installation_location"`
	InstallationAddress  string `json:"installation_address"`
	ShippingAddress      string `json:"shipping_address"`

	ProductCategory string   `json:"product_category"`
	STB             string   `json:"stb"`
	MainProductName string   `json:"main_product_name"`
	ProductSpec     string   `json:"product_spec"`
	Accessories     []string `json:"accessories"`

	InstallationPartner string `json:"installation_partner"`
	RemovalPartner      string `json:"removal_partner"`

	ContractDate              *string `json:"contract_date"`
	SetupCompletionDate       *string `json:"setup_completion_date"`
	ShippingDate              *string `json:"shipping_date"`
	InstallationRequestDate   *string `json:"installation_request_date"`
	InstallationScheduledDate *string `json:"installation_scheduled_date"`
	InstallationDate          *string `json:"installation_date"`
	RemovalRequestDate        *string `json:"removal_request_date"`
	RemovalScheduledDate      *string `json:"removal_scheduled_date"`
	RemovalDate               *string `json:"removal_date"`
	RemovalInspectionDate     *string `json:"removal_inspection_date"`
	WarrantyEndDate           *string `json:"warranty_end_date"`

	Memo string `json:"memo"`

	QuoteFileURL    *string `json:"quote_file_url"`
	QuoteFileName   *string `json:"quote_file_name"`
	InvoiceFileURL  *string `json:"invoice_file_url"`
	InvoiceFileName *string `json:"invoice_file_name"`
}

// DateRef points at one nullable date field.
type DateRef struct {
	Column string
	Value  **string
}

// Dates returns references to every date field of p.
func (p *Project) Dates() []DateRef {
	return []DateRef{
		{"project_date", &p.ProjectDate},
		{"contract_date", &p.ContractDate},
		{"setup_completion_date", &p.SetupCompletionDate},
		{"shipping_date", &p.ShippingDate},
		{"installation_request_date", &p.InstallationRequestDate},
		{"installation_scheduled_date", &p.InstallationScheduledDate},
		{"installation_date", &p.InstallationDate},
		{"removal_request_date", &p.RemovalRequestDate},
		{"removal_scheduled_date", &p.RemovalScheduledDate},
		{"removal_date", &p.RemovalDate},
		{"removal_inspection_date", &p.RemovalInspectionDate},
		{"warranty_end_date", &p.WarrantyEndDate},
	}
}

// RequiredValues maps each mandatory field to its current value.
func (p Project) RequiredValues() map[string]string {
	return map[string]string{
		"transaction_type":      string(p.TransactionType),
		"sales_person":          p.SalesPerson,
		"dealer_name":           p.DealerName,
		"installation_location": p.InstallationLocation,
		"product_category":      p.ProductCategory,
	}
}

// ApplyTransactionRules clears the warranty date on rentals.
func (p *Project) ApplyTransactionRules() {
	if p.TransactionType == TransactionRental {
		p.WarrantyEndDate = nil
	}
}

// CompactAccessories drops blank slots and caps the list at MaxAccessories.
func (p *Project) CompactAccessories() {
	out := make([]string, 0, len(p.Accessories))
	for _, a := range p.Accessories {
		if a == "" {
			continue
		}
		out = append(out, a)
		if len(out) == MaxAccessories {
			break
		}
	}
	p.Accessories = out
}

// CloneSource returns a copy to seed a new project with. Identity, number,
// status, project date, creation time and attached files are not carried over.
func (p Project) CloneSource() Project {
	c := p
	c.ID = 0
	c.CreatedAt = ""
	c.Number = ""
	c.ContractStatus = ""
	c.ProjectDate = nil
	c.QuoteFileURL, c.QuoteFileName = nil, nil
	c.InvoiceFileURL, c.InvoiceFileName = nil, nil
	c.Accessories = append([]string(nil), p.Accessories...)
	for _, ref := range c.Dates() {
		if *ref.Value != nil {
			v := **ref.Value
			*ref.Value = &v
		}
	}
	return c
}
