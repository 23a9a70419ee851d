// Package export renders projects for people: the confirmation view, the
// notification email and the PDF sheet.
package export

import (
	"strconv"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
)

// Unset is shown in the confirmation view for a field with no value.
const Unset = "未入力"

// Entry is one labelled project value.
type Entry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type field struct {
	key   string
	label string
	get   func(project.Project) string
}

func date(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// catalog lists every project field in display order. Accessory slots are
// expanded separately.
var catalog = []field{
	{"pj_number", "PJ番号", func(p project.Project) string { return p.Number }},
	{"project_date", "案件発生日", func(p project.Project) string { return date(p.ProjectDate) }},
	{"transaction_type", "取引形態", func(p project.Project) string { return string(p.TransactionType) }},
	{"contract_status", "契約ステータス", func(p project.Project) string { return string(p.ContractStatus) }},
	{"sales_person", "営業担当", func(p project.Project) string { return p.SalesPerson }},
	{"dealer_name", "ディーラー名", func(p project.Project) string { return p.DealerName }},
	{"dealer_contact", "ディーラー担当者", func(p project.Project) string { return p.DealerContact }},
	{"general_contractor", "ゼネコン名", func(p project.Project) string { return p.GeneralContractor }},
	{"site_name", "現場名", func(p project.Project) string { return p.SiteName }},
	{"installation_location", "設置場所(都道府県)", func(p project.Project) string { return p.InstallationLocation }},
	{"installation_address", "設置場所住所", func(p project.Project) string { return p.InstallationAddress }},
	{"shipping_address", "発送先住所", func(p project.Project) string { return p.ShippingAddress }},
	{"product_category", "商品カテゴリ", func(p project.Project) string { return p.ProductCategory }},
	{"stb", "STB", func(p project.Project) string { return p.STB }},
	{"main_product_name", "本体商品名", func(p project.Project) string { return p.MainProductName }},
	{"product_spec", "製品仕様", func(p project.Project) string { return p.ProductSpec }},
	{"accessories", "", nil},
	{"installation_partner", "設置時パートナー", func(p project.Project) string { return p.InstallationPartner }},
	{"removal_partner", "撤去時パートナー", func(p project.Project) string { return p.RemovalPartner }},
	{"contract_date", "成約日", func(p project.Project) string { return date(p.ContractDate) }},
	{"setup_completion_date", "設定作業完了日", func(p project.Project) string { return date(p.SetupCompletionDate) }},
	{"shipping_date", "発送日", func(p project.Project) string { return date(p.ShippingDate) }},
	{"installation_request_date", "設置業務依頼日", func(p project.Project) string { return date(p.InstallationRequestDate) }},
	{"installation_scheduled_date", "設置予定日", func(p project.Project) string { return date(p.InstallationScheduledDate) }},
	{"installation_date", "設置日", func(p project.Project) string { return date(p.InstallationDate) }},
	{"removal_request_date", "撤去業務依頼日", func(p project.Project) string { return date(p.RemovalRequestDate) }},
	{"removal_scheduled_date", "撤去予定日", func(p project.Project) string { return date(p.RemovalScheduledDate) }},
	{"removal_date", "撤去日", func(p project.Project) string { return date(p.RemovalDate) }},
	{"removal_inspection_date", "撤去後検品日", func(p project.Project) string { return date(p.RemovalInspectionDate) }},
	{"warranty_end_date", "販売時保証終了日", func(p project.Project) string { return date(p.WarrantyEndDate) }},
	{"memo", "メモ", func(p project.Project) string { return p.Memo }},
}

// Entries returns every field of p in display order, with the ten accessory
// slots expanded as 付属品1..付属品10. Unset values are empty.
func Entries(p project.Project) []Entry {
	out := make([]Entry, 0, len(catalog)+project.MaxAccessories)
	for _, f := range catalog {
		if f.get == nil {
			for i := 1; i <= project.MaxAccessories; i++ {
				v := ""
				if i <= len(p.Accessories) {
					v = p.Accessories[i-1]
				}
				out = append(out, Entry{Key: project.AccessoryColumn(i), Label: "付属品" + strconv.Itoa(i), Value: v})
			}
			continue
		}
		out = append(out, Entry{Key: f.key, Label: f.label, Value: f.get(p)})
	}
	return out
}

// Confirmation returns every field of p with unset values shown as Unset.
func Confirmation(p project.Project) []Entry {
	entries := Entries(p)
	for i := range entries {
		if entries[i].Value == "" {
			entries[i].Value = Unset
		}
	}
	return entries
}

// Populated returns only the fields of p that hold a value.
func Populated(p project.Project) []Entry {
	all := Entries(p)
	out := all[:0]
	for _, e := range all {
		if e.Value != "" {
			out = append(out, e)
		}
	}
	return out
}
