package project

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }

func TestColumnsSpreadsAccessories(t *testing.T) {
	p := Project{Number: "PJ1", Accessories: []string{"リモコン", "", "電源"}}
	cols, err := Columns(p)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if _, ok := cols["accessories"]; ok {
		t.Fatalf("accessories list must not be stored")
	}
	if cols["accessory_1"] != "リモコン" || cols["accessory_2"] != "電源" {
		t.Fatalf("accessory slots = %v, %v", cols["accessory_1"], cols["accessory_2"])
	}
	if v, ok := cols["accessory_3"]; !ok || v != nil {
		t.Fatalf("unused slot should be null, got %v", v)
	}
	if _, ok := cols["id"]; ok {
		t.Fatalf("zero id must be omitted")
	}
}

func TestFromColumnsAcceptsBothShapes(t *testing.T) {
	flat, err := FromColumns(map[string]any{
		"id":          float64(4),
		"pj_number":   "PJ4",
		"accessory_1": "A",
		"accessory_2": nil,
		"accessory_3": "C",
		"memo":        nil,
	})
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if flat.ID != 4 || flat.Number != "PJ4" {
		t.Fatalf("flat = %+v", flat)
	}
	if diff := cmp.Diff([]string{"A", "C"}, flat.Accessories); diff != "" {
		t.Fatalf("accessories (-want +got):\n%s", diff)
	}

	list, err := FromColumns(map[string]any{"accessories": []any{"X", "", "Y"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, list.Accessories); diff != "" {
		t.Fatalf("accessories (-want +got):\n%s", diff)
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	p := Project{
		ID:              7,
		Number:          "PJ240101120000",
		TransactionType: TransactionSale,
		ContractStatus:  StatusShipped,
		SiteName:        "現場",
		Accessories:     []string{"a", "b"},
		ShippingDate:    strp("2024-02-03"),
		WarrantyEndDate: strp("2026-02-03"),
	}
	cols, err := Columns(p)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	back, err := FromColumns(cols)
	if err != nil {
		t.Fatalf("from columns: %v", err)
	}
	if diff := cmp.Diff(p, back); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestCloneSourceDropsIdentity(t *testing.T) {
	src := Project{
		ID:             3,
		CreatedAt:      "2024-01-01T00:00:00Z",
		Number:         "PJ1",
		ProjectDate:    strp("2024-01-01"),
		ContractStatus: StatusInstalled,
		DealerName:     "ディーラー",
		ShippingDate:   strp("2024-01-05"),
		QuoteFileURL:   strp("https://x/q.pdf"),
		QuoteFileName:  strp("q.pdf"),
		Accessories:    []string{"a"},
	}
	c := src.CloneSource()

	want := Project{
		DealerName:   "ディーラー",
		ShippingDate: strp("2024-01-05"),
		Accessories:  []string{"a"},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("clone (-want +got):\n%s", diff)
	}

	*c.ShippingDate = "2030-01-01"
	c.Accessories[0] = "changed"
	if *src.ShippingDate != "2024-01-05" || src.Accessories[0] != "a" {
		t.Fatalf("clone shares memory with source")
	}
}

func TestApplyTransactionRules(t *testing.T) {
	p := Project{TransactionType: TransactionRental, WarrantyEndDate: strp("2025-01-01")}
	p.ApplyTransactionRules()
	if p.WarrantyEndDate != nil {
		t.Fatalf("rental keeps warranty")
	}
	s := Project{TransactionType: TransactionSale, WarrantyEndDate: strp("2025-01-01")}
	s.ApplyTransactionRules()
	if s.WarrantyEndDate == nil {
		t.Fatalf("sale lost warranty")
	}
}
