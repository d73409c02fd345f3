package extract

import (
	"context"
	"testing"
	"time"

	"kanakku/internal/core"
)

const sampleReceipt = `Merchant: Acme Market
Date: 2024-05-01T10:15:00Z
1. Milk qty 1 pc price 2.50 total 2.50
2. Bread qty 2 pc price 3.74 total 7.48
Tax: 0.50
Total: 10.48
`

func TestMockParserParsesLineReceipt(t *testing.T) {
	p, err := MockParser{}.Parse(context.Background(), []byte(sampleReceipt), "text/plain")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if p.Header.MerchantName != "Acme Market" {
		t.Errorf("MerchantName = %q, want Acme Market", p.Header.MerchantName)
	}
	want := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	if !p.Header.PurchasedAt.Equal(want) {
		t.Errorf("PurchasedAt = %v, want %v", p.Header.PurchasedAt, want)
	}
	if !p.Header.Amount.Equal(core.AmountFromFloat(10.48)) {
		t.Errorf("Amount = %s, want 10.48", p.Header.Amount)
	}
	if !p.Header.Tax.Equal(core.AmountFromFloat(0.50)) {
		t.Errorf("Tax = %s, want 0.50", p.Header.Tax)
	}

	if len(p.Items) != 2 {
		t.Fatalf("parsed %d items, want 2", len(p.Items))
	}
	first := p.Items[0]
	if first.LineNo != 1 || first.ItemName != "Milk" {
		t.Errorf("first item = %d %q, want 1 Milk", first.LineNo, first.ItemName)
	}
	if !first.LineTotal.Equal(core.AmountFromFloat(2.50)) {
		t.Errorf("first LineTotal = %s, want 2.50", first.LineTotal)
	}
	if p.Items[1].ItemName != "Bread" {
		t.Errorf("second item = %q, want Bread", p.Items[1].ItemName)
	}

	if p.OCRText != sampleReceipt {
		t.Error("OCRText should carry the raw input")
	}
}

func TestMockParserBareDateAndNoise(t *testing.T) {
	text := `Merchant: Corner Shop
Date: 2024-03-15
thank you for shopping with us
Total: 5.00
`
	p, err := MockParser{}.Parse(context.Background(), []byte(text), "text/plain")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !p.Header.PurchasedAt.Equal(want) {
		t.Errorf("PurchasedAt = %v, want %v", p.Header.PurchasedAt, want)
	}
	if len(p.Items) != 0 {
		t.Errorf("noise lines produced %d items, want 0", len(p.Items))
	}
	if !p.Header.Amount.Equal(core.AmountFromFloat(5)) {
		t.Errorf("Amount = %s, want 5.00", p.Header.Amount)
	}
}

func TestMockParserTipAndDiscount(t *testing.T) {
	text := `Merchant: Diner
Date: 2024-06-01
1. Burger qty 1 pc price 9.00 total 9.00
Tip: 1.50
Discount: 0.50
Total: 10.00
`
	p, err := MockParser{}.Parse(context.Background(), []byte(text), "text/plain")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.Header.Tip.Equal(core.AmountFromFloat(1.50)) {
		t.Errorf("Tip = %s, want 1.50", p.Header.Tip)
	}
	if !p.Header.Discount.Equal(core.AmountFromFloat(0.50)) {
		t.Errorf("Discount = %s, want 0.50", p.Header.Discount)
	}
}
