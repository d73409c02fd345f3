package services

import (
	"errors"
	"testing"
	"time"

	"kanakku/internal/core"

	"github.com/shopspring/decimal"
)

func receiptHeader(amount float64) core.ExpenseHeader {
	return core.ExpenseHeader{
		UserEmail:    "user@example.com",
		PurchasedAt:  time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC),
		MerchantName: "Acme Market",
		Amount:       core.AmountFromFloat(amount),
		Currency:     "USD",
		Tax:          core.AmountFromFloat(0.50),
	}
}

func receiptItems() []core.ExpenseItem {
	return []core.ExpenseItem{
		{LineNo: 1, ItemName: "Milk", LineTotal: core.AmountFromFloat(4.99)},
		{LineNo: 2, ItemName: "Bread", LineTotal: core.AmountFromFloat(4.99)},
	}
}

func TestReconcileWithinTolerance(t *testing.T) {
	// 4.99 + 4.99 + tax 0.50 = 10.48 exactly.
	if err := Reconcile(receiptHeader(10.48), receiptItems()); err != nil {
		t.Fatalf("expected reconciliation to pass, got %v", err)
	}

	// 10.50 differs by 0.02, still within tolerance.
	if err := Reconcile(receiptHeader(10.50), receiptItems()); err != nil {
		t.Fatalf("expected 0.02 difference to pass, got %v", err)
	}
}

func TestReconcileBeyondTolerance(t *testing.T) {
	err := Reconcile(receiptHeader(10.60), receiptItems())
	var re *core.ReconciliationError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReconciliationError, got %v", err)
	}
	if !re.Expected.Equal(decimal.RequireFromString("10.60")) {
		t.Errorf("expected total = %s, want 10.60", re.Expected)
	}
	if !re.Computed.Equal(decimal.RequireFromString("10.48")) {
		t.Errorf("computed total = %s, want 10.48", re.Computed)
	}
}

func TestReconcileAccountsForTipAndDiscount(t *testing.T) {
	h := receiptHeader(10.98)
	h.Tip = core.AmountFromFloat(1.00)
	h.Discount = core.AmountFromFloat(0.50)
	// 9.98 + 0.50 + 1.00 - 0.50 = 10.98
	if err := Reconcile(h, receiptItems()); err != nil {
		t.Fatalf("expected reconciliation to pass, got %v", err)
	}
}

func TestReconcileRejectsInvalidHeader(t *testing.T) {
	h := receiptHeader(10.48)
	h.PurchasedAt = time.Time{}
	err := Reconcile(h, receiptItems())
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing purchased_at, got %v", err)
	}
}

func TestFingerprintStableAcrossExtractionJitter(t *testing.T) {
	h := receiptHeader(10.48)
	items := receiptItems()

	a := Fingerprint(h, items)

	// Same receipt, different minute within the hour and extra whitespace.
	h2 := h
	h2.PurchasedAt = h.PurchasedAt.Add(20 * time.Minute)
	h2.MerchantName = "  Acme Market "
	items2 := []core.ExpenseItem{
		{LineNo: 1, ItemName: " milk ", LineTotal: core.AmountFromFloat(4.99)},
		{LineNo: 2, ItemName: "BREAD", LineTotal: core.AmountFromFloat(4.99)},
	}
	if b := Fingerprint(h2, items2); a != b {
		t.Errorf("same receipt produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintDistinguishesDifferentReceipts(t *testing.T) {
	h := receiptHeader(10.48)
	a := Fingerprint(h, receiptItems())

	other := []core.ExpenseItem{
		{LineNo: 1, ItemName: "Eggs", LineTotal: core.AmountFromFloat(4.99)},
		{LineNo: 2, ItemName: "Butter", LineTotal: core.AmountFromFloat(4.99)},
	}
	if b := Fingerprint(h, other); a == b {
		t.Error("different item sets produced the same fingerprint")
	}

	h2 := receiptHeader(20.48)
	if b := Fingerprint(h2, receiptItems()); a == b {
		t.Error("different amounts produced the same fingerprint")
	}
}
