package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"kanakku/internal/core"

	"github.com/shopspring/decimal"
)

// Reconcile validates an extracted receipt against its arithmetic identity:
//
//	sum(item.line_total) + tax + tip - discount == amount, within tolerance
//
// A mismatch beyond tolerance returns a ReconciliationError carrying both
// totals; amounts are never auto-corrected.
func Reconcile(header core.ExpenseHeader, items []core.ExpenseItem) error {
	if err := header.Validate(); err != nil {
		return &core.ValidationError{Msg: err.Error()}
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return &core.ValidationError{Msg: err.Error()}
		}
	}

	computed := decimal.Zero
	for _, it := range items {
		computed = computed.Add(it.LineTotal)
	}
	computed = computed.Add(header.Tax).Add(header.Tip).Sub(header.Discount)

	if !core.WithinTolerance(header.Amount, computed) {
		return &core.ReconciliationError{Expected: header.Amount, Computed: computed}
	}
	return nil
}

// Fingerprint derives the dedup key for an ingested receipt: a SHA-256 over
// the merchant, the purchase timestamp truncated to the hour, the amount,
// and the first three item names. Coarse enough that two OCR passes over the
// same physical receipt collide despite extraction jitter, while different
// receipts from the same merchant and hour do not.
func Fingerprint(header core.ExpenseHeader, items []core.ExpenseItem) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(header.MerchantName)),
		header.PurchasedAt.UTC().Truncate(time.Hour).Format(time.RFC3339),
		header.Amount.StringFixed(2),
	}
	for i := 0; i < len(items) && i < 3; i++ {
		parts = append(parts, strings.ToLower(strings.TrimSpace(items[i].ItemName)))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
