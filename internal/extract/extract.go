// Package extract turns raw receipt uploads into untrusted header and line
// item guesses. The provider is an external collaborator; its output always
// goes through reconciliation before anything is written.
package extract

import (
	"context"
	"time"

	"kanakku/internal/core"
)

// Parsed is a provider's best guess at a receipt, pre-reconciliation.
type Parsed struct {
	Header   core.ExpenseHeader
	Items    []core.ExpenseItem
	Warnings []string
	OCRText  string
}

// Parser extracts structured receipt data from raw bytes.
type Parser interface {
	Parse(ctx context.Context, data []byte, contentType string) (Parsed, error)
}

// wire DTOs shared by the providers. Monetary values arrive as JSON numbers
// and are rounded to two decimals on conversion.
type parsedPayload struct {
	Header   headerPayload `json:"header"`
	Items    []itemPayload `json:"items"`
	Warnings []string      `json:"warnings"`
}

type headerPayload struct {
	MerchantName string  `json:"merchant_name"`
	PurchasedAt  string  `json:"purchased_at"`
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	Tax          float64 `json:"tax"`
	Tip          float64 `json:"tip"`
	Discount     float64 `json:"discount"`
	Description  string  `json:"description"`
}

type itemPayload struct {
	LineNo    int     `json:"line_no"`
	ItemName  string  `json:"item_name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Category  string  `json:"category_name"`
}

func (p parsedPayload) toParsed() Parsed {
	out := Parsed{Warnings: p.Warnings}
	out.Header = core.ExpenseHeader{
		MerchantName: p.Header.MerchantName,
		PurchasedAt:  parseWhen(p.Header.PurchasedAt),
		Currency:     p.Header.Currency,
		Amount:       core.AmountFromFloat(p.Header.Amount),
		Tax:          core.AmountFromFloat(p.Header.Tax),
		Tip:          core.AmountFromFloat(p.Header.Tip),
		Discount:     core.AmountFromFloat(p.Header.Discount),
		Description:  p.Header.Description,
	}
	for _, it := range p.Items {
		out.Items = append(out.Items, core.ExpenseItem{
			LineNo:    it.LineNo,
			ItemName:  it.ItemName,
			Category:  it.Category,
			Quantity:  core.AmountFromFloat(it.Quantity),
			Unit:      it.Unit,
			UnitPrice: core.AmountFromFloat(it.UnitPrice),
			LineTotal: core.AmountFromFloat(it.LineTotal),
		})
	}
	return out
}

// parseWhen accepts RFC3339 or a bare ISO date. Anything else yields zero;
// the reconciler rejects headers without a purchase time.
func parseWhen(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if d, err := core.ParseDate(s); err == nil {
		return d.Time
	}
	return time.Time{}
}
