package http

import (
	"time"

	"kanakku/internal/core"
	"kanakku/internal/extract"
)

// Amounts cross the wire as JSON numbers and are rounded to two decimals on
// the way in.

type templateDTO struct {
	ID            string  `json:"template_id,omitempty"`
	UserID        string  `json:"user_id"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	DayOfMonth    int     `json:"day_of_month"`
	DefaultCost   float64 `json:"default_cost"`
	StartDateISO  string  `json:"start_date_iso"`
	LastProcessed string  `json:"last_processed_iso,omitempty"`
	Status        string  `json:"status,omitempty"`
}

func templateToDTO(t core.RecurringTemplate) templateDTO {
	dto := templateDTO{
		ID:           t.ID,
		UserID:       t.UserID,
		Description:  t.Description,
		Category:     t.Category,
		DayOfMonth:   t.DayOfMonth,
		DefaultCost:  t.DefaultCost.InexactFloat64(),
		StartDateISO: t.StartDate.ISO(),
		Status:       string(t.Status),
	}
	if !t.LastProcessed.IsZero() {
		dto.LastProcessed = t.LastProcessed.ISO()
	}
	return dto
}

func (d templateDTO) toDomain() (core.RecurringTemplate, error) {
	start, err := core.ParseDate(d.StartDateISO)
	if err != nil {
		return core.RecurringTemplate{}, &core.ValidationError{Msg: "invalid start_date_iso"}
	}
	tpl := core.RecurringTemplate{
		ID:          d.ID,
		UserID:      d.UserID,
		Description: d.Description,
		Category:    d.Category,
		DayOfMonth:  d.DayOfMonth,
		DefaultCost: core.AmountFromFloat(d.DefaultCost),
		StartDate:   start,
		Status:      core.TemplateStatus(d.Status),
	}
	if d.LastProcessed != "" {
		last, err := core.ParseDate(d.LastProcessed)
		if err != nil {
			return core.RecurringTemplate{}, &core.ValidationError{Msg: "invalid last_processed_iso"}
		}
		tpl.LastProcessed = last
	}
	return tpl, nil
}

type dueOccurrenceDTO struct {
	TemplateID    string  `json:"template_id"`
	DateISO       string  `json:"date_iso"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	SuggestedCost float64 `json:"suggested_cost"`
}

func dueToDTO(o core.DueOccurrence) dueOccurrenceDTO {
	return dueOccurrenceDTO{
		TemplateID:    o.TemplateID,
		DateISO:       o.Date.ISO(),
		Description:   o.Description,
		Category:      o.Category,
		SuggestedCost: o.SuggestedCost.InexactFloat64(),
	}
}

type expenseHeaderDTO struct {
	ID            string  `json:"id,omitempty"`
	UserEmail     string  `json:"user_email,omitempty"`
	PurchasedAt   string  `json:"purchased_at"`
	MerchantName  string  `json:"merchant_name,omitempty"`
	MerchantID    string  `json:"merchant_id,omitempty"`
	Category      string  `json:"category,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency,omitempty"`
	Tax           float64 `json:"tax,omitempty"`
	Tip           float64 `json:"tip,omitempty"`
	Discount      float64 `json:"discount,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Description   string  `json:"description,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Fingerprint   string  `json:"fingerprint,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

func headerToDTO(h core.ExpenseHeader) expenseHeaderDTO {
	dto := expenseHeaderDTO{
		ID:            h.ID,
		UserEmail:     h.UserEmail,
		PurchasedAt:   h.PurchasedAt.UTC().Format(time.RFC3339),
		MerchantName:  h.MerchantName,
		MerchantID:    h.MerchantID,
		Category:      h.Category,
		Amount:        h.Amount.InexactFloat64(),
		Currency:      h.Currency,
		Tax:           h.Tax.InexactFloat64(),
		Tip:           h.Tip.InexactFloat64(),
		Discount:      h.Discount.InexactFloat64(),
		PaymentMethod: h.PaymentMethod,
		Description:   h.Description,
		Notes:         h.Notes,
		Fingerprint:   h.Fingerprint,
	}
	if !h.CreatedAt.IsZero() {
		dto.CreatedAt = h.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func (d expenseHeaderDTO) toDomain() (core.ExpenseHeader, error) {
	purchasedAt, err := parseTimestampDTO(d.PurchasedAt)
	if err != nil {
		return core.ExpenseHeader{}, &core.ValidationError{Msg: "invalid purchased_at"}
	}
	return core.ExpenseHeader{
		ID:            d.ID,
		UserEmail:     d.UserEmail,
		PurchasedAt:   purchasedAt,
		MerchantName:  d.MerchantName,
		MerchantID:    d.MerchantID,
		Category:      d.Category,
		Amount:        core.AmountFromFloat(d.Amount),
		Currency:      d.Currency,
		Tax:           core.AmountFromFloat(d.Tax),
		Tip:           core.AmountFromFloat(d.Tip),
		Discount:      core.AmountFromFloat(d.Discount),
		PaymentMethod: d.PaymentMethod,
		Description:   d.Description,
		Notes:         d.Notes,
		Fingerprint:   d.Fingerprint,
	}, nil
}

type expenseItemDTO struct {
	ID        string  `json:"id,omitempty"`
	LineNo    int     `json:"line_no"`
	ItemName  string  `json:"item_name"`
	Category  string  `json:"category_name,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Unit      string  `json:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	LineTotal float64 `json:"line_total"`
	Tax       float64 `json:"tax,omitempty"`
	Discount  float64 `json:"discount,omitempty"`
}

func itemToDTO(it core.ExpenseItem) expenseItemDTO {
	return expenseItemDTO{
		ID:        it.ID,
		LineNo:    it.LineNo,
		ItemName:  it.ItemName,
		Category:  it.Category,
		Quantity:  it.Quantity.InexactFloat64(),
		Unit:      it.Unit,
		UnitPrice: it.UnitPrice.InexactFloat64(),
		LineTotal: it.LineTotal.InexactFloat64(),
		Tax:       it.Tax.InexactFloat64(),
		Discount:  it.Discount.InexactFloat64(),
	}
}

func (d expenseItemDTO) toDomain() core.ExpenseItem {
	return core.ExpenseItem{
		LineNo:    d.LineNo,
		ItemName:  d.ItemName,
		Category:  d.Category,
		Quantity:  core.AmountFromFloat(d.Quantity),
		Unit:      d.Unit,
		UnitPrice: core.AmountFromFloat(d.UnitPrice),
		LineTotal: core.AmountFromFloat(d.LineTotal),
		Tax:       core.AmountFromFloat(d.Tax),
		Discount:  core.AmountFromFloat(d.Discount),
	}
}

func parsedToDTO(p extract.Parsed, fingerprint string) map[string]any {
	items := make([]expenseItemDTO, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, itemToDTO(it))
	}
	out := map[string]any{
		"header":      headerToDTO(p.Header),
		"items":       items,
		"warnings":    p.Warnings,
		"fingerprint": fingerprint,
	}
	if p.OCRText != "" {
		out["ocr_text"] = p.OCRText
	}
	return out
}

func parseTimestampDTO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}
