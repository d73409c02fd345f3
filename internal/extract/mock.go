package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"kanakku/internal/core"
)

// MockParser reads a plain-text receipt in a line-oriented format:
//
//	Merchant: Acme Market
//	Date: 2024-05-01T10:15:00Z
//	1. Milk qty 1 pc price 2.50 total 2.50
//	Tax: 0.50
//	Total: 10.48
//
// Used in tests and in mock mode where no provider is configured.
type MockParser struct{}

var itemLine = regexp.MustCompile(`(?i)^(\d+)\.\s+(.+?)\s+qty\s+([0-9.]+)\s+(\w+)\s+price\s+([0-9.]+)\s+total\s+([0-9.]+)`)

func (MockParser) Parse(_ context.Context, data []byte, _ string) (Parsed, error) {
	text := string(data)
	pp := parsedPayload{
		Header: headerPayload{Currency: "USD", Description: "Receipt import"},
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "merchant:"):
			pp.Header.MerchantName = valueOf(line)
		case strings.HasPrefix(lower, "date:"):
			pp.Header.PurchasedAt = valueOf(line)
		case strings.HasPrefix(lower, "subtotal:"), strings.HasPrefix(lower, "total:"):
			pp.Header.Amount = floatOf(valueOf(line))
		case strings.HasPrefix(lower, "tax:"):
			pp.Header.Tax = floatOf(valueOf(line))
		case strings.HasPrefix(lower, "tip:"):
			pp.Header.Tip = floatOf(valueOf(line))
		case strings.HasPrefix(lower, "discount:"):
			pp.Header.Discount = floatOf(valueOf(line))
		default:
			m := itemLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			lineNo, _ := strconv.Atoi(m[1])
			pp.Items = append(pp.Items, itemPayload{
				LineNo:    lineNo,
				ItemName:  strings.TrimSpace(m[2]),
				Quantity:  floatOf(m[3]),
				Unit:      m[4],
				UnitPrice: floatOf(m[5]),
				LineTotal: floatOf(m[6]),
			})
		}
	}

	out := pp.toParsed()
	out.OCRText = text
	return out, nil
}

func valueOf(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.TrimSpace(v)
}

func floatOf(s string) float64 {
	d, err := core.ParseAmount(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
