package tabular

// Sheet names and their column orders. Column order is load-bearing for the
// spreadsheet backend; repositories always build full-width rows from these
// lists so a reordering shows up as a header mismatch instead of silent
// corruption.

const (
	SheetRecurring    = "recurring"
	SheetExpenses     = "expenses"
	SheetExpenseItems = "expense_items"
)

var (
	RecurringColumns = []string{
		"user_id",
		"description",
		"category",
		"day_of_month",
		"default_cost",
		"start_date_iso",
		"last_processed_iso",
		"template_id",
		"status",
	}

	ExpenseColumns = []string{
		"id",
		"user_email",
		"purchased_at",
		"merchant_name",
		"merchant_id",
		"category_id",
		"amount",
		"currency",
		"tax",
		"tip",
		"discount",
		"payment_method",
		"description",
		"notes",
		"fingerprint",
		"created_at",
	}

	ExpenseItemColumns = []string{
		"id",
		"user_email",
		"expense_id",
		"line_no",
		"item_name",
		"normalized_name",
		"category_id",
		"quantity",
		"unit",
		"unit_price",
		"line_total",
		"tax",
		"discount",
		"attributes_json",
		"created_at",
	}
)

// Schemas maps every sheet to its expected header, in order.
var Schemas = map[string][]string{
	SheetRecurring:    RecurringColumns,
	SheetExpenses:     ExpenseColumns,
	SheetExpenseItems: ExpenseItemColumns,
}

// Pad returns values extended with empty strings to the sheet's full width,
// so positional writes always cover every column.
func Pad(values []string, width int) []string {
	if len(values) >= width {
		return values[:width]
	}
	out := make([]string, width)
	copy(out, values)
	return out
}

// Col returns the value at index i, or "" when the row is ragged. Spreadsheet
// reads drop trailing empty cells.
func Col(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
