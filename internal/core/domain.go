package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive TemplateStatus = "active"
	StatusPaused TemplateStatus = "paused"
)

type (
	TemplateStatus string

	// Date is a whole calendar day in UTC. Time-of-day is always midnight;
	// comparisons are day-granular.
	Date struct {
		time.Time
	}

	// RecurringTemplate is a user-defined monthly obligation ("day N of every
	// month"). LastProcessed is the watermark: the latest date for which an
	// occurrence has been confirmed. It is advanced only by the confirmation
	// engine and never regresses.
	RecurringTemplate struct {
		ID            string
		UserID        string
		Description   string
		Category      string
		DayOfMonth    int
		DefaultCost   decimal.Decimal
		StartDate     Date
		LastProcessed Date // zero = never processed
		Status        TemplateStatus
	}

	// DueOccurrence is one concrete calendar instance a template could
	// produce. Derived on every query, never persisted.
	DueOccurrence struct {
		TemplateID    string
		Date          Date
		Description   string
		Category      string
		SuggestedCost decimal.Decimal
	}

	// ExpenseHeader is a durable expense record. Fingerprint is the dedup key
	// for ingested receipts; legacy manual entries carry none.
	ExpenseHeader struct {
		ID            string
		UserEmail     string
		PurchasedAt   time.Time
		MerchantName  string
		MerchantID    string
		Category      string
		Amount        decimal.Decimal
		Currency      string
		Tax           decimal.Decimal
		Tip           decimal.Decimal
		Discount      decimal.Decimal
		PaymentMethod string
		Description   string
		Notes         string
		Fingerprint   string
		CreatedAt     time.Time
	}

	// ExpenseItem is a receipt line item, strictly owned by one header.
	ExpenseItem struct {
		ID             string
		UserEmail      string
		ExpenseID      string
		LineNo         int
		ItemName       string
		NormalizedName string
		Category       string
		Quantity       decimal.Decimal
		Unit           string
		UnitPrice      decimal.Decimal
		LineTotal      decimal.Decimal
		Tax            decimal.Decimal
		Discount       decimal.Decimal
		AttributesJSON string
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyUser        = errors.New("empty user")
	ErrEmptyDescription = errors.New("empty description")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Time.Format(dateLayout)
}

// MonthKey returns the YYYY-MM bucket used for calendar-month matching.
func (d Date) MonthKey() string {
	return d.Time.Format("2006-01")
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// MonthIndex returns the month as 1-12.
func (d Date) MonthIndex() int { return int(d.Time.Month()) }

// ClampDayOfMonth keeps the recurrence day inside 1-31 so it is never stored
// out of range.
func ClampDayOfMonth(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}

func (s TemplateStatus) Valid() bool {
	return s == StatusActive || s == StatusPaused
}

func (t RecurringTemplate) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.DayOfMonth < 1 || t.DayOfMonth > 31 {
		return errors.New("day_of_month out of range")
	}
	if t.StartDate.IsZero() {
		return ErrInvalidDate
	}
	if !t.LastProcessed.IsZero() && t.LastProcessed.Before(t.StartDate.Time) {
		return errors.New("last processed date before start date")
	}
	if !t.Status.Valid() {
		return errors.New("invalid template status")
	}
	return nil
}

func (h ExpenseHeader) Validate() error {
	if strings.TrimSpace(h.UserEmail) == "" {
		return ErrEmptyUser
	}
	if h.PurchasedAt.IsZero() {
		return errors.New("missing purchased_at")
	}
	if h.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if len(h.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (it ExpenseItem) Validate() error {
	if strings.TrimSpace(it.ItemName) == "" {
		return errors.New("empty item name")
	}
	if it.LineNo < 1 {
		return errors.New("line_no must be positive")
	}
	return nil
}
