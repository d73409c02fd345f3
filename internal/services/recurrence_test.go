package services

import (
	"testing"

	"kanakku/internal/core"

	"github.com/shopspring/decimal"
)

func activeTemplate(day int, start core.Date) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:          "recur_test",
		UserID:      "user@example.com",
		Description: "Rent",
		Category:    "Housing",
		DayOfMonth:  day,
		DefaultCost: decimal.NewFromInt(100),
		StartDate:   start,
		Status:      core.StatusActive,
	}
}

func TestDueDatesClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		day  int
		from core.Date
		asOf core.Date
		want []string
	}{
		{
			name: "day 31 clamps to Feb 28 in a non-leap year",
			day:  31,
			from: core.NewDate(2023, 1, 1),
			asOf: core.NewDate(2023, 3, 1),
			want: []string{"2023-01-31", "2023-02-28"},
		},
		{
			name: "day 31 clamps to Feb 29 in a leap year",
			day:  31,
			from: core.NewDate(2024, 2, 1),
			asOf: core.NewDate(2024, 3, 1),
			want: []string{"2024-02-29"},
		},
		{
			name: "day 31 clamps to Apr 30",
			day:  31,
			from: core.NewDate(2023, 4, 1),
			asOf: core.NewDate(2023, 5, 1),
			want: []string{"2023-04-30"},
		},
		{
			name: "day 15 is untouched",
			day:  15,
			from: core.NewDate(2023, 1, 1),
			asOf: core.NewDate(2023, 2, 28),
			want: []string{"2023-01-15", "2023-02-15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := activeTemplate(tt.day, tt.from)
			got := DueDates(tpl, tt.asOf)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d dates, want %d: %v", len(got), len(tt.want), got)
			}
			for i, d := range got {
				if d.ISO() != tt.want[i] {
					t.Errorf("date[%d] = %s, want %s", i, d.ISO(), tt.want[i])
				}
			}
		})
	}
}

func TestDueDatesResumesAfterWatermark(t *testing.T) {
	tpl := activeTemplate(10, core.NewDate(2023, 1, 1))
	tpl.LastProcessed = core.NewDate(2023, 3, 10)

	got := DueDates(tpl, core.NewDate(2023, 5, 31))
	want := []string{"2023-04-10", "2023-05-10"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, d := range got {
		if d.ISO() != want[i] {
			t.Errorf("date[%d] = %s, want %s", i, d.ISO(), want[i])
		}
	}
}

func TestDueDatesBoundedByAsOf(t *testing.T) {
	tpl := activeTemplate(20, core.NewDate(2023, 1, 1))

	// asOf lands before the effective day of its own month.
	got := DueDates(tpl, core.NewDate(2023, 2, 5))
	if len(got) != 1 || got[0].ISO() != "2023-01-20" {
		t.Fatalf("got %v, want [2023-01-20]", got)
	}
}

func TestDueDatesPausedTemplateYieldsNothing(t *testing.T) {
	tpl := activeTemplate(10, core.NewDate(2023, 1, 1))
	tpl.Status = core.StatusPaused

	if got := DueDates(tpl, core.NewDate(2023, 6, 1)); got != nil {
		t.Fatalf("paused template produced %v, want none", got)
	}
}

func TestDueDatesStartAfterAsOf(t *testing.T) {
	tpl := activeTemplate(10, core.NewDate(2024, 6, 1))

	if got := DueDates(tpl, core.NewDate(2024, 5, 31)); len(got) != 0 {
		t.Fatalf("future template produced %v, want none", got)
	}
}
