package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

func TestForecastNeverThrowsOnNegativeMonths(t *testing.T) {
	store := newTestStore(t, strictSettings("u1", 100000, 2025, time.January))
	ctx := context.Background()
	// Three months each planned at double the income.
	for _, key := range []string{"2025-06", "2025-07", "2025-08"} {
		if err := store.InsertPlan(ctx, monthlyPlan("p"+key, key, 200000, "")); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	result, err := budget.Forecast(ctx, store, "u1", 3, now)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if len(result.Months) != 3 {
		t.Fatalf("months = %d, want 3", len(result.Months))
	}
	if len(result.Warnings.NegativeMonths) != 3 {
		t.Fatalf("negative months = %v, want 3 entries", result.Warnings.NegativeMonths)
	}
	for i, row := range result.Months {
		if !row.Net.Equal(decimal.NewFromInt(-100000)) {
			t.Errorf("row %d net = %s, want -100000", i, row.Net)
		}
	}
}

func TestForecastRows(t *testing.T) {
	store := newTestStore(t, strictSettings("u1", 300000, 2025, time.January),
		tx("u1", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), core.Income, 50000, ""),
		tx("u1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), core.Expense, 80000, "food"),
	)
	ctx := context.Background()
	if err := store.InsertPlan(ctx, monthlyPlan("jul", "2025-07", 120000, "")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	result, err := budget.Forecast(ctx, store, "u1", 2, now)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}

	cur := result.Months[0]
	if cur.MonthKey != "2025-06" {
		t.Fatalf("first row = %s, want 2025-06", cur.MonthKey)
	}
	if !cur.Income.Equal(decimal.NewFromInt(350000)) {
		t.Errorf("june income = %s, want 350000", cur.Income)
	}
	// Actual spending is reported for the current month only.
	if !cur.ActualExpense.Equal(decimal.NewFromInt(80000)) {
		t.Errorf("june actual = %s, want 80000", cur.ActualExpense)
	}

	next := result.Months[1]
	if next.MonthKey != "2025-07" {
		t.Fatalf("second row = %s, want 2025-07", next.MonthKey)
	}
	if !next.PlannedSpending.Equal(decimal.NewFromInt(120000)) {
		t.Errorf("july planned = %s, want 120000", next.PlannedSpending)
	}
	if !next.ActualExpense.Equal(decimal.Zero) {
		t.Errorf("july actual = %s, want 0", next.ActualExpense)
	}
	if !next.Net.Equal(decimal.NewFromInt(180000)) {
		t.Errorf("july net = %s, want 180000", next.Net)
	}
	if len(result.Warnings.NegativeMonths) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings.NegativeMonths)
	}
}

func TestForecastGoalSpreading(t *testing.T) {
	store := newTestStore(t, strictSettings("u1", 1000000, 2025, time.January))
	ctx := context.Background()

	// 61 days from Jun 1 to Aug 1: 30 in June, 31 in July.
	goal := core.SavingGoal{
		ID:            "g1",
		UserID:        "u1",
		Name:          "trip",
		TargetAmount:  decimal.NewFromInt(61000),
		CurrentAmount: decimal.Zero,
		TargetDate:    time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.InsertGoal(ctx, goal); err != nil {
		t.Fatalf("seed goal: %v", err)
	}

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := budget.Forecast(ctx, store, "u1", 3, now)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}

	if got := result.Months[0].GoalSaving; !got.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("june goal saving = %s, want 30000", got)
	}
	if got := result.Months[1].GoalSaving; !got.Equal(decimal.NewFromInt(31000)) {
		t.Errorf("july goal saving = %s, want 31000", got)
	}
	if got := result.Months[2].GoalSaving; !got.Equal(decimal.Zero) {
		t.Errorf("august goal saving = %s, want 0", got)
	}
}

func TestForecastSkipsGoalsWithoutTargetDate(t *testing.T) {
	store := newTestStore(t, strictSettings("u1", 1000000, 2025, time.January))
	ctx := context.Background()
	goal := core.SavingGoal{
		ID:           "g1",
		UserID:       "u1",
		Name:         "someday",
		TargetAmount: decimal.NewFromInt(500000),
	}
	if err := store.InsertGoal(ctx, goal); err != nil {
		t.Fatalf("seed goal: %v", err)
	}

	result, err := budget.Forecast(ctx, store, "u1", 2, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	for _, row := range result.Months {
		if !row.GoalSaving.Equal(decimal.Zero) {
			t.Errorf("month %s goal saving = %s, want 0", row.MonthKey, row.GoalSaving)
		}
	}
}

func TestForecastOverdueGoalDueNow(t *testing.T) {
	store := newTestStore(t, strictSettings("u1", 1000000, 2025, time.January))
	ctx := context.Background()
	goal := core.SavingGoal{
		ID:            "g1",
		UserID:        "u1",
		Name:          "late",
		TargetAmount:  decimal.NewFromInt(90000),
		CurrentAmount: decimal.NewFromInt(40000),
		TargetDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.InsertGoal(ctx, goal); err != nil {
		t.Fatalf("seed goal: %v", err)
	}

	result, err := budget.Forecast(ctx, store, "u1", 2, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if got := result.Months[0].GoalSaving; !got.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("current month goal saving = %s, want the full 50000 remaining", got)
	}
}
