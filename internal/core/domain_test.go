package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestUserBudgetSettingsValidate(t *testing.T) {
	good := UserBudgetSettings{
		UserID:          "u1",
		FixedIncome:     decimal.NewFromInt(5000000),
		BudgetStartAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EnforcementMode: EnforcementStrict,
		CarryPolicy:     CarryNet,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	strictGross := good
	strictGross.CarryPolicy = "GROSS"
	if err := strictGross.Validate(); !errors.Is(err, ErrStrictRequiresNet) {
		t.Errorf("expected ErrStrictRequiresNet, got %v", err)
	}

	lenient := good
	lenient.EnforcementMode = "LENIENT"
	if err := lenient.Validate(); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("expected ErrUnsupportedMode, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID: "u1",
		Date:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Type:   Expense,
		Amount: decimal.NewFromInt(1200),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{UserID: "", Date: good.Date, Type: Expense, Amount: good.Amount},
		{UserID: "u1", Type: Expense, Amount: good.Amount}, // zero date
		{UserID: "u1", Date: good.Date, Type: "transfer", Amount: good.Amount},
		{UserID: "u1", Date: good.Date, Type: Expense, Amount: decimal.Zero},
		{UserID: "u1", Date: good.Date, Type: Expense, Amount: decimal.NewFromInt(-5)},
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestTransactionBucket(t *testing.T) {
	tr := Transaction{Category: "  "}
	if got := tr.Bucket(); got != Uncategorized {
		t.Errorf("Bucket() = %q, want %q", got, Uncategorized)
	}
	tr.Category = "food"
	if got := tr.Bucket(); got != "food" {
		t.Errorf("Bucket() = %q, want food", got)
	}
}

func TestPlannedSpendingValidate(t *testing.T) {
	window := PlannedSpending{
		UserID:     "u1",
		PeriodType: Quarterly,
		PeriodKey:  "2025-Q1",
		Amount:     decimal.NewFromInt(300000),
	}
	if err := window.Validate(); err != nil {
		t.Fatalf("window plan: expected ok, got %v", err)
	}

	recurring := PlannedSpending{
		UserID:     "u1",
		PeriodType: Daily,
		StartDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(1000),
	}
	if err := recurring.Validate(); err != nil {
		t.Fatalf("recurring plan: expected ok, got %v", err)
	}

	oneTime := PlannedSpending{
		UserID:     "u1",
		PeriodType: OneTime,
		StartDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(1000),
	}
	if err := oneTime.Validate(); err != nil {
		t.Fatalf("one-time plan: expected ok, got %v", err)
	}

	bads := []PlannedSpending{
		{UserID: "u1", PeriodType: Quarterly, PeriodKey: "2025-Q9", Amount: decimal.NewFromInt(1)},
		{UserID: "u1", PeriodType: OneTime, PeriodKey: "2025-Q1", Amount: decimal.NewFromInt(1)}, // window needs window period type
		{UserID: "u1", PeriodType: Daily, StartDate: recurring.EndDate, EndDate: recurring.StartDate, Amount: decimal.NewFromInt(1)},
		{UserID: "u1", PeriodType: Daily, StartDate: recurring.StartDate, EndDate: recurring.EndDate, Amount: decimal.Zero},
		{UserID: "u1", PeriodType: Yearly, StartDate: recurring.StartDate, EndDate: recurring.EndDate, Amount: decimal.NewFromInt(1)}, // yearly recurrence is window-only
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestSavingGoalRemaining(t *testing.T) {
	g := SavingGoal{
		UserID:        "u1",
		TargetAmount:  decimal.NewFromInt(100000),
		CurrentAmount: decimal.NewFromInt(30000),
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !g.Remaining().Equal(decimal.NewFromInt(70000)) {
		t.Errorf("Remaining() = %s, want 70000", g.Remaining())
	}

	g.CurrentAmount = decimal.NewFromInt(150000)
	if !g.Remaining().Equal(decimal.Zero) {
		t.Errorf("overfunded goal Remaining() = %s, want 0", g.Remaining())
	}
}
