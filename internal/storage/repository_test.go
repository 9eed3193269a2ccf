package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := NewSQLRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("NewSQLRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.BudgetSettings(ctx, "u1")
	if !errors.Is(err, budget.ErrNotFound) {
		t.Fatalf("BudgetSettings() on empty store error = %v, want ErrNotFound", err)
	}

	in := core.UserBudgetSettings{
		UserID:          "u1",
		FixedIncome:     decimal.RequireFromString("300000.50"),
		BudgetStartAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EnforcementMode: core.EnforcementStrict,
		CarryPolicy:     core.CarryNet,
	}
	if err := repo.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := repo.BudgetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("BudgetSettings() error = %v", err)
	}
	if !got.FixedIncome.Equal(in.FixedIncome) {
		t.Errorf("FixedIncome = %v, want %v", got.FixedIncome, in.FixedIncome)
	}
	if !got.BudgetStartAt.Equal(in.BudgetStartAt) {
		t.Errorf("BudgetStartAt = %v, want %v", got.BudgetStartAt, in.BudgetStartAt)
	}

	// Saving again replaces the row.
	in.FixedIncome = decimal.RequireFromString("350000")
	if err := repo.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings() upsert error = %v", err)
	}
	got, err = repo.BudgetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("BudgetSettings() error = %v", err)
	}
	if !got.FixedIncome.Equal(in.FixedIncome) {
		t.Errorf("FixedIncome after upsert = %v, want %v", got.FixedIncome, in.FixedIncome)
	}
}

func TestTransactionsInRangeHalfOpen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		err := repo.InsertTransaction(ctx, core.Transaction{
			ID:     string(rune('a' + i)),
			UserID: "u1",
			Date:   d,
			Type:   core.Expense,
			Amount: decimal.RequireFromString("1000"),
		})
		if err != nil {
			t.Fatalf("InsertTransaction() error = %v", err)
		}
	}

	from, to := core.MonthKey("2025-06").Range()
	txs, err := repo.TransactionsInRange(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("TransactionsInRange() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("TransactionsInRange() returned %d transactions, want 2", len(txs))
	}
	if txs[0].ID != "b" || txs[1].ID != "c" {
		t.Errorf("range returned IDs %s, %s; want b, c", txs[0].ID, txs[1].ID)
	}

	latest, err := repo.LatestTransactionDate(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestTransactionDate() error = %v", err)
	}
	if !latest.Equal(dates[3]) {
		t.Errorf("LatestTransactionDate() = %v, want %v", latest, dates[3])
	}

	latest, err = repo.LatestTransactionDate(ctx, "nobody")
	if err != nil {
		t.Fatalf("LatestTransactionDate() for unknown user error = %v", err)
	}
	if !latest.IsZero() {
		t.Errorf("LatestTransactionDate() for unknown user = %v, want zero", latest)
	}
}

func TestPlanLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	window := core.PlannedSpending{
		ID:         "p1",
		UserID:     "u1",
		PeriodType: core.Quarterly,
		PeriodKey:  "2025-Q2",
		Amount:     decimal.RequireFromString("90000"),
		Category:   "insurance",
	}
	if err := repo.InsertPlan(ctx, window); err != nil {
		t.Fatalf("InsertPlan() error = %v", err)
	}

	recurring := core.PlannedSpending{
		ID:         "p2",
		UserID:     "u1",
		PeriodType: core.Monthly,
		StartDate:  time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.RequireFromString("12000"),
	}
	if err := repo.InsertPlan(ctx, recurring); err != nil {
		t.Fatalf("InsertPlan() error = %v", err)
	}

	plans, err := repo.Plans(ctx, "u1")
	if err != nil {
		t.Fatalf("Plans() error = %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("Plans() returned %d plans, want 2", len(plans))
	}
	if !plans[0].IsWindow() || plans[1].IsWindow() {
		t.Error("window/recurring flags lost in round trip")
	}
	if !plans[1].StartDate.Equal(recurring.StartDate) {
		t.Errorf("recurring StartDate = %v, want %v", plans[1].StartDate, recurring.StartDate)
	}

	window.Amount = decimal.RequireFromString("95000")
	if err := repo.UpdatePlan(ctx, window); err != nil {
		t.Fatalf("UpdatePlan() error = %v", err)
	}

	missing := window
	missing.ID = "nope"
	if err := repo.UpdatePlan(ctx, missing); !errors.Is(err, budget.ErrNotFound) {
		t.Fatalf("UpdatePlan() on missing plan error = %v, want ErrNotFound", err)
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	withDate := core.SavingGoal{
		ID:           "g1",
		UserID:       "u1",
		Name:         "trip",
		TargetAmount: decimal.RequireFromString("200000"),
		TargetDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	noDate := core.SavingGoal{
		ID:            "g2",
		UserID:        "u1",
		Name:          "someday fund",
		TargetAmount:  decimal.RequireFromString("1000000"),
		CurrentAmount: decimal.RequireFromString("250000"),
	}
	for _, g := range []core.SavingGoal{withDate, noDate} {
		if err := repo.InsertGoal(ctx, g); err != nil {
			t.Fatalf("InsertGoal(%s) error = %v", g.ID, err)
		}
	}

	goals, err := repo.Goals(ctx, "u1")
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("Goals() returned %d goals, want 2", len(goals))
	}
	if !goals[0].TargetDate.Equal(withDate.TargetDate) {
		t.Errorf("g1 TargetDate = %v, want %v", goals[0].TargetDate, withDate.TargetDate)
	}
	if !goals[1].TargetDate.IsZero() {
		t.Errorf("g2 TargetDate = %v, want zero", goals[1].TargetDate)
	}
	if !goals[1].Remaining().Equal(decimal.RequireFromString("750000")) {
		t.Errorf("g2 Remaining() = %v, want 750000", goals[1].Remaining())
	}
}

func TestWithTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(r budget.Repository) error {
		ierr := r.InsertTransaction(ctx, core.Transaction{
			ID:     "t1",
			UserID: "u1",
			Date:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Type:   core.Income,
			Amount: decimal.RequireFromString("100"),
		})
		if ierr != nil {
			return ierr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	latest, err := repo.LatestTransactionDate(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestTransactionDate() error = %v", err)
	}
	if !latest.IsZero() {
		t.Error("rolled-back insert is still visible")
	}
}

func TestWithTxCommits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(r budget.Repository) error {
		return r.InsertTransaction(ctx, core.Transaction{
			ID:     "t1",
			UserID: "u1",
			Date:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Type:   core.Income,
			Amount: decimal.RequireFromString("100"),
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	from, to := core.MonthKey("2025-06").Range()
	txs, err := repo.TransactionsInRange(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("TransactionsInRange() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("committed transaction not visible, got %d rows", len(txs))
	}
}
