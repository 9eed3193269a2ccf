package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

func txFixture(id string, amount string) core.Transaction {
	return core.Transaction{
		ID:     id,
		UserID: "u1",
		Date:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Type:   core.Expense,
		Amount: decimal.RequireFromString(amount),
	}
}

func TestWithTxRollsBackAllWrites(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveSettings(ctx, core.UserBudgetSettings{
		UserID:          "u1",
		FixedIncome:     decimal.RequireFromString("100"),
		BudgetStartAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EnforcementMode: core.EnforcementStrict,
		CarryPolicy:     core.CarryNet,
	}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(r budget.Repository) error {
		if ierr := r.InsertTransaction(ctx, txFixture("t1", "500")); ierr != nil {
			return ierr
		}
		if ierr := r.InsertPlan(ctx, core.PlannedSpending{
			ID:         "p1",
			UserID:     "u1",
			PeriodType: core.Monthly,
			PeriodKey:  "2025-06",
			Amount:     decimal.RequireFromString("50"),
		}); ierr != nil {
			return ierr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	txs, err := store.TransactionsInRange(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("TransactionsInRange() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("rolled-back insert left %d transactions, want 0", len(txs))
	}

	plans, err := store.Plans(ctx, "u1")
	if err != nil {
		t.Fatalf("Plans() error = %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("rolled-back insert left %d plans, want 0", len(plans))
	}

	// Pre-existing rows survive the rollback untouched.
	if _, err := store.BudgetSettings(ctx, "u1"); err != nil {
		t.Errorf("BudgetSettings() after rollback error = %v", err)
	}
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(r budget.Repository) error {
		return r.InsertTransaction(ctx, txFixture("t1", "25"))
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	txs, err := store.TransactionsInRange(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("TransactionsInRange() error = %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "t1" {
		t.Fatalf("committed transactions = %+v, want the single inserted row", txs)
	}
}

func TestWithTxRollbackKeepsEarlierCommits(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.InsertTransaction(ctx, txFixture("t1", "10")); err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(r budget.Repository) error {
		if ierr := r.InsertTransaction(ctx, txFixture("t2", "20")); ierr != nil {
			return ierr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	txs, err := store.TransactionsInRange(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("TransactionsInRange() error = %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "t1" {
		t.Fatalf("after rollback transactions = %+v, want only the earlier committed row", txs)
	}
}
