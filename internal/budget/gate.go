package budget

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
)

// AssertPlanWithinBudget rejects a candidate plan that would push any
// touched month's reserved total past its spendable. When editing,
// excludePlanID removes the plan's previous version from the existing sum.
//
// Months are checked in chronological order and the first violation wins;
// the caller gets one OVER_PLAN, not an accumulation.
func AssertPlanWithinBudget(ctx context.Context, store Store, userID string, candidate core.PlannedSpending, excludePlanID string) error {
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	candAlloc := NewAllocation()
	if err := candAlloc.Apply(candidate); err != nil {
		return fmt.Errorf("allocate candidate plan: %w", err)
	}
	touched := candAlloc.Months()
	if len(touched) == 0 {
		return nil
	}

	// Spendable is undefined before the budget start; a plan reaching
	// back there cannot be checked, only rejected.
	settings, err := loadStrictSettings(ctx, store, userID)
	if err != nil {
		return err
	}
	if touched[0] < settings.StartMonth() {
		return core.NewDateBeforeBudgetStart(touched[0])
	}

	timeline, err := BuildTimeline(ctx, store, userID, touched[len(touched)-1])
	if err != nil {
		return err
	}

	existing, err := store.Plans(ctx, userID)
	if err != nil {
		return fmt.Errorf("load existing plans: %w", err)
	}
	existingAlloc := NewAllocation()
	for _, p := range existing {
		if excludePlanID != "" && p.ID == excludePlanID {
			continue
		}
		if err := existingAlloc.Apply(p); err != nil {
			return fmt.Errorf("allocate existing plan %s: %w", p.ID, err)
		}
	}

	for _, month := range touched {
		snapshot, ok := timeline.Snapshot(month)
		if !ok {
			return core.NewDateBeforeBudgetStart(month)
		}
		planned := existingAlloc.Total(month).Add(candAlloc.Total(month))
		if planned.GreaterThan(snapshot.Spendable) {
			return core.NewOverPlan(month, snapshot.Spendable, planned)
		}
	}
	return nil
}

// AssertBudgetInvariantFrom recomputes the timeline through the later of the
// affected month and the latest recorded transaction, surfacing OVER_BUDGET
// when the stored history violates the spendable invariant. Callers run it
// inside the same store transaction as the write it gates.
func AssertBudgetInvariantFrom(ctx context.Context, store Store, userID string, affectedMonth core.MonthKey) error {
	through := affectedMonth
	latest, err := store.LatestTransactionDate(ctx, userID)
	if err != nil {
		return fmt.Errorf("latest transaction date: %w", err)
	}
	if !latest.IsZero() {
		if k := core.MonthKeyOf(latest); k > through {
			through = k
		}
	}
	_, err = BuildTimeline(ctx, store, userID, through)
	return err
}

// CheckCategoryPlan is the advisory per-category check: it reports an
// overage only when a nonzero plan exists for the category in that month.
// Categories with no plan behave as unbudgeted and unrestricted, so the
// returned BudgetError is nil for them. It never fails the write path.
func CheckCategoryPlan(ctx context.Context, store Store, userID string, month core.MonthKey, category string) (*core.BudgetError, error) {
	plans, err := store.Plans(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	alloc, err := AllocatePlans(plans)
	if err != nil {
		return nil, err
	}
	reserved := alloc.CategoryTotal(month, category)
	if !reserved.IsPositive() {
		return nil, nil
	}

	from, to := month.Range()
	txs, err := store.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", month, err)
	}
	actual := Aggregate(txs, true).CategoryExpense(month, category)
	if actual.GreaterThan(reserved) {
		return core.NewOverBudget(month, reserved, actual), nil
	}
	return nil, nil
}
