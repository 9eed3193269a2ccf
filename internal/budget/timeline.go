package budget

import (
	"context"
	"errors"
	"fmt"

	"kakeibo/internal/core"
)

// BuildTimeline computes the canonical snapshot chain from the user's budget
// start month through the requested month.
//
// All transactions in the range are loaded in one aggregation pass, then the
// months are walked forward once, carrying the NET leftover. The result is a
// pure function of settings plus transaction history: two calls with no
// intervening writes produce identical chains.
func BuildTimeline(ctx context.Context, store Store, userID string, through core.MonthKey) (core.Timeline, error) {
	settings, err := loadStrictSettings(ctx, store, userID)
	if err != nil {
		return core.Timeline{}, err
	}

	start := settings.StartMonth()
	if through < start {
		return core.Timeline{}, core.NewDateBeforeBudgetStart(through)
	}

	from, _ := start.Range()
	_, to := through.Range()
	txs, err := store.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return core.Timeline{}, fmt.Errorf("load transactions %s..%s: %w", start, through, err)
	}

	return buildChain(settings, Aggregate(txs, false), through)
}

// buildChain walks the months forward, deriving each snapshot from the
// previous carry-out. An actual expense above spendable means the stored
// history itself contradicts STRICT enforcement; that is surfaced as
// OVER_BUDGET for the exact month, never clamped.
func buildChain(settings core.UserBudgetSettings, sums MonthlySums, through core.MonthKey) (core.Timeline, error) {
	keys, err := core.Keys(settings.StartMonth(), through)
	if err != nil {
		return core.Timeline{}, err
	}

	months := make([]core.BudgetMonthSnapshot, 0, len(keys))
	carry := core.Zero
	for _, month := range keys {
		variable := sums.Income(month)
		spendable := settings.FixedIncome.Add(carry).Add(variable)
		actual := sums.Expense(month)
		if actual.GreaterThan(spendable) {
			return core.Timeline{}, core.NewOverBudget(month, spendable, actual)
		}
		remaining := spendable.Sub(actual)
		months = append(months, core.BudgetMonthSnapshot{
			MonthKey:       month,
			FixedIncome:    settings.FixedIncome,
			CarryIn:        carry,
			VariableIncome: variable,
			Spendable:      spendable,
			ActualExpense:  actual,
			Remaining:      remaining,
			CarryOut:       remaining,
		})
		carry = remaining
	}
	return core.NewTimeline(months), nil
}

// loadStrictSettings resolves the user's settings and refuses to operate on
// anything but STRICT/NET. Guessing a fallback policy here would silently
// change what "spendable" means.
func loadStrictSettings(ctx context.Context, store SettingsReader, userID string) (core.UserBudgetSettings, error) {
	settings, err := store.BudgetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.UserBudgetSettings{}, core.NewSettingsNotFound()
		}
		return core.UserBudgetSettings{}, fmt.Errorf("load budget settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return core.UserBudgetSettings{}, core.NewBudgetNotStrict()
	}
	return settings, nil
}
