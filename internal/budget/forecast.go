package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// ForecastMonth is one row of the cashflow projection.
type ForecastMonth struct {
	MonthKey        core.MonthKey
	FixedIncome     decimal.Decimal
	VariableIncome  decimal.Decimal
	Income          decimal.Decimal
	PlannedSpending decimal.Decimal
	GoalSaving      decimal.Decimal
	Net             decimal.Decimal
	// ActualExpense is reported for the current month only; future months
	// have no recorded spending yet.
	ActualExpense decimal.Decimal
}

// ForecastWarnings collects advisory findings. The forecaster never turns a
// negative projection into an error.
type ForecastWarnings struct {
	NegativeMonths []core.MonthKey
}

// ForecastResult is the ordered N-month projection.
type ForecastResult struct {
	Months   []ForecastMonth
	Warnings ForecastWarnings
}

// Forecast projects income, planned spending, goal saving and net for
// monthsAhead months starting at the month containing now.
//
// It is a reporting-only superset of the enforcement primitives: it folds in
// saving-goal allocation, which the gate does not consider, and a month with
// negative net lands in Warnings.NegativeMonths instead of raising an error.
func Forecast(ctx context.Context, store Store, userID string, monthsAhead int, now time.Time) (ForecastResult, error) {
	if monthsAhead < 1 {
		monthsAhead = 1
	}

	settings, err := loadStrictSettings(ctx, store, userID)
	if err != nil {
		return ForecastResult{}, err
	}

	current := core.MonthKeyOf(now)
	last := current
	for i := 1; i < monthsAhead; i++ {
		last = last.Next()
	}
	keys, err := core.Keys(current, last)
	if err != nil {
		return ForecastResult{}, err
	}

	from, _ := current.Range()
	_, to := last.Range()
	txs, err := store.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("load transactions: %w", err)
	}
	sums := Aggregate(txs, false)

	plans, err := store.Plans(ctx, userID)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("load plans: %w", err)
	}
	planned, err := AllocatePlans(plans)
	if err != nil {
		return ForecastResult{}, err
	}

	goals, err := store.Goals(ctx, userID)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("load goals: %w", err)
	}
	goalSaving := spreadGoals(goals, now, keys)

	result := ForecastResult{Months: make([]ForecastMonth, 0, len(keys))}
	for _, month := range keys {
		variable := sums.Income(month)
		income := settings.FixedIncome.Add(variable)
		row := ForecastMonth{
			MonthKey:        month,
			FixedIncome:     settings.FixedIncome,
			VariableIncome:  variable,
			Income:          income,
			PlannedSpending: planned.Total(month),
			GoalSaving:      goalSaving[month],
		}
		row.Net = income.Sub(row.PlannedSpending).Sub(row.GoalSaving)
		if month == current {
			row.ActualExpense = sums.Expense(month)
		}
		if row.Net.IsNegative() {
			result.Warnings.NegativeMonths = append(result.Warnings.NegativeMonths, month)
		}
		result.Months = append(result.Months, row)
	}
	return result, nil
}

// spreadGoals distributes each goal's remaining amount across the months
// from now through its target date, weighted by the days of the saving
// window that fall inside each month. Goals without a target date are
// excluded; goals whose target date already passed are due in full now.
func spreadGoals(goals []core.SavingGoal, now time.Time, keys []core.MonthKey) map[core.MonthKey]decimal.Decimal {
	out := make(map[core.MonthKey]decimal.Decimal, len(keys))
	day := 24 * time.Hour
	start := now.UTC().Truncate(day)

	for _, g := range goals {
		remaining := g.Remaining()
		if g.TargetDate.IsZero() || remaining.IsZero() {
			continue
		}
		target := g.TargetDate.UTC().Truncate(day)
		if !target.After(start) {
			out[keys[0]] = out[keys[0]].Add(remaining)
			continue
		}
		totalDays := decimal.NewFromInt(int64(target.Sub(start) / day))
		rate := remaining.Div(totalDays)
		for _, month := range keys {
			mStart, mEnd := month.Range()
			days := overlapDays(start, target, mStart, mEnd)
			if days > 0 {
				out[month] = out[month].Add(rate.Mul(decimal.NewFromInt(int64(days))))
			}
		}
	}
	return out
}

// overlapDays counts whole days shared by [aStart, aEnd) and [bStart, bEnd).
func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / (24 * time.Hour))
}
