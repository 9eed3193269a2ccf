package core

import "github.com/shopspring/decimal"

// BudgetMonthSnapshot is one derived month of the carryover chain. It is
// recomputed from transaction history on every query and never persisted.
type BudgetMonthSnapshot struct {
	MonthKey       MonthKey
	FixedIncome    decimal.Decimal
	CarryIn        decimal.Decimal
	VariableIncome decimal.Decimal
	Spendable      decimal.Decimal
	ActualExpense  decimal.Decimal
	Remaining      decimal.Decimal
	CarryOut       decimal.Decimal
}

// Timeline is the ordered snapshot chain from the budget start month through
// the requested month. Chain invariant: CarryIn of month i equals CarryOut
// of month i-1, and the first month carries in zero.
type Timeline struct {
	Months []BudgetMonthSnapshot
	byKey  map[MonthKey]int
}

// NewTimeline builds a Timeline over months already in chain order.
func NewTimeline(months []BudgetMonthSnapshot) Timeline {
	idx := make(map[MonthKey]int, len(months))
	for i, m := range months {
		idx[m.MonthKey] = i
	}
	return Timeline{Months: months, byKey: idx}
}

// Snapshot returns the snapshot for a month key, if present.
func (t Timeline) Snapshot(key MonthKey) (BudgetMonthSnapshot, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return BudgetMonthSnapshot{}, false
	}
	return t.Months[i], true
}

// Last returns the final snapshot of the chain.
func (t Timeline) Last() (BudgetMonthSnapshot, bool) {
	if len(t.Months) == 0 {
		return BudgetMonthSnapshot{}, false
	}
	return t.Months[len(t.Months)-1], true
}
