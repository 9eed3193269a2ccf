package budget

import (
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// MonthlySums buckets raw transactions into per-month decimal totals.
// Every expense lands in exactly one month and one category bucket;
// uncategorized records fall back to core.Uncategorized instead of being
// dropped.
type MonthlySums struct {
	IncomeByMonth            map[core.MonthKey]decimal.Decimal
	ExpenseByMonth           map[core.MonthKey]decimal.Decimal
	ExpenseByMonthByCategory map[core.MonthKey]map[string]decimal.Decimal
}

// Aggregate buckets transactions in a single pass. Category breakdown is
// only materialized when requested; the timeline walk does not need it.
func Aggregate(txs []core.Transaction, withCategories bool) MonthlySums {
	sums := MonthlySums{
		IncomeByMonth:  make(map[core.MonthKey]decimal.Decimal),
		ExpenseByMonth: make(map[core.MonthKey]decimal.Decimal),
	}
	if withCategories {
		sums.ExpenseByMonthByCategory = make(map[core.MonthKey]map[string]decimal.Decimal)
	}

	for _, tx := range txs {
		month := core.MonthKeyOf(tx.Date)
		switch tx.Type {
		case core.Income:
			sums.IncomeByMonth[month] = sums.IncomeByMonth[month].Add(tx.Amount)
		case core.Expense:
			sums.ExpenseByMonth[month] = sums.ExpenseByMonth[month].Add(tx.Amount)
			if withCategories {
				byCat := sums.ExpenseByMonthByCategory[month]
				if byCat == nil {
					byCat = make(map[string]decimal.Decimal)
					sums.ExpenseByMonthByCategory[month] = byCat
				}
				bucket := tx.Bucket()
				byCat[bucket] = byCat[bucket].Add(tx.Amount)
			}
		}
	}
	return sums
}

// Income returns the month's variable income total.
func (s MonthlySums) Income(month core.MonthKey) decimal.Decimal {
	return s.IncomeByMonth[month]
}

// Expense returns the month's expense total.
func (s MonthlySums) Expense(month core.MonthKey) decimal.Decimal {
	return s.ExpenseByMonth[month]
}

// CategoryExpense returns the month's expense total for one category bucket.
func (s MonthlySums) CategoryExpense(month core.MonthKey, category string) decimal.Decimal {
	return s.ExpenseByMonthByCategory[month][category]
}
