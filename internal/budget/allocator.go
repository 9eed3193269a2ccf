package budget

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// maxOccurrences bounds recurring-plan expansion. A daily plan spanning more
// than ~54 years is malformed input, not a workload.
const maxOccurrences = 20000

// ErrTooManyOccurrences rejects pathological recurrence windows instead of
// expanding them.
var ErrTooManyOccurrences = fmt.Errorf("recurring plan exceeds %d occurrences", maxOccurrences)

var (
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
)

// Allocation accumulates reserved amounts per month and per category, shaped
// like MonthlySums so plan reservations and actual expenses compare directly.
type Allocation struct {
	TotalByMonth      map[core.MonthKey]decimal.Decimal
	ByMonthByCategory map[core.MonthKey]map[string]decimal.Decimal
}

// NewAllocation returns an empty accumulator.
func NewAllocation() *Allocation {
	return &Allocation{
		TotalByMonth:      make(map[core.MonthKey]decimal.Decimal),
		ByMonthByCategory: make(map[core.MonthKey]map[string]decimal.Decimal),
	}
}

func (a *Allocation) add(month core.MonthKey, category string, amount decimal.Decimal) {
	a.TotalByMonth[month] = a.TotalByMonth[month].Add(amount)
	byCat := a.ByMonthByCategory[month]
	if byCat == nil {
		byCat = make(map[string]decimal.Decimal)
		a.ByMonthByCategory[month] = byCat
	}
	byCat[category] = byCat[category].Add(amount)
}

// Total returns the month's reserved total.
func (a *Allocation) Total(month core.MonthKey) decimal.Decimal {
	return a.TotalByMonth[month]
}

// CategoryTotal returns the month's reserved total for one category bucket.
func (a *Allocation) CategoryTotal(month core.MonthKey, category string) decimal.Decimal {
	return a.ByMonthByCategory[month][category]
}

// Months returns the keys the allocation touches, in chronological order.
func (a *Allocation) Months() []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(a.TotalByMonth))
	for k := range a.TotalByMonth {
		keys = append(keys, k)
	}
	// Lexicographic sort is chronological for month keys.
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Apply allocates one plan into the accumulator.
func (a *Allocation) Apply(plan core.PlannedSpending) error {
	if plan.IsWindow() {
		return a.applyWindow(plan)
	}
	return a.applyRecurring(plan)
}

// AllocatePlans expands every plan into a single accumulator.
func AllocatePlans(plans []core.PlannedSpending) (*Allocation, error) {
	alloc := NewAllocation()
	for _, p := range plans {
		if err := alloc.Apply(p); err != nil {
			return nil, fmt.Errorf("allocate plan %s: %w", p.ID, err)
		}
	}
	return alloc, nil
}

// applyWindow allocates a single budget window across the months it spans.
// The quarterly and yearly splits are deliberately fixed fractions, not
// weighted by days in month: enforcement arithmetic depends on this exact
// rule.
func (a *Allocation) applyWindow(plan core.PlannedSpending) error {
	start, _, err := core.PeriodWindow(plan.PeriodKey)
	if err != nil {
		return err
	}
	bucket := plan.Bucket()

	switch plan.PeriodType {
	case core.Monthly:
		a.add(core.MonthKeyOf(start), bucket, plan.Amount)
	case core.Weekly:
		// The whole amount lands in the month containing the window's
		// Monday.
		a.add(core.MonthKeyOf(start), bucket, plan.Amount)
	case core.Quarterly:
		share := plan.Amount.Div(three)
		month := core.MonthKeyOf(start)
		for i := 0; i < 3; i++ {
			a.add(month, bucket, share)
			month = month.Next()
		}
	case core.Yearly:
		share := plan.Amount.Div(twelve)
		month := core.MonthKeyOf(start)
		for i := 0; i < 12; i++ {
			a.add(month, bucket, share)
			month = month.Next()
		}
	default:
		return fmt.Errorf("%w: %s for period key %q", core.ErrInvalidPeriodType, plan.PeriodType, plan.PeriodKey)
	}
	return nil
}

// applyRecurring expands the plan's occurrence dates and attributes each
// occurrence's full amount to the month containing it.
func (a *Allocation) applyRecurring(plan core.PlannedSpending) error {
	dates, err := Occurrences(plan)
	if err != nil {
		return err
	}
	bucket := plan.Bucket()
	for _, d := range dates {
		a.add(core.MonthKeyOf(d), bucket, plan.Amount)
	}
	return nil
}

// Occurrences returns the discrete occurrence dates of a recurring plan over
// [StartDate, EndDate] inclusive. ONE_TIME emits exactly the start date.
// Monthly steps are computed from the original start date each time, so a
// plan anchored on the 31st clamps to short months without drifting.
func Occurrences(plan core.PlannedSpending) ([]time.Time, error) {
	start := plan.StartDate.UTC()
	if plan.PeriodType == core.OneTime {
		return []time.Time{start}, nil
	}
	end := plan.EndDate.UTC()

	var dates []time.Time
	for i := 0; ; i++ {
		var d time.Time
		switch plan.PeriodType {
		case core.Daily:
			d = start.AddDate(0, 0, i)
		case core.Weekly:
			d = start.AddDate(0, 0, 7*i)
		case core.Monthly:
			d = core.AddMonths(start, i)
		default:
			return nil, fmt.Errorf("%w: %s is not a recurrence type", core.ErrInvalidPeriodType, plan.PeriodType)
		}
		if d.After(end) {
			return dates, nil
		}
		dates = append(dates, d)
		if len(dates) > maxOccurrences {
			return nil, ErrTooManyOccurrences
		}
	}
}
