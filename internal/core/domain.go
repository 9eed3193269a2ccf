package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	OneTime   PeriodType = "ONE_TIME"
	Daily     PeriodType = "DAILY"
	Weekly    PeriodType = "WEEKLY"
	Monthly   PeriodType = "MONTHLY"
	Quarterly PeriodType = "QUARTERLY"
	Yearly    PeriodType = "YEARLY"
)

const (
	EnforcementStrict EnforcementMode = "STRICT"
	CarryNet          CarryPolicy     = "NET"

	// Uncategorized is the fallback bucket for transactions and plans
	// recorded without a category. Nothing is ever dropped from the sums.
	Uncategorized = "UNCATEGORIZED"
)

type (
	TransactionType string
	PeriodType      string
	EnforcementMode string
	CarryPolicy     string

	// UserBudgetSettings configures the carryover engine for one user.
	// The engine refuses to operate on anything but STRICT/NET.
	UserBudgetSettings struct {
		UserID          string
		FixedIncome     decimal.Decimal
		BudgetStartAt   time.Time
		EnforcementMode EnforcementMode
		CarryPolicy     CarryPolicy
	}

	// Transaction is a single dated income or expense record. Once
	// aggregated it is read-only as far as the engine is concerned.
	Transaction struct {
		ID       string
		UserID   string
		Date     time.Time
		Type     TransactionType
		Amount   decimal.Decimal
		Category string
	}

	// PlannedSpending reserves money ahead of time. A plan is either a
	// single budget window (PeriodKey set, e.g. "2025-Q1") allocated
	// across the months it spans, or a recurring template expanded into
	// occurrence dates over [StartDate, EndDate].
	PlannedSpending struct {
		ID         string
		UserID     string
		StartDate  time.Time
		EndDate    time.Time
		PeriodType PeriodType
		PeriodKey  string
		Amount     decimal.Decimal
		Category   string
	}

	// SavingGoal accumulates toward a target amount, optionally by a
	// target date. Goals without a target date stay out of forecasting.
	SavingGoal struct {
		ID            string
		UserID        string
		Name          string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		TargetDate    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidPeriodType  = errors.New("invalid period type")
	ErrInvalidDateRange   = errors.New("end date before start date")
	ErrMissingUser        = errors.New("missing user id")
	ErrStrictRequiresNet  = errors.New("STRICT enforcement requires NET carry policy")
	ErrUnsupportedMode    = errors.New("unsupported enforcement mode")
)

func (s UserBudgetSettings) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrMissingUser
	}
	if s.BudgetStartAt.IsZero() {
		return ErrInvalidDate
	}
	if s.FixedIncome.IsNegative() {
		return ErrInvalidAmount
	}
	if s.EnforcementMode != EnforcementStrict {
		return ErrUnsupportedMode
	}
	if s.CarryPolicy != CarryNet {
		// STRICT with anything but NET is a configuration error, not a
		// computable state.
		return ErrStrictRequiresNet
	}
	return nil
}

// StartMonth is the first month the engine is authoritative for.
func (s UserBudgetSettings) StartMonth() MonthKey {
	return MonthKeyOf(s.BudgetStartAt)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Bucket returns the category bucket the transaction belongs to.
func (t Transaction) Bucket() string {
	if strings.TrimSpace(t.Category) == "" {
		return Uncategorized
	}
	return t.Category
}

// IsWindow reports whether the plan is a single budget window rather than a
// recurring occurrence template.
func (p PlannedSpending) IsWindow() bool {
	return strings.TrimSpace(p.PeriodKey) != ""
}

func (p PlannedSpending) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrMissingUser
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.IsWindow() {
		switch p.PeriodType {
		case Weekly, Monthly, Quarterly, Yearly:
		default:
			return ErrInvalidPeriodType
		}
		if _, _, err := PeriodWindow(p.PeriodKey); err != nil {
			return err
		}
		return nil
	}
	switch p.PeriodType {
	case OneTime, Daily, Weekly, Monthly:
	default:
		return ErrInvalidPeriodType
	}
	if p.StartDate.IsZero() {
		return ErrInvalidDate
	}
	if p.PeriodType != OneTime {
		if p.EndDate.IsZero() {
			return ErrInvalidDate
		}
		if p.EndDate.Before(p.StartDate) {
			return ErrInvalidDateRange
		}
	}
	return nil
}

// Bucket returns the category bucket the plan reserves against.
func (p PlannedSpending) Bucket() string {
	if strings.TrimSpace(p.Category) == "" {
		return Uncategorized
	}
	return p.Category
}

func (g SavingGoal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrMissingUser
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if g.CurrentAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Remaining is the amount still to be saved, floored at zero.
func (g SavingGoal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
