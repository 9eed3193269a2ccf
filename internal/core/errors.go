package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorCode is the stable machine-readable identity of a budget failure.
type ErrorCode string

const (
	CodeUserSettingsNotFound  ErrorCode = "USER_SETTINGS_NOT_FOUND"
	CodeBudgetNotStrict       ErrorCode = "BUDGET_NOT_STRICT"
	CodeDateBeforeBudgetStart ErrorCode = "DATE_BEFORE_BUDGET_START"
	CodeOverBudget            ErrorCode = "OVER_BUDGET"
	CodeOverPlan              ErrorCode = "OVER_PLAN"
)

// BudgetError carries a stable code plus the month and amounts the caller
// needs to display the failure. It is fatal to the operation that raised it;
// retrying a deterministic arithmetic failure cannot succeed without the
// caller changing the input.
type BudgetError struct {
	Code          ErrorCode
	MonthKey      MonthKey
	Spendable     decimal.Decimal
	Planned       decimal.Decimal
	ActualExpense decimal.Decimal
	OverBy        decimal.Decimal
}

func (e *BudgetError) Error() string {
	switch e.Code {
	case CodeOverBudget:
		return fmt.Sprintf("%s: month %s spent %s of spendable %s (over by %s)",
			e.Code, e.MonthKey, e.ActualExpense, e.Spendable, e.OverBy)
	case CodeOverPlan:
		return fmt.Sprintf("%s: month %s planned %s of spendable %s (over by %s)",
			e.Code, e.MonthKey, e.Planned, e.Spendable, e.OverBy)
	case CodeDateBeforeBudgetStart:
		return fmt.Sprintf("%s: month %s precedes the budget start", e.Code, e.MonthKey)
	default:
		return string(e.Code)
	}
}

// NewSettingsNotFound reports a user with no budget settings row.
func NewSettingsNotFound() *BudgetError {
	return &BudgetError{Code: CodeUserSettingsNotFound}
}

// NewBudgetNotStrict reports settings the engine refuses to operate on.
func NewBudgetNotStrict() *BudgetError {
	return &BudgetError{Code: CodeBudgetNotStrict}
}

// NewDateBeforeBudgetStart reports a computation requested for a month where
// the carry-in chain is undefined by construction.
func NewDateBeforeBudgetStart(month MonthKey) *BudgetError {
	return &BudgetError{Code: CodeDateBeforeBudgetStart, MonthKey: month}
}

// NewOverBudget reports a month whose recorded expenses exceed its spendable.
func NewOverBudget(month MonthKey, spendable, actual decimal.Decimal) *BudgetError {
	return &BudgetError{
		Code:          CodeOverBudget,
		MonthKey:      month,
		Spendable:     spendable,
		ActualExpense: actual,
		OverBy:        actual.Sub(spendable),
	}
}

// NewOverPlan reports a candidate plan that would push a month's reserved
// total past its spendable.
func NewOverPlan(month MonthKey, spendable, planned decimal.Decimal) *BudgetError {
	return &BudgetError{
		Code:      CodeOverPlan,
		MonthKey:  month,
		Spendable: spendable,
		Planned:   planned,
		OverBy:    planned.Sub(spendable),
	}
}

// CodeOf extracts the budget error code from err, or "" when err is not a
// BudgetError.
func CodeOf(err error) ErrorCode {
	var be *BudgetError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
