package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBudgetErrorPayload(t *testing.T) {
	err := NewOverPlan("2025-06", decimal.NewFromInt(5000000), decimal.NewFromInt(5500000))
	if err.Code != CodeOverPlan {
		t.Errorf("Code = %s, want %s", err.Code, CodeOverPlan)
	}
	if err.MonthKey != "2025-06" {
		t.Errorf("MonthKey = %s, want 2025-06", err.MonthKey)
	}
	if !err.OverBy.Equal(decimal.NewFromInt(500000)) {
		t.Errorf("OverBy = %s, want 500000", err.OverBy)
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	base := NewOverBudget("2025-03", decimal.NewFromInt(100), decimal.NewFromInt(150))
	wrapped := fmt.Errorf("record transaction: %w", base)
	if got := CodeOf(wrapped); got != CodeOverBudget {
		t.Errorf("CodeOf(wrapped) = %s, want %s", got, CodeOverBudget)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}

	var be *BudgetError
	if !errors.As(wrapped, &be) {
		t.Fatalf("errors.As failed on wrapped BudgetError")
	}
	if !be.OverBy.Equal(decimal.NewFromInt(50)) {
		t.Errorf("OverBy = %s, want 50", be.OverBy)
	}
}
