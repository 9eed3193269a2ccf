// Package budget implements the carryover and planned-spending allocation
// engine: month aggregation, the spendable timeline, plan-to-month
// allocation, STRICT enforcement checks and the cashflow forecast.
//
// Every computation here is a pure function of transactional storage,
// re-derived on each call. Nothing in this package holds state between
// calls and nothing writes.
package budget

import (
	"context"
	"errors"
	"time"

	"kakeibo/internal/core"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Ports for the transactional store. The engine takes these as explicit
// parameters so it can run against an in-memory fake in tests.
type (
	SettingsReader interface {
		// BudgetSettings returns the user's budget configuration, or an
		// error wrapping ErrNotFound when none exists.
		BudgetSettings(ctx context.Context, userID string) (core.UserBudgetSettings, error)
	}

	TransactionReader interface {
		// TransactionsInRange returns the user's transactions with
		// from <= date < to.
		TransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)

		// LatestTransactionDate returns the date of the user's most
		// recent transaction, or the zero time when there are none.
		LatestTransactionDate(ctx context.Context, userID string) (time.Time, error)
	}

	PlanReader interface {
		// Plans returns all of the user's planned-spending records.
		Plans(ctx context.Context, userID string) ([]core.PlannedSpending, error)
	}

	GoalReader interface {
		// Goals returns all of the user's saving goals.
		Goals(ctx context.Context, userID string) ([]core.SavingGoal, error)
	}

	// Store is the full read surface the engine needs.
	Store interface {
		SettingsReader
		TransactionReader
		PlanReader
		GoalReader
	}

	// Repository is the store surface the write path needs: the engine's
	// reads plus the writers, executable inside one store transaction.
	Repository interface {
		Store

		SaveSettings(ctx context.Context, s core.UserBudgetSettings) error
		InsertTransaction(ctx context.Context, t core.Transaction) error
		InsertPlan(ctx context.Context, p core.PlannedSpending) error
		UpdatePlan(ctx context.Context, p core.PlannedSpending) error
		InsertGoal(ctx context.Context, g core.SavingGoal) error

		// WithTx runs fn against a transactional view of the repository.
		// The invariant checks and the write they gate must observe the
		// same state, or two concurrent writers could both pass against
		// a stale spendable figure.
		WithTx(ctx context.Context, fn func(Repository) error) error
	}
)
