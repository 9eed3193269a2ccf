// Package services orchestrates budget operations across storage and AMQP.
//
// The write paths run their STRICT invariant check and the write they gate
// inside one store transaction, so no other writer can slip a change to the
// same months between check and commit.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/amqp"
	"kakeibo/internal/budget"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// BudgetService is the single entry point the transport layer talks to.
type BudgetService struct {
	repo   budget.Repository
	events *amqp.Client
	now    func() time.Time
}

func NewBudgetService(repo budget.Repository, events *amqp.Client) *BudgetService {
	return &BudgetService{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

// SetupBudget stores the user's budget configuration.
func (s *BudgetService) SetupBudget(ctx context.Context, settings core.UserBudgetSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid budget settings: %w", err)
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save budget settings: %w", err)
	}
	s.publishEvent(ctx, amqp.EventBudgetConfigured, settings.UserID, settings.StartMonth())
	return nil
}

// RecordTransaction persists a transaction. For expenses the STRICT
// invariant is re-verified inside the same store transaction; an income
// record can only raise spendable and needs no gate.
func (s *BudgetService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}

	month := core.MonthKeyOf(t.Date)
	err := s.repo.WithTx(ctx, func(r budget.Repository) error {
		if err := r.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if t.Type == core.Expense {
			return budget.AssertBudgetInvariantFrom(ctx, r, t.UserID, month)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	if t.Type == core.Expense {
		// Advisory only: a category over its plan is logged, never
		// rejected.
		if warn, cerr := budget.CheckCategoryPlan(ctx, s.repo, t.UserID, month, t.Bucket()); cerr != nil {
			slog.ErrorContext(ctx, "Category plan check failed",
				log.FieldError, cerr,
				log.FieldUserID, t.UserID,
				log.FieldMonthKey, month,
				log.FieldComponent, log.ComponentBudget)
		} else if warn != nil {
			slog.WarnContext(ctx, "Category spending exceeds its plan",
				log.FieldUserID, t.UserID,
				log.FieldMonthKey, warn.MonthKey,
				log.FieldCategory, t.Bucket(),
				log.FieldOverBy, warn.OverBy,
				log.FieldComponent, log.ComponentBudget)
		}
	}

	s.publishEvent(ctx, amqp.EventTransactionRecorded, t.UserID, month)
	return t, nil
}

// CreatePlan persists a new planned-spending record after the OVER_PLAN gate
// passes against the same transactional state the insert commits into.
func (s *BudgetService) CreatePlan(ctx context.Context, p core.PlannedSpending) (core.PlannedSpending, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.repo.WithTx(ctx, func(r budget.Repository) error {
		if err := budget.AssertPlanWithinBudget(ctx, r, p.UserID, p, ""); err != nil {
			return err
		}
		if err := r.InsertPlan(ctx, p); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.PlannedSpending{}, err
	}

	s.publishEvent(ctx, amqp.EventPlanChanged, p.UserID, planMonth(p))
	return p, nil
}

// UpdatePlan re-runs the gate with the plan's previous allocation excluded,
// then replaces it atomically.
func (s *BudgetService) UpdatePlan(ctx context.Context, p core.PlannedSpending) (core.PlannedSpending, error) {
	if p.ID == "" {
		return core.PlannedSpending{}, fmt.Errorf("update plan: %w", budget.ErrNotFound)
	}
	err := s.repo.WithTx(ctx, func(r budget.Repository) error {
		if err := budget.AssertPlanWithinBudget(ctx, r, p.UserID, p, p.ID); err != nil {
			return err
		}
		if err := r.UpdatePlan(ctx, p); err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.PlannedSpending{}, err
	}

	s.publishEvent(ctx, amqp.EventPlanChanged, p.UserID, planMonth(p))
	return p, nil
}

// CreateGoal persists a saving goal. Goals only influence the forecast, so
// there is nothing to gate.
func (s *BudgetService) CreateGoal(ctx context.Context, g core.SavingGoal) (core.SavingGoal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := g.Validate(); err != nil {
		return core.SavingGoal{}, fmt.Errorf("invalid saving goal: %w", err)
	}
	if err := s.repo.InsertGoal(ctx, g); err != nil {
		return core.SavingGoal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

// Timeline rebuilds the snapshot chain through the requested month.
func (s *BudgetService) Timeline(ctx context.Context, userID string, through core.MonthKey) (core.Timeline, error) {
	return budget.BuildTimeline(ctx, s.repo, userID, through)
}

// Forecast projects the next monthsAhead months starting from today.
func (s *BudgetService) Forecast(ctx context.Context, userID string, monthsAhead int) (budget.ForecastResult, error) {
	return budget.Forecast(ctx, s.repo, userID, monthsAhead, s.now())
}

// planMonth is the first month a plan touches, for event payloads.
func planMonth(p core.PlannedSpending) core.MonthKey {
	if p.IsWindow() {
		if start, _, err := core.PeriodWindow(p.PeriodKey); err == nil {
			return core.MonthKeyOf(start)
		}
	}
	return core.MonthKeyOf(p.StartDate)
}

func (s *BudgetService) publishEvent(ctx context.Context, kind string, userID string, month core.MonthKey) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", log.FieldEventKind, kind)
		return
	}
	if err := s.events.PublishEvent(ctx, kind, userID, string(month)); err != nil {
		// Events drive reporting, not correctness; the write stands.
		slog.ErrorContext(ctx, "Failed to publish budget event",
			log.FieldEventKind, kind,
			log.FieldUserID, userID,
			log.FieldMonthKey, month,
			log.FieldError, err,
			log.FieldComponent, log.ComponentAMQP)
	}
}

// Close releases the AMQP connection, if any.
func (s *BudgetService) Close() error {
	if s.events != nil {
		return s.events.Close()
	}
	return nil
}
