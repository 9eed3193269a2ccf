// Package memory is the in-process reference implementation of the budget
// repository. It backs the default data backend and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

// Store keeps all rows behind one mutex. WithTx holds the mutex for the
// whole callback and restores a pre-callback snapshot on error, which gives
// the same no-interleaved-writers and rollback guarantees the SQLite
// backend gets from its transactions.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	settings     map[string]core.UserBudgetSettings
	transactions []core.Transaction
	plans        []core.PlannedSpending
	goals        []core.SavingGoal
}

// snapshot copies every row set so a failed WithTx callback can be undone.
// Rows are value types, so copying the containers is enough.
func (st *state) snapshot() state {
	cp := state{
		settings:     make(map[string]core.UserBudgetSettings, len(st.settings)),
		transactions: append([]core.Transaction(nil), st.transactions...),
		plans:        append([]core.PlannedSpending(nil), st.plans...),
		goals:        append([]core.SavingGoal(nil), st.goals...),
	}
	for k, v := range st.settings {
		cp.settings[k] = v
	}
	return cp
}

// view implements budget.Repository without locking; it only exists inside
// Store method calls that already hold the mutex.
type view struct {
	data *state
}

func New() *Store {
	return &Store{data: &state{settings: make(map[string]core.UserBudgetSettings)}}
}

func (s *Store) locked() *view { return &view{data: s.data} }

func (s *Store) BudgetSettings(ctx context.Context, userID string) (core.UserBudgetSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().BudgetSettings(ctx, userID)
}

func (s *Store) TransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().TransactionsInRange(ctx, userID, from, to)
}

func (s *Store) LatestTransactionDate(ctx context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().LatestTransactionDate(ctx, userID)
}

func (s *Store) Plans(ctx context.Context, userID string) ([]core.PlannedSpending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().Plans(ctx, userID)
}

func (s *Store) Goals(ctx context.Context, userID string) ([]core.SavingGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().Goals(ctx, userID)
}

func (s *Store) SaveSettings(ctx context.Context, settings core.UserBudgetSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().SaveSettings(ctx, settings)
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().InsertTransaction(ctx, t)
}

func (s *Store) InsertPlan(ctx context.Context, p core.PlannedSpending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().InsertPlan(ctx, p)
}

func (s *Store) UpdatePlan(ctx context.Context, p core.PlannedSpending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().UpdatePlan(ctx, p)
}

func (s *Store) InsertGoal(ctx context.Context, g core.SavingGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked().InsertGoal(ctx, g)
}

// WithTx serializes the callback against every other store access. When the
// callback fails, every mutation it made is rolled back; an invariant check
// rejecting a write must leave no trace of it.
func (s *Store) WithTx(ctx context.Context, fn func(budget.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	if err := fn(s.locked()); err != nil {
		*s.data = saved
		return err
	}
	return nil
}

func (v *view) BudgetSettings(_ context.Context, userID string) (core.UserBudgetSettings, error) {
	settings, ok := v.data.settings[userID]
	if !ok {
		return core.UserBudgetSettings{}, fmt.Errorf("budget settings for %s: %w", userID, budget.ErrNotFound)
	}
	return settings, nil
}

func (v *view) TransactionsInRange(_ context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range v.data.transactions {
		if t.UserID != userID {
			continue
		}
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v *view) LatestTransactionDate(_ context.Context, userID string) (time.Time, error) {
	var latest time.Time
	for _, t := range v.data.transactions {
		if t.UserID == userID && t.Date.After(latest) {
			latest = t.Date
		}
	}
	return latest, nil
}

func (v *view) Plans(_ context.Context, userID string) ([]core.PlannedSpending, error) {
	var out []core.PlannedSpending
	for _, p := range v.data.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *view) Goals(_ context.Context, userID string) ([]core.SavingGoal, error) {
	var out []core.SavingGoal
	for _, g := range v.data.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (v *view) SaveSettings(_ context.Context, settings core.UserBudgetSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	v.data.settings[settings.UserID] = settings
	return nil
}

func (v *view) InsertTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	v.data.transactions = append(v.data.transactions, t)
	return nil
}

func (v *view) InsertPlan(_ context.Context, p core.PlannedSpending) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.data.plans = append(v.data.plans, p)
	return nil
}

func (v *view) UpdatePlan(_ context.Context, p core.PlannedSpending) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for i, existing := range v.data.plans {
		if existing.ID == p.ID && existing.UserID == p.UserID {
			v.data.plans[i] = p
			return nil
		}
	}
	return fmt.Errorf("plan %s: %w", p.ID, budget.ErrNotFound)
}

func (v *view) InsertGoal(_ context.Context, g core.SavingGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	v.data.goals = append(v.data.goals, g)
	return nil
}

// WithTx on a transactional view runs the callback directly; the outer call
// already holds the store mutex and rolls back for both on failure.
func (v *view) WithTx(_ context.Context, fn func(budget.Repository) error) error {
	return fn(v)
}
