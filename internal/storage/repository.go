// Package storage is the SQLite-backed implementation of budget.Repository.
//
// Money columns are TEXT holding decimal strings; SQLite's numeric affinity
// would silently round large amounts through float64. Dates are stored as
// RFC 3339 UTC strings, so lexicographic range scans match chronological
// order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so every
// method works both inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewSQLRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent transactions.
	db.SetMaxOpenConns(1)

	return &SQLRepository{db: db}, nil
}

func (r *SQLRepository) conn() dbtx {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// WithTx runs fn against a Repository bound to one SQL transaction. The
// enforcement checks and the writes they gate share the same view, and a
// returned error rolls everything back.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(budget.Repository) error) error {
	if r.tx != nil {
		// Already transactional, reuse it.
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&SQLRepository{db: r.db, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) BudgetSettings(ctx context.Context, userID string) (core.UserBudgetSettings, error) {
	row := r.conn().QueryRowContext(ctx, `
		SELECT user_id, fixed_income, budget_start_at, enforcement_mode, carry_policy
		FROM user_budget_settings
		WHERE user_id = ?`, userID)

	var (
		s       core.UserBudgetSettings
		fixed   string
		startAt string
	)
	err := row.Scan(&s.UserID, &fixed, &startAt, &s.EnforcementMode, &s.CarryPolicy)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserBudgetSettings{}, fmt.Errorf("budget settings for %s: %w", userID, budget.ErrNotFound)
	}
	if err != nil {
		return core.UserBudgetSettings{}, fmt.Errorf("query budget settings: %w", err)
	}

	if s.FixedIncome, err = decimal.NewFromString(fixed); err != nil {
		return core.UserBudgetSettings{}, fmt.Errorf("parse fixed income %q: %w", fixed, err)
	}
	if s.BudgetStartAt, err = parseTime(startAt); err != nil {
		return core.UserBudgetSettings{}, fmt.Errorf("parse budget start: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) SaveSettings(ctx context.Context, s core.UserBudgetSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.conn().ExecContext(ctx, `
		INSERT INTO user_budget_settings (user_id, fixed_income, budget_start_at, enforcement_mode, carry_policy)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			fixed_income = excluded.fixed_income,
			budget_start_at = excluded.budget_start_at,
			enforcement_mode = excluded.enforcement_mode,
			carry_policy = excluded.carry_policy`,
		s.UserID, s.FixedIncome.String(), formatTime(s.BudgetStartAt), string(s.EnforcementMode), string(s.CarryPolicy))
	if err != nil {
		return fmt.Errorf("save budget settings: %w", err)
	}
	return nil
}

func (r *SQLRepository) TransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.conn().QueryContext(ctx, `
		SELECT id, user_id, date, type, amount, category
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date, id`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t      core.Transaction
			date   string
			amount string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.Type, &amount, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLRepository) LatestTransactionDate(ctx context.Context, userID string) (time.Time, error) {
	var latest sql.NullString
	err := r.conn().QueryRowContext(ctx, `
		SELECT MAX(date) FROM transactions WHERE user_id = ?`, userID).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest transaction date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return parseTime(latest.String)
}

func (r *SQLRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.conn().ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, date, type, amount, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, formatTime(t.Date), string(t.Type), t.Amount.String(), t.Category)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) Plans(ctx context.Context, userID string) ([]core.PlannedSpending, error) {
	rows, err := r.conn().QueryContext(ctx, `
		SELECT id, user_id, start_date, end_date, period_type, period_key, amount, category
		FROM planned_spendings
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []core.PlannedSpending
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(rows *sql.Rows) (core.PlannedSpending, error) {
	var (
		p      core.PlannedSpending
		start  sql.NullString
		end    sql.NullString
		amount string
	)
	if err := rows.Scan(&p.ID, &p.UserID, &start, &end, &p.PeriodType, &p.PeriodKey, &amount, &p.Category); err != nil {
		return core.PlannedSpending{}, fmt.Errorf("scan plan: %w", err)
	}
	var err error
	if start.Valid {
		if p.StartDate, err = parseTime(start.String); err != nil {
			return core.PlannedSpending{}, fmt.Errorf("parse plan start date: %w", err)
		}
	}
	if end.Valid {
		if p.EndDate, err = parseTime(end.String); err != nil {
			return core.PlannedSpending{}, fmt.Errorf("parse plan end date: %w", err)
		}
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.PlannedSpending{}, fmt.Errorf("parse plan amount %q: %w", amount, err)
	}
	return p, nil
}

func (r *SQLRepository) InsertPlan(ctx context.Context, p core.PlannedSpending) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.conn().ExecContext(ctx, `
		INSERT INTO planned_spendings (id, user_id, start_date, end_date, period_type, period_key, amount, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, nullTime(p.StartDate), nullTime(p.EndDate),
		string(p.PeriodType), p.PeriodKey, p.Amount.String(), p.Category)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdatePlan(ctx context.Context, p core.PlannedSpending) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := r.conn().ExecContext(ctx, `
		UPDATE planned_spendings
		SET start_date = ?, end_date = ?, period_type = ?, period_key = ?, amount = ?, category = ?
		WHERE id = ? AND user_id = ?`,
		nullTime(p.StartDate), nullTime(p.EndDate), string(p.PeriodType), p.PeriodKey,
		p.Amount.String(), p.Category, p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plan %s: %w", p.ID, budget.ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) Goals(ctx context.Context, userID string) ([]core.SavingGoal, error) {
	rows, err := r.conn().QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount, target_date
		FROM saving_goals
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.SavingGoal
	for rows.Next() {
		var (
			g       core.SavingGoal
			target  string
			current string
			due     sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &due); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("parse goal target amount %q: %w", target, err)
		}
		if g.CurrentAmount, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("parse goal current amount %q: %w", current, err)
		}
		if due.Valid {
			if g.TargetDate, err = parseTime(due.String); err != nil {
				return nil, fmt.Errorf("parse goal target date: %w", err)
			}
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *SQLRepository) InsertGoal(ctx context.Context, g core.SavingGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	_, err := r.conn().ExecContext(ctx, `
		INSERT INTO saving_goals (id, user_id, name, target_amount, current_amount, target_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), nullTime(g.TargetDate))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
