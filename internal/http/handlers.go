package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/budget"
	"kakeibo/internal/core"
)

const dateLayout = "2006-01-02"

type settingsRequest struct {
	UserID          string `json:"user_id"`
	FixedIncome     string `json:"fixed_income"`
	BudgetStartAt   string `json:"budget_start_at"`
	EnforcementMode string `json:"enforcement_mode"`
	CarryPolicy     string `json:"carry_policy"`
}

type transactionRequest struct {
	UserID   string `json:"user_id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
}

type transactionResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Category string `json:"category,omitempty"`
	MonthKey string `json:"month_key"`
}

type planRequest struct {
	UserID     string `json:"user_id"`
	PeriodType string `json:"period_type"`
	PeriodKey  string `json:"period_key,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Amount     string `json:"amount"`
	Category   string `json:"category,omitempty"`
}

type planResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	PeriodType string `json:"period_type"`
	PeriodKey  string `json:"period_key,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Amount     string `json:"amount"`
	Category   string `json:"category,omitempty"`
}

type goalRequest struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	TargetAmount  string `json:"target_amount"`
	CurrentAmount string `json:"current_amount,omitempty"`
	TargetDate    string `json:"target_date,omitempty"`
}

type goalResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	TargetAmount  string `json:"target_amount"`
	CurrentAmount string `json:"current_amount"`
	TargetDate    string `json:"target_date,omitempty"`
}

type timelineMonth struct {
	MonthKey       string `json:"month_key"`
	FixedIncome    string `json:"fixed_income"`
	CarryIn        string `json:"carry_in"`
	VariableIncome string `json:"variable_income"`
	Spendable      string `json:"spendable"`
	ActualExpense  string `json:"actual_expense"`
	Remaining      string `json:"remaining"`
	CarryOut       string `json:"carry_out"`
}

type timelineResponse struct {
	UserID string          `json:"user_id"`
	Months []timelineMonth `json:"months"`
}

type forecastMonth struct {
	MonthKey        string `json:"month_key"`
	Income          string `json:"income"`
	PlannedSpending string `json:"planned_spending"`
	GoalSaving      string `json:"goal_saving"`
	Net             string `json:"net"`
	ActualExpense   string `json:"actual_expense,omitempty"`
}

type forecastResponse struct {
	UserID         string          `json:"user_id"`
	Months         []forecastMonth `json:"months"`
	NegativeMonths []string        `json:"negative_months,omitempty"`
}

type errorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	MonthKey      string `json:"month_key,omitempty"`
	Spendable     string `json:"spendable,omitempty"`
	Planned       string `json:"planned,omitempty"`
	ActualExpense string `json:"actual_expense,omitempty"`
	OverBy        string `json:"over_by,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses: enforcement rejections
// become 422 with the full decision payload, validation problems 400,
// missing records 404.
func writeError(w http.ResponseWriter, err error) {
	var be *core.BudgetError
	if errors.As(err, &be) {
		status := http.StatusUnprocessableEntity
		if be.Code == core.CodeUserSettingsNotFound {
			status = http.StatusNotFound
		}
		payload := errorPayload{
			Code:     string(be.Code),
			Message:  be.Error(),
			MonthKey: string(be.MonthKey),
		}
		if !be.Spendable.IsZero() || be.Code == core.CodeOverBudget || be.Code == core.CodeOverPlan {
			payload.Spendable = be.Spendable.String()
			payload.Planned = be.Planned.String()
			payload.ActualExpense = be.ActualExpense.String()
			payload.OverBy = be.OverBy.String()
		}
		writeJSON(w, status, errorResponse{Error: payload})
		return
	}

	switch {
	case errors.Is(err, budget.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorPayload{
			Code: "NOT_FOUND", Message: err.Error(),
		}})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorPayload{
			Code: "INVALID_REQUEST", Message: err.Error(),
		}})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Code: "INTERNAL", Message: "internal error",
		}})
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidType,
		core.ErrInvalidPeriodType, core.ErrInvalidDateRange, core.ErrMissingUser,
		core.ErrInvalidMonthKey, core.ErrInvalidPeriodKey,
		core.ErrUnsupportedMode, core.ErrStrictRequiresNet,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorPayload{
		Code: "INVALID_REQUEST", Message: fmt.Sprintf(format, args...),
	}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fixed, err := decimal.NewFromString(strings.TrimSpace(req.FixedIncome))
	if err != nil {
		badRequest(w, "invalid fixed_income %q", req.FixedIncome)
		return
	}
	startAt, err := parseDate(req.BudgetStartAt)
	if err != nil {
		badRequest(w, "invalid budget_start_at %q: expected YYYY-MM-DD", req.BudgetStartAt)
		return
	}

	settings := core.UserBudgetSettings{
		UserID:          req.UserID,
		FixedIncome:     fixed,
		BudgetStartAt:   startAt,
		EnforcementMode: core.EnforcementMode(req.EnforcementMode),
		CarryPolicy:     core.CarryPolicy(req.CarryPolicy),
	}
	if err := s.svc.SetupBudget(r.Context(), settings); err != nil {
		writeError(w, err)
		return
	}

	s.invalidateUser(req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount %q", req.Amount)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, "invalid date %q: expected YYYY-MM-DD", req.Date)
		return
	}

	tx := core.Transaction{
		UserID:   req.UserID,
		Date:     date,
		Type:     core.TransactionType(req.Type),
		Amount:   amount,
		Category: strings.TrimSpace(req.Category),
	}
	saved, err := s.svc.RecordTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateUser(saved.UserID)
	writeJSON(w, http.StatusCreated, transactionResponse{
		ID:       saved.ID,
		UserID:   saved.UserID,
		Date:     formatDate(saved.Date),
		Type:     string(saved.Type),
		Amount:   saved.Amount.String(),
		Category: saved.Category,
		MonthKey: string(core.MonthKeyOf(saved.Date)),
	})
}

func planFromRequest(w http.ResponseWriter, req planRequest) (core.PlannedSpending, bool) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount %q", req.Amount)
		return core.PlannedSpending{}, false
	}

	p := core.PlannedSpending{
		UserID:     req.UserID,
		PeriodType: core.PeriodType(req.PeriodType),
		PeriodKey:  strings.TrimSpace(req.PeriodKey),
		Amount:     amount,
		Category:   strings.TrimSpace(req.Category),
	}
	if req.StartDate != "" {
		if p.StartDate, err = parseDate(req.StartDate); err != nil {
			badRequest(w, "invalid start_date %q: expected YYYY-MM-DD", req.StartDate)
			return core.PlannedSpending{}, false
		}
	}
	if req.EndDate != "" {
		if p.EndDate, err = parseDate(req.EndDate); err != nil {
			badRequest(w, "invalid end_date %q: expected YYYY-MM-DD", req.EndDate)
			return core.PlannedSpending{}, false
		}
	}
	return p, true
}

func planToResponse(p core.PlannedSpending) planResponse {
	return planResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		PeriodType: string(p.PeriodType),
		PeriodKey:  p.PeriodKey,
		StartDate:  formatDate(p.StartDate),
		EndDate:    formatDate(p.EndDate),
		Amount:     p.Amount.String(),
		Category:   p.Category,
	}
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, ok := planFromRequest(w, req)
	if !ok {
		return
	}

	saved, err := s.svc.CreatePlan(r.Context(), plan)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateUser(saved.UserID)
	writeJSON(w, http.StatusCreated, planToResponse(saved))
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, ok := planFromRequest(w, req)
	if !ok {
		return
	}
	plan.ID = r.PathValue("id")

	saved, err := s.svc.UpdatePlan(r.Context(), plan)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateUser(saved.UserID)
	writeJSON(w, http.StatusOK, planToResponse(saved))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := core.ParseAmount(req.TargetAmount)
	if err != nil {
		badRequest(w, "invalid target_amount %q", req.TargetAmount)
		return
	}
	goal := core.SavingGoal{
		UserID:       req.UserID,
		Name:         strings.TrimSpace(req.Name),
		TargetAmount: target,
	}
	if req.CurrentAmount != "" {
		if goal.CurrentAmount, err = decimal.NewFromString(req.CurrentAmount); err != nil {
			badRequest(w, "invalid current_amount %q", req.CurrentAmount)
			return
		}
	}
	if req.TargetDate != "" {
		if goal.TargetDate, err = parseDate(req.TargetDate); err != nil {
			badRequest(w, "invalid target_date %q: expected YYYY-MM-DD", req.TargetDate)
			return
		}
	}

	saved, err := s.svc.CreateGoal(r.Context(), goal)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateUser(saved.UserID)
	writeJSON(w, http.StatusCreated, goalResponse{
		ID:            saved.ID,
		UserID:        saved.UserID,
		Name:          saved.Name,
		TargetAmount:  saved.TargetAmount.String(),
		CurrentAmount: saved.CurrentAmount.String(),
		TargetDate:    formatDate(saved.TargetDate),
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}
	through := core.MonthKeyOf(time.Now())
	if v := strings.TrimSpace(r.URL.Query().Get("through")); v != "" {
		parsed, err := core.ParseMonthKey(v)
		if err != nil {
			badRequest(w, "invalid through month %q: expected YYYY-MM", v)
			return
		}
		through = parsed
	}

	key := userID + "|" + string(through)
	if resp, found := s.timelineCache.Get(key); found {
		slog.DebugContext(r.Context(), "Timeline cache hit", "user_id", userID, "through", through)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	tl, err := s.svc.Timeline(r.Context(), userID, through)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := timelineResponse{UserID: userID, Months: make([]timelineMonth, 0, len(tl.Months))}
	for _, m := range tl.Months {
		resp.Months = append(resp.Months, timelineMonth{
			MonthKey:       string(m.MonthKey),
			FixedIncome:    m.FixedIncome.String(),
			CarryIn:        m.CarryIn.String(),
			VariableIncome: m.VariableIncome.String(),
			Spendable:      m.Spendable.String(),
			ActualExpense:  m.ActualExpense.String(),
			Remaining:      m.Remaining.String(),
			CarryOut:       m.CarryOut.String(),
		})
	}

	s.timelineCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}
	months := s.defaultForecastMonths
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 120 {
			badRequest(w, "invalid months %q: expected 1-120", v)
			return
		}
		months = n
	}

	key := userID + "|" + strconv.Itoa(months)
	if resp, found := s.forecastCache.Get(key); found {
		slog.DebugContext(r.Context(), "Forecast cache hit", "user_id", userID, "months", months)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	result, err := s.svc.Forecast(r.Context(), userID, months)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := forecastResponse{UserID: userID, Months: make([]forecastMonth, 0, len(result.Months))}
	for i, m := range result.Months {
		row := forecastMonth{
			MonthKey:        string(m.MonthKey),
			Income:          m.Income.String(),
			PlannedSpending: m.PlannedSpending.String(),
			GoalSaving:      m.GoalSaving.String(),
			Net:             m.Net.String(),
		}
		if i == 0 {
			row.ActualExpense = m.ActualExpense.String()
		}
		resp.Months = append(resp.Months, row)
	}
	for _, mk := range result.Warnings.NegativeMonths {
		resp.NegativeMonths = append(resp.NegativeMonths, string(mk))
	}

	s.forecastCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}
