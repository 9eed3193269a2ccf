// Package google pushes budget timelines to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// LoadCredentials resolves OAuth/service-account credentials from either an
// inline JSON blob or a file path. Inline wins when both are set.
func LoadCredentials(inlineJSON, filePath string) ([]byte, error) {
	if strings.TrimSpace(inlineJSON) != "" {
		return []byte(inlineJSON), nil
	}
	if strings.TrimSpace(filePath) != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("no Google credentials configured")
}

func NewExporter(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

var timelineHeader = []any{
	"User", "Month", "Fixed income", "Carry in", "Variable income",
	"Spendable", "Actual expense", "Remaining", "Carry out",
}

// ExportTimeline replaces the sheet's contents with the user's current
// timeline. Amounts are written as decimal strings so the spreadsheet never
// re-rounds them.
func (e *Exporter) ExportTimeline(ctx context.Context, userID string, tl core.Timeline) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := make([][]any, 0, len(tl.Months)+1)
	values = append(values, timelineHeader)
	for _, m := range tl.Months {
		values = append(values, []any{
			userID,
			string(m.MonthKey),
			m.FixedIncome.String(),
			m.CarryIn.String(),
			m.VariableIncome.String(),
			m.Spendable.String(),
			m.ActualExpense.String(),
			m.Remaining.String(),
			m.CarryOut.String(),
		})
	}

	clearRange := fmt.Sprintf("%s!A:I", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	slog.InfoContext(ctx, "Timeline exported to Google Sheets",
		log.FieldUserID, userID,
		log.FieldSheetsRef, e.sheetName,
		log.FieldOperation, log.OpExport,
		"months", len(tl.Months))
	return nil
}
