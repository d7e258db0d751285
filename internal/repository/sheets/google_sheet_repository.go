package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/domain/models"
)

// ActivationsRange is where the journal rows live.
const ActivationsRange = "Activations!A:I"

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReadRange fetches a rectangular data range from the spreadsheet.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}

	return resp.Values, nil
}

// ActivationJournal stores activations as sheet rows on top of a Repository.
type ActivationJournal struct {
	repo   Repository
	logger *zap.Logger
}

// NewActivationJournal wraps repo.
func NewActivationJournal(repo Repository, logger *zap.Logger) *ActivationJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationJournal{repo: repo, logger: logger}
}

// Record appends one activation row.
func (j *ActivationJournal) Record(ctx context.Context, a models.Activation) error {
	return j.repo.WriteRow(ctx, ActivationsRange, activationRow(a))
}

// ListActivations reads every row and keeps those created in [start, end).
// Rows that cannot be parsed (including a header row) are skipped.
func (j *ActivationJournal) ListActivations(ctx context.Context, start, end time.Time) ([]models.Activation, error) {
	rows, err := j.repo.ReadRange(ctx, ActivationsRange)
	if err != nil {
		return nil, fmt.Errorf("load activations range: %w", err)
	}

	var out []models.Activation
	for _, row := range rows {
		a, err := parseActivationRow(row)
		if err != nil {
			j.logger.Debug("skip activation row", zap.Any("row", row), zap.Error(err))
			continue
		}
		if a.CreatedAt.Before(start) || !a.CreatedAt.Before(end) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func activationRow(a models.Activation) []interface{} {
	return []interface{}{
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.ID,
		a.SessionID,
		a.Identity,
		a.Target,
		a.RelayID,
		a.Code,
		string(a.Outcome),
		a.Error,
	}
}

func parseActivationRow(row []interface{}) (models.Activation, error) {
	if len(row) < 8 {
		return models.Activation{}, fmt.Errorf("expected at least 8 cells, got %d", len(row))
	}

	cell := func(i int) string {
		if i >= len(row) || row[i] == nil {
			return ""
		}
		return fmt.Sprint(row[i])
	}

	createdAt, err := time.Parse(time.RFC3339, cell(0))
	if err != nil {
		return models.Activation{}, fmt.Errorf("parse created_at: %w", err)
	}
	code, err := strconv.ParseInt(cell(6), 10, 64)
	if err != nil {
		return models.Activation{}, fmt.Errorf("parse code: %w", err)
	}

	a := models.Activation{
		CreatedAt: createdAt,
		ID:        cell(1),
		SessionID: cell(2),
		Identity:  cell(3),
		Target:    cell(4),
		RelayID:   cell(5),
		Code:      code,
		Outcome:   models.OutcomeKind(cell(7)),
		Error:     cell(8),
	}
	if a.Outcome == models.OutcomeRateLimited {
		a.WaitSeconds = models.Interpret(code).WaitSeconds
	}
	return a, nil
}
