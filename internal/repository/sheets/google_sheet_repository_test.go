package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

type memoryRepo struct {
	ranges map[string][][]interface{}
	err    error
}

func (m *memoryRepo) WriteRow(_ context.Context, sheetRange string, values []interface{}) error {
	if m.err != nil {
		return m.err
	}
	if m.ranges == nil {
		m.ranges = map[string][][]interface{}{}
	}
	m.ranges[sheetRange] = append(m.ranges[sheetRange], values)
	return nil
}

func (m *memoryRepo) ReadRange(_ context.Context, sheetRange string) ([][]interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.ranges[sheetRange], nil
}

func TestActivationJournalRoundTrip(t *testing.T) {
	repo := &memoryRepo{ranges: map[string][][]interface{}{
		ActivationsRange: {{"created_at", "id", "session", "identity", "target", "relay", "code", "outcome", "error"}},
	}}
	journal := NewActivationJournal(repo, nil)
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	entries := []models.Activation{
		{ID: "a1", SessionID: "1", Identity: "+79999999999", Target: "8", RelayID: "0", Code: 2, Outcome: models.OutcomeSent, CreatedAt: day.Add(9 * time.Hour)},
		{ID: "a2", SessionID: "1", Target: "13", RelayID: "1", Code: 305, Outcome: models.OutcomeRateLimited, WaitSeconds: 5, CreatedAt: day.Add(10 * time.Hour)},
		{ID: "a3", SessionID: "2", Target: "8", RelayID: "0", Outcome: models.OutcomeFailed, Error: "timeout", CreatedAt: day.Add(30 * time.Hour)},
	}
	for _, a := range entries {
		if err := journal.Record(context.Background(), a); err != nil {
			t.Fatalf("Record err: %v", err)
		}
	}

	got, err := journal.ListActivations(context.Background(), day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListActivations err: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 activations in range, got %d", len(got))
	}
	if got[0].Identity != "+79999999999" {
		t.Fatalf("journal should keep the full identity, got %q", got[0].Identity)
	}
	if got[1].ID != "a2" || got[1].WaitSeconds != 5 || got[1].Outcome != models.OutcomeRateLimited {
		t.Fatalf("unexpected activation %+v", got[1])
	}
}

func TestActivationJournalSurfacesErrors(t *testing.T) {
	journal := NewActivationJournal(&memoryRepo{err: errors.New("quota")}, nil)

	if err := journal.Record(context.Background(), models.Activation{}); err == nil {
		t.Fatal("expected write error")
	}
	if _, err := journal.ListActivations(context.Background(), time.Time{}, time.Now()); err == nil {
		t.Fatal("expected read error")
	}
}

func TestParseActivationRowFromSheetValues(t *testing.T) {
	row := []interface{}{"2026-10-16T09:00:00Z", "a1", "1", "+79999999999", "8", "0", "2", "sent"}

	a, err := parseActivationRow(row)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if a.Code != 2 || a.Error != "" || a.Identity != "+79999999999" {
		t.Fatalf("unexpected activation %+v", a)
	}
}
