package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

type memorySink struct {
	got []models.Activation
	err error
}

func (m *memorySink) Record(_ context.Context, a models.Activation) error {
	m.got = append(m.got, a)
	return m.err
}

func TestFanoutWritesAllSinks(t *testing.T) {
	failing := &memorySink{err: errors.New("mongo down")}
	healthy := &memorySink{}
	f := NewFanout(failing, nil, healthy)

	if f.Len() != 2 {
		t.Fatalf("nil sinks must be skipped, got %d", f.Len())
	}

	err := f.Record(context.Background(), models.Activation{ID: "a1"})
	if err == nil || !errors.Is(err, failing.err) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if len(healthy.got) != 1 || healthy.got[0].ID != "a1" {
		t.Fatal("healthy sink skipped after failure")
	}
}

func TestEmptyFanout(t *testing.T) {
	if err := NewFanout().Record(context.Background(), models.Activation{}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
