package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

// Sink stores activation records.
type Sink interface {
	Record(ctx context.Context, activation models.Activation) error
}

// Fanout writes every activation to all of its sinks.
type Fanout struct {
	sinks []Sink
}

// NewFanout returns a recorder over the non-nil sinks.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len returns how many sinks are configured.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Record writes to each sink; a failing sink does not stop the others.
func (f *Fanout) Record(ctx context.Context, activation models.Activation) error {
	var errs []error
	for i, s := range f.sinks {
		if err := s.Record(ctx, activation); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
