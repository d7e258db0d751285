package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/domain/models"
	"github.com/mamadbah2/relaybot/internal/targets"
)

const dateLayout = "2006-01-02"

// Source lists journaled activations.
type Source interface {
	ListActivations(ctx context.Context, start, end time.Time) ([]models.Activation, error)
}

// Service builds operator summaries from the activation journal.
type Service struct {
	source   Source
	location *time.Location
	logger   *zap.Logger
}

// NewService wires a new reporting service instance. A nil location means UTC.
func NewService(source Source, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{source: source, location: location, logger: logger}
}

// Summary aggregates the activations of one day.
type Summary struct {
	Day        time.Time
	Total      int
	ByOutcome  map[models.OutcomeKind]int
	ByTarget   map[string]int
	Identities int
}

// Summarize counts activations for the calendar day containing day, in the service's location.
func (s *Service) Summarize(ctx context.Context, day time.Time) (Summary, error) {
	local := day.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	end := start.AddDate(0, 0, 1)

	activations, err := s.source.ListActivations(ctx, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("load activations: %w", err)
	}

	summary := Summary{
		Day:       start,
		ByOutcome: make(map[models.OutcomeKind]int),
		ByTarget:  make(map[string]int),
	}
	identities := make(map[string]struct{})
	for _, a := range activations {
		summary.Total++
		summary.ByOutcome[a.Outcome]++
		summary.ByTarget[a.Target]++
		if a.Identity != "" {
			identities[a.Identity] = struct{}{}
		}
	}
	summary.Identities = len(identities)

	s.logger.Debug("activation summary computed", zap.String("day", start.Format(dateLayout)), zap.Int("total", summary.Total))
	return summary, nil
}

// DailySummary renders Summarize as a chat message.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (string, error) {
	summary, err := s.Summarize(ctx, day)
	if err != nil {
		return "", err
	}
	return Format(summary), nil
}

// Format renders a summary as plain text.
func Format(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activations %s: %d", summary.Day.Format(dateLayout), summary.Total)
	if summary.Total == 0 {
		b.WriteString("\nNo commands issued.")
		return b.String()
	}

	fmt.Fprintf(&b, "\nsent: %d, rate-limited: %d, not sent: %d, failed: %d",
		summary.ByOutcome[models.OutcomeSent],
		summary.ByOutcome[models.OutcomeRateLimited],
		summary.ByOutcome[models.OutcomeNotSent],
		summary.ByOutcome[models.OutcomeFailed])
	fmt.Fprintf(&b, "\nusers: %d", summary.Identities)

	labels := make([]string, 0, len(summary.ByTarget))
	for label := range summary.ByTarget {
		labels = append(labels, label)
	}
	targets.SortLabels(labels)
	for _, label := range labels {
		fmt.Fprintf(&b, "\n%s: %d", label, summary.ByTarget[label])
	}
	return b.String()
}
