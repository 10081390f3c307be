package application

import (
	"context"
	"errors"
	"log"
	"time"

	"cashdesk/internal/eventing"
	history "cashdesk/internal/history/domain"
	"cashdesk/internal/observability/metrics"
	reconcile "cashdesk/internal/reconcile/domain"
)

// ErrCodeRejected is returned when the upstream rejects a confirmation code.
var ErrCodeRejected = errors.New("history: confirmation code rejected")

// ErrMalformedCode is returned before any network call when the code is not
// four digits.
var ErrMalformedCode = errors.New("history: confirmation code must be four digits")

// ErrRecordNotFound is returned when a compared day has no saved record.
var ErrRecordNotFound = errors.New("history: record not found")

// Gateway is the upstream's history surface.
type Gateway interface {
	History(ctx context.Context) ([]reconcile.Record, error)
	Delete(ctx context.Context, day, confirmationCode string) error
	ValidatePin(ctx context.Context, pin string) (bool, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service loads saved records and runs the browse pipeline over them.
// Deletion of a saved record is gated by its own confirmation code.
type Service struct {
	gateway Gateway
	bus     Publisher
	clock   Clock
	logger  *log.Logger
}

// NewService constructs the history service.
func NewService(gateway Gateway, bus Publisher, clock Clock, logger *log.Logger) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("history service: nil gateway")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{gateway: gateway, bus: bus, clock: clock, logger: logger}, nil
}

// Browse loads the saved records and applies the query.
func (s *Service) Browse(ctx context.Context, q history.Query) (history.PageResult, error) {
	records, err := s.load(ctx)
	if err != nil {
		return history.PageResult{}, err
	}
	return history.Browse(records, q)
}

// Compare diffs two saved days.
func (s *Service) Compare(ctx context.Context, baselineDay, currentDay reconcile.DayKey) (history.Comparison, error) {
	records, err := s.load(ctx)
	if err != nil {
		return history.Comparison{}, err
	}

	var baseline, current *reconcile.Record
	for i := range records {
		switch records[i].Day {
		case baselineDay.String():
			baseline = &records[i]
		case currentDay.String():
			current = &records[i]
		}
	}
	if baseline == nil || current == nil {
		return history.Comparison{}, ErrRecordNotFound
	}
	return history.Compare(*baseline, *current), nil
}

// Delete removes one saved record after a confirmed code.
func (s *Service) Delete(ctx context.Context, day reconcile.DayKey, code string) error {
	if !reconcile.WellFormedPin(code) {
		metrics.IncPinCheck(metrics.PinRejected)
		return ErrMalformedCode
	}
	ok, err := s.gateway.ValidatePin(ctx, code)
	if err != nil {
		metrics.IncPinCheck(metrics.PinError)
		return err
	}
	if !ok {
		metrics.IncPinCheck(metrics.PinRejected)
		return ErrCodeRejected
	}
	metrics.IncPinCheck(metrics.PinOK)

	if err := s.gateway.Delete(ctx, day.String(), code); err != nil {
		metrics.IncRecordDelete(metrics.ResultError)
		return err
	}
	metrics.IncRecordDelete(metrics.ResultSuccess)

	if s.bus != nil {
		if err := s.bus.Publish(ctx, eventing.RecordDeleted{Day: day.String(), OccurredAt: s.clock.Now()}); err != nil {
			s.logger.Printf("history service: publish failed: %v", err)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context) ([]reconcile.Record, error) {
	records, err := s.gateway.History(ctx)
	if err != nil {
		metrics.IncHistoryLoad(metrics.ResultError)
		return nil, err
	}
	metrics.IncHistoryLoad(metrics.ResultSuccess)
	return records, nil
}
