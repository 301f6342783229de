// Package ingest records logical events as indivisible units: one event row
// plus its typed property rows, including the reserved name and session
// properties, in a single transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/metrics"
	"github.com/basalytics/basalytics/internal/store"
)

// ErrReservedProperty is returned when a client payload uses a property name
// the pipeline writes itself ("name", "session"). Rejected before the
// transaction opens.
var ErrReservedProperty = errors.New("reserved property name")

type Service struct {
	store store.EventStore
	now   func() time.Time
}

func NewService(st store.EventStore) *Service {
	return &Service{store: st, now: time.Now}
}

// Ingest writes one event named name with the given property bag and the
// caller's pseudonymous session id. Either every row lands or none do.
func (s *Service) Ingest(ctx context.Context, name string, properties map[string]event.Value, sessionID string) error {
	for propName := range properties {
		if propName == event.PropertyName || propName == event.PropertySession {
			return fmt.Errorf("%w: %q", ErrReservedProperty, propName)
		}
	}

	ev := event.Event{
		Key:  ulid.Make().String(),
		Date: s.now().UTC(),
	}

	props := make([]store.Property, 0, len(properties)+2)
	// The event's name is itself a property, so it is filterable like any
	// other attribute.
	props = append(props, store.Property{Name: event.PropertyName, Value: event.String(name)})
	for _, propName := range sortedNames(properties) {
		props = append(props, store.Property{Name: propName, Value: properties[propName]})
	}
	props = append(props, store.Property{Name: event.PropertySession, Value: event.String(sessionID)})

	if err := s.store.SaveEvent(ctx, ev, props); err != nil {
		metrics.IngestErrors.Inc()
		return fmt.Errorf("failed to save event %q: %w", name, err)
	}

	metrics.EventsIngested.WithLabelValues(name).Inc()
	return nil
}

// sortedNames fixes the insert order; map iteration would make transaction
// failures nondeterministic.
func sortedNames(properties map[string]event.Value) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
