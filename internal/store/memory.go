package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/query"
)

// MemoryStore is an in-memory Store for development and tests. It holds the
// same three typed property maps the SQL schema has and evaluates filters
// with the same set-membership semantics the compiler emits.
type MemoryStore struct {
	mu            sync.RWMutex
	events        map[string]event.Event
	strings       map[string]map[string]string
	integers      map[string]map[string]int64
	booleans      map[string]map[string]bool
	accounts      map[string]Account
	meta          map[string]string
	invalidations map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]event.Event),
		strings:       make(map[string]map[string]string),
		integers:      make(map[string]map[string]int64),
		booleans:      make(map[string]map[string]bool),
		accounts:      make(map[string]Account),
		meta:          make(map[string]string),
		invalidations: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) SaveEvent(_ context.Context, ev event.Event, props []Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[ev.Key]; exists {
		return ErrEventExists
	}

	// Stage the typed rows first so a duplicate name leaves nothing behind.
	strs := make(map[string]string)
	ints := make(map[string]int64)
	bools := make(map[string]bool)
	for _, p := range props {
		switch p.Value.Kind() {
		case event.KindInteger:
			if _, dup := ints[p.Name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateProperty, p.Name)
			}
			ints[p.Name] = p.Value.Int()
		case event.KindBoolean:
			if _, dup := bools[p.Name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateProperty, p.Name)
			}
			bools[p.Name] = p.Value.Bool()
		default:
			if _, dup := strs[p.Name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateProperty, p.Name)
			}
			strs[p.Name] = p.Value.Str()
		}
	}

	s.events[ev.Key] = event.Event{Key: ev.Key, Date: ev.Date.UTC()}
	s.strings[ev.Key] = strs
	s.integers[ev.Key] = ints
	s.booleans[ev.Key] = bools
	return nil
}

func (s *MemoryStore) CountEvents(_ context.Context, p query.Params) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for key := range s.eventsInWindow(p.From, p.To) {
		if p.Filter.Match(key, s.lookupLocked) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, p query.Params) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []event.Event
	for key, ev := range s.eventsInWindow(p.From, p.To) {
		if p.Filter.Match(key, s.lookupLocked) {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events, nil
}

// eventsInWindow compares encoded timestamps, the same inclusive-inclusive
// text comparison the SQL path runs.
func (s *MemoryStore) eventsInWindow(from, to time.Time) map[string]event.Event {
	fromStr := event.FormatTime(from)
	toStr := event.FormatTime(to)

	matched := make(map[string]event.Event)
	for key, ev := range s.events {
		date := event.FormatTime(ev.Date)
		if date >= fromStr && date <= toStr {
			matched[key] = ev
		}
	}
	return matched
}

func (s *MemoryStore) LookupEventKeys(_ context.Context, name string, eq event.Value) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(name, eq), nil
}

func (s *MemoryStore) lookupLocked(name string, eq event.Value) map[string]struct{} {
	keys := make(map[string]struct{})
	switch eq.Kind() {
	case event.KindInteger:
		for key, props := range s.integers {
			if v, ok := props[name]; ok && v == eq.Int() {
				keys[key] = struct{}{}
			}
		}
	case event.KindBoolean:
		for key, props := range s.booleans {
			if v, ok := props[name]; ok && v == eq.Bool() {
				keys[key] = struct{}{}
			}
		}
	default:
		for key, props := range s.strings {
			if v, ok := props[name]; ok && v == eq.Str() {
				keys[key] = struct{}{}
			}
		}
	}
	return keys
}

func (s *MemoryStore) DeleteEvent(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[key]; !exists {
		return ErrNotFound
	}
	delete(s.events, key)
	delete(s.strings, key)
	delete(s.integers, key)
	delete(s.booleans, key)
	return nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == a.Username {
			return ErrAccountExists
		}
	}
	if _, exists := s.accounts[a.ID]; exists {
		return ErrAccountExists
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *MemoryStore) AccountByUsername(_ context.Context, username string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *MemoryStore) AccountByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) EnsureMeta(_ context.Context, key, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.meta[key]; ok {
		return stored, nil
	}
	s.meta[key] = value
	return value, nil
}

func (s *MemoryStore) SetTokenInvalidation(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations[accountID] = at.UTC()
	return nil
}

func (s *MemoryStore) TokenInvalidation(_ context.Context, accountID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.invalidations[accountID]
	return at, ok, nil
}
