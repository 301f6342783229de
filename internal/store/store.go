// Package store persists events, typed properties, and accounts. Two
// implementations share the interfaces: Postgres for deployments and an
// in-memory store for development and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/query"
)

var (
	// ErrDuplicateProperty signals a second write of the same (event_key,
	// name) pair into one typed table. The enclosing transaction rolls back.
	ErrDuplicateProperty = errors.New("duplicate property name for event")
	ErrEventExists       = errors.New("event key already exists")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotFound          = errors.New("not found")
)

// Property is one named attribute to attach to an event. The value's kind
// selects the typed table it lands in.
type Property struct {
	Name  string
	Value event.Value
}

// Account is an operator login. Passwords are stored as bcrypt hashes only.
type Account struct {
	ID             string
	Username       string
	HashedPassword string
}

// EventStore is the surface the ingestion pipeline and query runner build
// on.
type EventStore interface {
	// SaveEvent writes the event row and all property rows as one atomic
	// unit. Readers never observe the event without its full property set.
	SaveEvent(ctx context.Context, ev event.Event, props []Property) error

	// CountEvents counts events whose date lies in the window (inclusive on
	// both bounds) and which satisfy the filter.
	CountEvents(ctx context.Context, p query.Params) (int64, error)

	// ListEvents returns the matching events ordered by key, which for ULID
	// keys is creation order.
	ListEvents(ctx context.Context, p query.Params) ([]event.Event, error)

	// LookupEventKeys returns the keys of events carrying the (name, eq)
	// pair in the typed table matching eq's kind.
	LookupEventKeys(ctx context.Context, name string, eq event.Value) (map[string]struct{}, error)

	// DeleteEvent removes an event and, by cascade, all its property rows.
	// Administrative cleanup only; events are otherwise immutable.
	DeleteEvent(ctx context.Context, key string) error
}

// AccountStore covers accounts, the meta key-value table, and per-account
// token invalidation marks.
type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) error
	AccountByUsername(ctx context.Context, username string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// EnsureMeta returns the stored value for key, inserting value first if
	// the key is absent. Concurrent callers all observe the same winner.
	EnsureMeta(ctx context.Context, key, value string) (string, error)

	SetTokenInvalidation(ctx context.Context, accountID string, at time.Time) error
	// TokenInvalidation reports when the account last invalidated its
	// tokens; ok is false if it never has.
	TokenInvalidation(ctx context.Context, accountID string) (at time.Time, ok bool, err error)
}

// Store is the full persistence surface of the service.
type Store interface {
	EventStore
	AccountStore
	Close()
}
