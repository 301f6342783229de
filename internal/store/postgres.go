package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/query"
)

// pgUniqueViolation is the Postgres error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate applies the SQL migrations at sourceURL (e.g. "file://migrations")
// to the database.
func Migrate(sourceURL, connString string) error {
	m, err := migrate.New(sourceURL, connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEvent(ctx context.Context, ev event.Event, props []Property) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO event (key, date) VALUES ($1, $2)`,
		ev.Key, event.FormatTime(ev.Date),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEventExists
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	for _, p := range props {
		if err := insertProperty(ctx, tx, ev.Key, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

// insertProperty dispatches the row to the typed table matching the value's
// kind.
func insertProperty(ctx context.Context, tx pgx.Tx, eventKey string, p Property) error {
	var sql string
	var value any
	switch p.Value.Kind() {
	case event.KindInteger:
		sql = `INSERT INTO property_integer (event_key, name, value) VALUES ($1, $2, $3)`
		value = p.Value.Int()
	case event.KindBoolean:
		sql = `INSERT INTO property_boolean (event_key, name, value) VALUES ($1, $2, $3)`
		value = p.Value.Bool()
	default:
		sql = `INSERT INTO property_string (event_key, name, value) VALUES ($1, $2, $3)`
		value = p.Value.Str()
	}

	if _, err := tx.Exec(ctx, sql, eventKey, p.Name, value); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateProperty, p.Name)
		}
		return fmt.Errorf("failed to insert property %q: %w", p.Name, err)
	}
	return nil
}

func (s *PostgresStore) CountEvents(ctx context.Context, p query.Params) (int64, error) {
	cond := query.Compile(p.Filter, 2)
	sql := `SELECT COUNT(*) FROM event WHERE date >= $1 AND date <= $2 AND ` + cond.SQL
	args := append([]any{event.FormatTime(p.From), event.FormatTime(p.To)}, cond.Args...)

	var count int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, p query.Params) ([]event.Event, error) {
	cond := query.Compile(p.Filter, 2)
	sql := `SELECT key, date FROM event WHERE date >= $1 AND date <= $2 AND ` + cond.SQL + ` ORDER BY key`
	args := append([]any{event.FormatTime(p.From), event.FormatTime(p.To)}, cond.Args...)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var key, date string
		if err := rows.Scan(&key, &date); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		t, err := event.ParseTime(date)
		if err != nil {
			return nil, err
		}
		events = append(events, event.Event{Key: key, Date: t})
	}
	return events, rows.Err()
}

func (s *PostgresStore) LookupEventKeys(ctx context.Context, name string, eq event.Value) (map[string]struct{}, error) {
	var sql string
	var value any
	switch eq.Kind() {
	case event.KindInteger:
		sql = `SELECT event_key FROM property_integer WHERE name = $1 AND value = $2`
		value = eq.Int()
	case event.KindBoolean:
		sql = `SELECT event_key FROM property_boolean WHERE name = $1 AND value = $2`
		value = eq.Bool()
	default:
		sql = `SELECT event_key FROM property_string WHERE name = $1 AND value = $2`
		value = eq.Str()
	}

	rows, err := s.pool.Query(ctx, sql, name, value)
	if err != nil {
		return nil, fmt.Errorf("failed to look up property: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan event key: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM event WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account (id, username, hashed_password) VALUES ($1, $2, $3)`,
		a.ID, a.Username, a.HashedPassword,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) AccountByUsername(ctx context.Context, username string) (Account, error) {
	return s.accountBy(ctx, `SELECT id, username, hashed_password FROM account WHERE username = $1`, username)
}

func (s *PostgresStore) AccountByID(ctx context.Context, id string) (Account, error) {
	return s.accountBy(ctx, `SELECT id, username, hashed_password FROM account WHERE id = $1`, id)
}

func (s *PostgresStore) accountBy(ctx context.Context, sql string, arg any) (Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx, sql, arg).Scan(&a.ID, &a.Username, &a.HashedPassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, hashed_password FROM account ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Username, &a.HashedPassword); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) EnsureMeta(ctx context.Context, key, value string) (string, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, value,
	)
	if err != nil {
		return "", fmt.Errorf("failed to store meta %q: %w", key, err)
	}

	var stored string
	if err := s.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, key).Scan(&stored); err != nil {
		return "", fmt.Errorf("failed to read meta %q: %w", key, err)
	}
	return stored, nil
}

func (s *PostgresStore) SetTokenInvalidation(ctx context.Context, accountID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_invalidation (account_id, invalidated_at) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET invalidated_at = EXCLUDED.invalidated_at`,
		accountID, event.FormatTime(at),
	)
	if err != nil {
		return fmt.Errorf("failed to record token invalidation: %w", err)
	}
	return nil
}

func (s *PostgresStore) TokenInvalidation(ctx context.Context, accountID string) (time.Time, bool, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT invalidated_at FROM token_invalidation WHERE account_id = $1`, accountID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read token invalidation: %w", err)
	}
	at, err := event.ParseTime(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
