package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-sender/webhook"
)

/* PostgreSQL implementation of webhook.Store
 * The subscription document is stored as JSONB. Filters and the paused
 * flag are duplicated into columns so Query can filter server side with
 * the array overlap operator.
 */

// Schema creates the subscriptions table
const Schema = `CREATE TABLE IF NOT EXISTS webhook_subscriptions (
	owner TEXT NOT NULL,
	id TEXT NOT NULL,
	filters TEXT[] NOT NULL,
	is_paused BOOLEAN NOT NULL DEFAULT FALSE,
	data JSONB NOT NULL,
	PRIMARY KEY (owner, id)
)`

const (
	selectAllQuery   = "SELECT data FROM webhook_subscriptions WHERE owner = $1 ORDER BY id"
	lookupQuery      = "SELECT data FROM webhook_subscriptions WHERE owner = $1 AND id = $2"
	queryQuery       = "SELECT data FROM webhook_subscriptions WHERE owner = $1 AND NOT is_paused AND filters && $2 ORDER BY id"
	queryAllQuery    = "SELECT owner, data FROM webhook_subscriptions WHERE NOT is_paused AND filters && $1 ORDER BY owner, id"
	insertQuery      = "INSERT INTO webhook_subscriptions (owner, id, filters, is_paused, data) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (owner, id) DO NOTHING"
	updateQuery      = "UPDATE webhook_subscriptions SET filters = $3, is_paused = $4, data = $5 WHERE owner = $1 AND id = $2"
	deleteQuery      = "DELETE FROM webhook_subscriptions WHERE owner = $1 AND id = $2"
	deleteOwnerQuery = "DELETE FROM webhook_subscriptions WHERE owner = $1"
)

type Store struct {
	DB *sql.DB
}

var _ webhook.Store = (*Store)(nil)

// NewStore opens a store with the default pool (25, 5, 5 min)
func NewStore(connectionString string) (*Store, error) {
	return NewStoreWithPoolConfig(connectionString, 25, 5, 5)
}

// NewStoreWithPoolConfig opens a store with a custom pool
// maxOpenConns: maximum open connections (0 = unlimited)
// maxIdleConns: maximum idle connections kept in the pool
// maxLifeMinutes: maximum minutes a connection may be reused
func NewStoreWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Store{DB: db}, nil
}

// Migrate creates the schema
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// GetAll returns every subscription of an owner
func (s *Store) GetAll(ctx context.Context, owner string) ([]webhook.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, selectAllQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("selecting subscriptions: %w", err)
	}
	return scanSubscriptions(rows)
}

// Lookup returns one subscription
func (s *Store) Lookup(ctx context.Context, owner, id string) (webhook.Subscription, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx, lookupQuery, owner, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Subscription{}, fmt.Errorf("%w: %s", webhook.ErrNotFound, id)
	}
	if err != nil {
		return webhook.Subscription{}, fmt.Errorf("selecting subscription: %w", err)
	}
	return decode(data)
}

// Query selects matching, non-paused subscriptions and applies the predicate
func (s *Store) Query(ctx context.Context, owner string, actions []string, predicate webhook.Predicate) ([]webhook.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, queryQuery, owner, pq.Array(filterTerms(actions)))
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	return webhook.FilterSubscriptions(subs, owner, actions, predicate), nil
}

// QueryAll is Query across owners
func (s *Store) QueryAll(ctx context.Context, actions []string, predicate webhook.Predicate) (map[string][]webhook.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, queryAllQuery, pq.Array(filterTerms(actions)))
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	byOwner := make(map[string][]webhook.Subscription)
	for rows.Next() {
		var owner string
		var data []byte
		if err := rows.Scan(&owner, &data); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		sub, err := decode(data)
		if err != nil {
			return nil, err
		}
		byOwner[owner] = append(byOwner[owner], sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}

	result := make(map[string][]webhook.Subscription, len(byOwner))
	for owner, subs := range byOwner {
		if matched := webhook.FilterSubscriptions(subs, owner, actions, predicate); len(matched) > 0 {
			result[owner] = matched
		}
	}
	return result, nil
}

// Insert adds a subscription; an existing (owner, id) is a conflict
func (s *Store) Insert(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return webhook.StoreInternalError, fmt.Errorf("marshaling subscription: %w", err)
	}

	result, err := s.DB.ExecContext(ctx, insertQuery, owner, sub.ID, pq.Array(sub.Filters), sub.IsPaused, data)
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("inserting subscription: %w", err)
	}
	return affected(result, webhook.StoreConflict)
}

// Update replaces an existing subscription
func (s *Store) Update(ctx context.Context, owner string, sub webhook.Subscription) (webhook.StoreResult, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return webhook.StoreInternalError, fmt.Errorf("marshaling subscription: %w", err)
	}

	result, err := s.DB.ExecContext(ctx, updateQuery, owner, sub.ID, pq.Array(sub.Filters), sub.IsPaused, data)
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("updating subscription: %w", err)
	}
	return affected(result, webhook.StoreNotFound)
}

// Delete removes one subscription
func (s *Store) Delete(ctx context.Context, owner, id string) (webhook.StoreResult, error) {
	result, err := s.DB.ExecContext(ctx, deleteQuery, owner, id)
	if err != nil {
		return webhook.StoreOperationError, fmt.Errorf("deleting subscription: %w", err)
	}
	return affected(result, webhook.StoreNotFound)
}

// DeleteAll removes every subscription of an owner
func (s *Store) DeleteAll(ctx context.Context, owner string) error {
	if _, err := s.DB.ExecContext(ctx, deleteOwnerQuery, owner); err != nil {
		return fmt.Errorf("deleting subscriptions: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// filterTerms is the lower-cased action list plus the wildcard
func filterTerms(actions []string) []string {
	terms := make([]string, 0, len(actions)+1)
	terms = append(terms, webhook.WildcardFilter)
	for _, a := range actions {
		terms = append(terms, strings.ToLower(a))
	}
	return terms
}

func affected(result sql.Result, none webhook.StoreResult) (webhook.StoreResult, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return webhook.StoreInternalError, fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return none, nil
	}
	return webhook.StoreSuccess, nil
}

func scanSubscriptions(rows *sql.Rows) ([]webhook.Subscription, error) {
	defer rows.Close()

	var subs []webhook.Subscription
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		sub, err := decode(data)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	return subs, nil
}

func decode(data []byte) (webhook.Subscription, error) {
	var sub webhook.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return webhook.Subscription{}, fmt.Errorf("unmarshaling subscription: %w", err)
	}
	return sub, nil
}
