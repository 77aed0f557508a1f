package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookiez/backend/internal/models"
)

const (
	dialectPostgres   = "postgres"
	statusEventsTable = "exchange_status_events"
)

// HistoryStore keeps the append-only exchange status history in PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Migrate creates the history table if it doesn't exist.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exchange_status_events (
			id          BIGSERIAL PRIMARY KEY,
			exchange_id CHAR(24)    NOT NULL,
			book_id     CHAR(24)    NOT NULL,
			actor_id    CHAR(24)    NOT NULL,
			from_status VARCHAR(16) NOT NULL DEFAULT '',
			to_status   VARCHAR(16) NOT NULL,
			book_status VARCHAR(16) NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS exchange_status_events_exchange_idx
			ON exchange_status_events (exchange_id, id);
	`)
	return err
}

// Append records one transition.
func (s *HistoryStore) Append(ctx context.Context, ev models.StatusEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	query, args, err := insertStatusEventSQL(ev)
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListByExchange returns the history of one exchange, oldest first.
func (s *HistoryStore) ListByExchange(ctx context.Context, exchangeID string) ([]models.StatusEvent, error) {
	query, args, err := selectStatusEventsSQL(exchangeID)
	if err != nil {
		return nil, fmt.Errorf("build history select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.StatusEvent])
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return events, nil
}

// Ping reports whether the pool can reach the server.
func (s *HistoryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func insertStatusEventSQL(ev models.StatusEvent) (string, []interface{}, error) {
	return goqu.Dialect(dialectPostgres).
		Insert(statusEventsTable).
		Rows(goqu.Record{
			"exchange_id": ev.ExchangeID,
			"book_id":     ev.BookID,
			"actor_id":    ev.ActorID,
			"from_status": ev.FromStatus,
			"to_status":   ev.ToStatus,
			"book_status": ev.BookStatus,
			"occurred_at": ev.OccurredAt,
		}).
		Prepared(true).
		ToSQL()
}

func selectStatusEventsSQL(exchangeID string) (string, []interface{}, error) {
	return goqu.Dialect(dialectPostgres).
		From(statusEventsTable).
		Select("id", "exchange_id", "book_id", "actor_id", "from_status", "to_status", "book_status", "occurred_at").
		Where(goqu.C("exchange_id").Eq(exchangeID)).
		Order(goqu.I("id").Asc()).
		Prepared(true).
		ToSQL()
}
