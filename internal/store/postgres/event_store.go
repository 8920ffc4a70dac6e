package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// The source's impact factor is joined in so jobs carry it.
const eventSelectCols = `e.id, e.source_id, e.text, e.tokens, e.direction,
	e.confidence, COALESCE(s.impact_factor, 50), e.close_intent, e.processed, e.created_at`

const eventFrom = ` FROM events e LEFT JOIN sources s ON s.id = e.source_id`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	var direction string
	err := row.Scan(
		&e.ID, &e.SourceID, &e.Text, &e.Tokens, &direction,
		&e.Confidence, &e.ImpactFactor, &e.CloseIntent, &e.Processed, &e.CreatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Direction = domain.Direction(direction)
	return e, nil
}

// ListPending returns unprocessed signal events, oldest first.
func (s *EventStore) ListPending(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventSelectCols+eventFrom+`
		 WHERE e.processed = FALSE AND e.is_signal = TRUE
		 ORDER BY e.created_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending events rows: %w", err)
	}
	return events, nil
}

// GetByID retrieves a single event.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventSelectCols+eventFrom+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return e, nil
}

// MarkProcessed flags an event so the trigger no longer picks it up.
func (s *EventStore) MarkProcessed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark event %s processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.EventStore = (*EventStore)(nil)
