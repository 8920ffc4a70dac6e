package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// AgentStore implements domain.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *pgxpool.Pool
}

// NewAgentStore creates a new AgentStore backed by the given connection pool.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

const agentSelectCols = `a.id, a.name, a.class, a.active, a.created_at,
	COALESCE(ARRAY(SELECT source_id FROM agent_sources WHERE agent_id = a.id ORDER BY source_id), '{}')`

func scanAgent(row pgx.Row) (domain.Agent, error) {
	var a domain.Agent
	var class string
	if err := row.Scan(&a.ID, &a.Name, &class, &a.Active, &a.CreatedAt, &a.SourceIDs); err != nil {
		return domain.Agent{}, err
	}
	a.Class = domain.AgentClass(class)
	return a, nil
}

// GetByID retrieves an agent with its subscribed sources.
func (s *AgentStore) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentSelectCols+` FROM agents a WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Agent{}, domain.ErrNotFound
		}
		return domain.Agent{}, fmt.Errorf("postgres: get agent %s: %w", id, err)
	}
	return a, nil
}

// ListBySource returns the active agents subscribed to sourceID.
func (s *AgentStore) ListBySource(ctx context.Context, sourceID string) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentSelectCols+`
		 FROM agents a
		 JOIN agent_sources src ON src.agent_id = a.id
		 WHERE src.source_id = $1 AND a.active = TRUE
		 ORDER BY a.id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agents for source %s: %w", sourceID, err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

var _ domain.AgentStore = (*AgentStore)(nil)
