package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// DeploymentStore implements domain.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

// NewDeploymentStore creates a new DeploymentStore backed by the given connection pool.
func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

const deploymentSelectCols = `id, agent_id, user_wallet, venue_mode, venue_priority,
	risk_tolerance, trade_frequency, sentiment_weight, momentum_focus, rank_priority,
	status, created_at`

func scanDeployment(row pgx.Row) (domain.Deployment, error) {
	var d domain.Deployment
	var mode, status string
	var priority []string
	err := row.Scan(
		&d.ID, &d.AgentID, &d.UserWallet, &mode, &priority,
		&d.Preferences.RiskTolerance, &d.Preferences.TradeFrequency,
		&d.Preferences.SentimentWeight, &d.Preferences.MomentumFocus,
		&d.Preferences.RankPriority,
		&status, &d.CreatedAt,
	)
	if err != nil {
		return domain.Deployment{}, err
	}
	d.Venue.Mode = domain.VenueMode(mode)
	// Unknown venue names are dropped so resolution only sees venues it can query.
	for _, p := range priority {
		if v, err := domain.ParseVenue(p); err == nil {
			d.Venue.Priority = append(d.Venue.Priority, v)
		}
	}
	d.Status = domain.DeploymentStatus(status)
	return d, nil
}

// GetByID retrieves a deployment.
func (s *DeploymentStore) GetByID(ctx context.Context, id string) (domain.Deployment, error) {
	d, err := scanDeployment(s.pool.QueryRow(ctx,
		`SELECT `+deploymentSelectCols+` FROM deployments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deployment{}, domain.ErrNotFound
		}
		return domain.Deployment{}, fmt.Errorf("postgres: get deployment %s: %w", id, err)
	}
	return d, nil
}

// ListActiveByAgent returns the agent's ACTIVE deployments.
func (s *DeploymentStore) ListActiveByAgent(ctx context.Context, agentID string) ([]domain.Deployment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deploymentSelectCols+` FROM deployments
		 WHERE agent_id = $1 AND status = 'ACTIVE'
		 ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deployments for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

var _ domain.DeploymentStore = (*DeploymentStore)(nil)
