package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// EventStore reads classified events.
type EventStore interface {
	ListPending(ctx context.Context, limit int) ([]Event, error)
	GetByID(ctx context.Context, id string) (Event, error)
	MarkProcessed(ctx context.Context, id string) error
}

// AgentStore reads agent definitions.
type AgentStore interface {
	GetByID(ctx context.Context, id string) (Agent, error)
	ListBySource(ctx context.Context, sourceID string) ([]Agent, error)
}

// DeploymentStore reads user deployments.
type DeploymentStore interface {
	GetByID(ctx context.Context, id string) (Deployment, error)
	ListActiveByAgent(ctx context.Context, agentID string) ([]Deployment, error)
}

// VenueMarketStore persists venue market listings.
type VenueMarketStore interface {
	Get(ctx context.Context, venue Venue, token string) (VenueMarket, error)
	UpsertBatch(ctx context.Context, markets []VenueMarket) error
	ListByVenue(ctx context.Context, venue Venue) ([]VenueMarket, error)
}

// SignalStore persists signals. Record inserts the signal and debits one unit
// of the wallet's quota in a single transaction; it returns ErrAlreadyExists
// when a signal with the same job key exists, in which case nothing is debited.
type SignalStore interface {
	Record(ctx context.Context, sig Signal, defaultQuota int) error
	ExistsJobKey(ctx context.Context, jobKey string) (bool, error)
	Recent(ctx context.Context, agentID, deploymentID, token string, since time.Time) ([]RecentSignal, error)
	ListByDeployment(ctx context.Context, deploymentID string, opts ListOpts) ([]Signal, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Signal, error)
}

// QuotaStore reads per-wallet trade quotas.
type QuotaStore interface {
	Remaining(ctx context.Context, wallet string, defaultQuota int) (int, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log. List filters by event name
// unless event is empty.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEntry, error)
}
