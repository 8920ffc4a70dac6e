package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, job_key, agent_id, deployment_id, user_wallet, token_symbol,
	venue, side, size_model, risk_model, source_event_ids, rationale,
	should_trade, allocation_pct, leverage, close_position_ids, net_change,
	score, oracle_failure, skipped_reason, created_at`

func scanSignal(row pgx.Row) (domain.Signal, error) {
	var sig domain.Signal
	var venue, side, netChange, oracleFailure string
	var sizeJSON, riskJSON, scoreJSON []byte
	var skipped *string

	err := row.Scan(
		&sig.ID, &sig.JobKey, &sig.AgentID, &sig.DeploymentID, &sig.UserWallet, &sig.Token,
		&venue, &side, &sizeJSON, &riskJSON, &sig.SourceEventIDs, &sig.Rationale,
		&sig.ShouldTrade, &sig.AllocationPct, &sig.Leverage, &sig.ClosePositionIDs, &netChange,
		&scoreJSON, &oracleFailure, &skipped, &sig.CreatedAt,
	)
	if err != nil {
		return domain.Signal{}, err
	}
	if err := json.Unmarshal(sizeJSON, &sig.SizeModel); err != nil {
		return domain.Signal{}, fmt.Errorf("unmarshal size model: %w", err)
	}
	if err := json.Unmarshal(riskJSON, &sig.RiskModel); err != nil {
		return domain.Signal{}, fmt.Errorf("unmarshal risk model: %w", err)
	}
	if err := json.Unmarshal(scoreJSON, &sig.Score); err != nil {
		return domain.Signal{}, fmt.Errorf("unmarshal score: %w", err)
	}
	sig.Venue = domain.Venue(venue)
	sig.Side = domain.Side(side)
	sig.NetChange = domain.NetChange(netChange)
	sig.OracleFailure = domain.OracleFailure(oracleFailure)
	if skipped != nil {
		r := domain.SkipReason(*skipped)
		sig.SkippedReason = &r
	}
	return sig, nil
}

func collectSignals(rows pgx.Rows) ([]domain.Signal, error) {
	defer rows.Close()
	var out []domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Record inserts sig and debits one unit of the wallet's quota in one
// transaction. A wallet seen for the first time starts at defaultQuota. When a
// signal with the same job key already exists nothing is written and
// domain.ErrAlreadyExists is returned; when the wallet has no quota left
// nothing is written and domain.ErrQuotaExhausted is returned.
func (s *SignalStore) Record(ctx context.Context, sig domain.Signal, defaultQuota int) error {
	sizeJSON, err := json.Marshal(sig.SizeModel)
	if err != nil {
		return fmt.Errorf("postgres: marshal size model: %w", err)
	}
	riskJSON, err := json.Marshal(sig.RiskModel)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk model: %w", err)
	}
	scoreJSON, err := json.Marshal(sig.Score)
	if err != nil {
		return fmt.Errorf("postgres: marshal score: %w", err)
	}
	var skipped *string
	if sig.SkippedReason != nil {
		r := string(*sig.SkippedReason)
		skipped = &r
	}
	sourceIDs := sig.SourceEventIDs
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	closeIDs := sig.ClosePositionIDs
	if closeIDs == nil {
		closeIDs = []string{}
	}
	createdAt := sig.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin record signal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `
		INSERT INTO signals (
			id, job_key, agent_id, deployment_id, user_wallet, token_symbol,
			venue, side, size_model, risk_model, source_event_ids, rationale,
			should_trade, allocation_pct, leverage, close_position_ids, net_change,
			score, oracle_failure, skipped_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21
		)
		ON CONFLICT (job_key) DO NOTHING`

	tag, err := tx.Exec(ctx, insert,
		sig.ID, sig.JobKey, sig.AgentID, sig.DeploymentID, sig.UserWallet, sig.Token,
		string(sig.Venue), string(sig.Side), sizeJSON, riskJSON, sourceIDs, sig.Rationale,
		sig.ShouldTrade, sig.AllocationPct, sig.Leverage, closeIDs, string(sig.NetChange),
		scoreJSON, string(sig.OracleFailure), skipped, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", sig.JobKey, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}

	const seed = `
		INSERT INTO trade_quotas (user_wallet, remaining, updated_at)
		VALUES ($1, GREATEST($2::int, 0), NOW())
		ON CONFLICT (user_wallet) DO NOTHING`
	if _, err := tx.Exec(ctx, seed, sig.UserWallet, defaultQuota); err != nil {
		return fmt.Errorf("postgres: seed quota for %s: %w", sig.UserWallet, err)
	}

	// The row lock serialises concurrent debits; a waiter re-checks remaining.
	const debit = `
		UPDATE trade_quotas SET remaining = remaining - 1, updated_at = NOW()
		WHERE user_wallet = $1 AND remaining > 0`
	tag, err = tx.Exec(ctx, debit, sig.UserWallet)
	if err != nil {
		return fmt.Errorf("postgres: debit quota for %s: %w", sig.UserWallet, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuotaExhausted
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit signal %s: %w", sig.JobKey, err)
	}
	return nil
}

// ExistsJobKey reports whether a signal with jobKey has been recorded.
func (s *SignalStore) ExistsJobKey(ctx context.Context, jobKey string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE job_key = $1)`, jobKey).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: signal job key %s: %w", jobKey, err)
	}
	return ok, nil
}

// Recent returns the signals for (agent, deployment, token) created at or
// after since, newest first, each with its latest execution record if any.
func (s *SignalStore) Recent(ctx context.Context, agentID, deploymentID, token string, since time.Time) ([]domain.RecentSignal, error) {
	const query = `
		SELECT s.id, s.created_at, p.status, p.entry_price, p.qty
		FROM signals s
		LEFT JOIN LATERAL (
			SELECT status, entry_price, qty FROM positions
			WHERE signal_id = s.id
			ORDER BY opened_at DESC
			LIMIT 1
		) p ON TRUE
		WHERE s.agent_id = $1 AND s.deployment_id = $2 AND s.token_symbol = $3
		  AND s.created_at >= $4
		ORDER BY s.created_at DESC`

	rows, err := s.pool.Query(ctx, query, agentID, deploymentID, domain.NormalizeToken(token), since)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent signals: %w", err)
	}
	defer rows.Close()

	var out []domain.RecentSignal
	for rows.Next() {
		var r domain.RecentSignal
		var status *string
		var entry, qty *float64
		if err := rows.Scan(&r.SignalID, &r.CreatedAt, &status, &entry, &qty); err != nil {
			return nil, fmt.Errorf("postgres: scan recent signal: %w", err)
		}
		if status != nil {
			exec := &domain.Execution{SignalID: r.SignalID, Status: domain.ExecutionStatus(*status)}
			if entry != nil {
				exec.EntryPrice = *entry
			}
			if qty != nil {
				exec.Quantity = *qty
			}
			r.Execution = exec
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recent signals rows: %w", err)
	}
	return out, nil
}

// ListByDeployment returns a deployment's signals with pagination and
// optional time filtering, newest first.
func (s *SignalStore) ListByDeployment(ctx context.Context, deploymentID string, opts domain.ListOpts) ([]domain.Signal, error) {
	query, args := pageQuery(`SELECT `+signalSelectCols+` FROM signals WHERE deployment_id = $1`,
		[]any{deploymentID}, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals for deployment %s: %w", deploymentID, err)
	}
	signals, err := collectSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

// ListCreatedBetween returns the signals created in [from, to), oldest first.
func (s *SignalStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals between %s and %s: %w",
			from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	signals, err := collectSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

var _ domain.SignalStore = (*SignalStore)(nil)
