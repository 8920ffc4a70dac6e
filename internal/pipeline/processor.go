package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/alphasignal/internal/dedup"
	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/oracle"
	"github.com/alanyoungcy/alphasignal/internal/scoring"
	"github.com/alanyoungcy/alphasignal/internal/venue"
)

// Base risk parameters before the user's risk tolerance is applied.
const (
	baseStopLoss   = 0.10
	baseTakeProfit = 0.20
	sizeModelType  = "balance-percentage"
)

// VenueResolver picks the venue a deployment trades token on.
type VenueResolver interface {
	Resolve(ctx context.Context, cfg domain.VenueConfig, token string) domain.Resolution
}

// AccountGateway returns a wallet's balance and positions on a venue.
type AccountGateway interface {
	Snapshot(ctx context.Context, v domain.Venue, wallet string) domain.AccountSnapshot
}

// MetricsSource returns market metrics for a token, unavailable on failure.
type MetricsSource interface {
	Metrics(ctx context.Context, token string) domain.MarketMetrics
}

// Decider consults the decision oracle.
type Decider interface {
	Decide(ctx context.Context, in oracle.Input) oracle.Outcome
}

// SignalRecorder persists a signal and debits quota atomically.
type SignalRecorder interface {
	Record(ctx context.Context, sig domain.Signal) error
	ExistsJobKey(ctx context.Context, jobKey string) (bool, error)
}

// ProcessorDeps are the collaborators of a Processor.
type ProcessorDeps struct {
	Events       domain.EventStore
	Agents       domain.AgentStore
	Deployments  domain.DeploymentStore
	Quotas       domain.QuotaStore
	Audit        domain.AuditStore
	Guard        *dedup.Guard
	Window       *dedup.Window
	Resolver     VenueResolver
	Accounts     AccountGateway
	Metrics      MetricsSource
	Scorer       *scoring.Engine
	Oracle       Decider
	Signals      SignalRecorder
	DefaultQuota int
}

// Processor runs the decision pipeline for one job:
// lock, load, dedup window, quota, venue, account, score, oracle, persist.
type Processor struct {
	ProcessorDeps
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewProcessor creates a Processor.
func NewProcessor(deps ProcessorDeps, logger *slog.Logger) *Processor {
	return &Processor{
		ProcessorDeps: deps,
		logger:        logger.With(slog.String("component", "processor")),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// jobContext is the data loaded for one job.
type jobContext struct {
	job        domain.Job
	token      string
	event      domain.Event
	agent      domain.Agent
	deployment domain.Deployment
}

// oracleEvent is the event as the oracle sees it, with the impact factor the
// job was enqueued with.
func (jc jobContext) oracleEvent() domain.Event {
	e := jc.event
	if jc.job.ImpactFactor != nil {
		e.ImpactFactor = *jc.job.ImpactFactor
	}
	return e
}

// agentClass is the confidence framing the job was enqueued with, or the
// agent's current class for payloads without one.
func (jc jobContext) agentClass() domain.AgentClass {
	if jc.job.LowConfidenceTolerant == nil {
		return jc.agent.Class
	}
	if *jc.job.LowConfidenceTolerant {
		return domain.AgentClassLowConfidenceTolerant
	}
	return domain.AgentClassConfidenceCritical
}

// Process handles job and returns its terminal outcome. Every recoverable
// condition resolves to an outcome; a non-nil error means the job crashed
// and should be retried.
func (p *Processor) Process(ctx context.Context, job domain.Job) (domain.JobOutcome, error) {
	token := domain.NormalizeToken(job.Token)
	log := p.logger.With(
		slog.String("job_id", job.ID),
		slog.String("deployment_id", job.DeploymentID),
		slog.String("token", token),
	)

	if venue.IsStablecoin(token) {
		log.InfoContext(ctx, "stablecoin target rejected")
		return domain.OutcomeRejected, nil
	}

	key := dedup.LockKey(job.EventID, job.DeploymentID, token)
	acq, err := p.Guard.TryAcquire(ctx, key)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	if acq.AlreadyHeld {
		log.DebugContext(ctx, "job held by another worker")
		return domain.OutcomeDuplicate, nil
	}
	defer p.Guard.Release(key)

	jc, outcome, err := p.load(ctx, job, token)
	if err != nil || outcome != "" {
		if outcome == domain.OutcomeRejected {
			log.WarnContext(ctx, "job rejected", slog.String("reason", err.Error()))
			return outcome, nil
		}
		return outcome, err
	}

	done, err := p.Signals.ExistsJobKey(ctx, domain.JobID(jc.event.ID, jc.deployment.ID, token))
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	if done {
		log.InfoContext(ctx, "signal already recorded for job key")
		return domain.OutcomeDuplicate, nil
	}

	exists, err := p.Window.Exists(ctx, jc.agent.ID, jc.deployment.ID, token)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	if exists {
		log.InfoContext(ctx, "recent signal exists", slog.Duration("window", p.Window.Span()))
		return domain.OutcomeDuplicate, nil
	}

	remaining, err := p.Quotas.Remaining(ctx, jc.deployment.UserWallet, p.DefaultQuota)
	if err != nil {
		return "", fmt.Errorf("pipeline: quota: %w", err)
	}
	if remaining <= 0 {
		return p.quotaExhausted(ctx, log, jc), nil
	}

	side := jc.event.Direction.Side()
	if side == "" && !jc.event.CloseIntent {
		log.InfoContext(ctx, "event has no direction")
		return domain.OutcomeRejected, nil
	}

	res := p.Resolver.Resolve(ctx, jc.deployment.Venue, token)
	if !res.Available {
		reason := domain.SkipUnsupportedToken
		sig := p.baseSignal(jc, side)
		sig.Rationale = res.Reason
		sig.SkippedReason = &reason
		return p.record(ctx, log, jc, sig, domain.OutcomeSkipped)
	}

	account := p.Accounts.Snapshot(ctx, res.Venue, jc.deployment.UserWallet)
	score := p.Scorer.Score(p.Metrics.Metrics(ctx, token), jc.event.Confidence)

	out := p.Oracle.Decide(ctx, oracle.Input{
		Event:       jc.oracleEvent(),
		Token:       token,
		Side:        side,
		AgentClass:  jc.agentClass(),
		Score:       score,
		Preferences: jc.deployment.Preferences,
		Account:     account,
		MaxLeverage: res.MaxLeverage,
	})

	sig := p.baseSignal(jc, side)
	sig.Venue = res.Venue
	sig.Score = score
	applyDecision(&sig, out, account.PositionsFor(token), jc.deployment.Preferences)
	return p.record(ctx, log, jc, sig, outcomeFor(sig.NetChange))
}

// load fetches the event, deployment and agent. Rows that are missing or no
// longer eligible reject the job with the reason as err.
func (p *Processor) load(ctx context.Context, job domain.Job, token string) (jobContext, domain.JobOutcome, error) {
	jc := jobContext{job: job, token: token}

	var err error
	if jc.event, err = p.Events.GetByID(ctx, job.EventID); err != nil {
		return rejectOr(jc, "event", job.EventID, err)
	}
	if jc.deployment, err = p.Deployments.GetByID(ctx, job.DeploymentID); err != nil {
		return rejectOr(jc, "deployment", job.DeploymentID, err)
	}
	if jc.deployment.Status != domain.DeploymentActive {
		return jc, domain.OutcomeRejected, fmt.Errorf("deployment %s is %s", jc.deployment.ID, jc.deployment.Status)
	}
	agentID := job.AgentID
	if agentID == "" {
		agentID = jc.deployment.AgentID
	}
	if jc.agent, err = p.Agents.GetByID(ctx, agentID); err != nil {
		return rejectOr(jc, "agent", agentID, err)
	}
	if !jc.agent.Active {
		return jc, domain.OutcomeRejected, fmt.Errorf("agent %s is inactive", jc.agent.ID)
	}
	return jc, "", nil
}

func rejectOr(jc jobContext, what, id string, err error) (jobContext, domain.JobOutcome, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return jc, domain.OutcomeRejected, fmt.Errorf("%s %s not found", what, id)
	}
	return jc, "", fmt.Errorf("pipeline: load %s %s: %w", what, id, err)
}

func (p *Processor) baseSignal(jc jobContext, side domain.Side) domain.Signal {
	return domain.Signal{
		ID:               p.newID(),
		JobKey:           domain.JobID(jc.event.ID, jc.deployment.ID, jc.token),
		AgentID:          jc.agent.ID,
		DeploymentID:     jc.deployment.ID,
		UserWallet:       jc.deployment.UserWallet,
		Token:            jc.token,
		Side:             side,
		SizeModel:        domain.SizeModel{Type: sizeModelType},
		RiskModel:        riskModel(jc.deployment.Preferences, 1),
		SourceEventIDs:   []string{jc.event.ID},
		Leverage:         1,
		ClosePositionIDs: []string{},
		NetChange:        domain.NetChangeNone,
		CreatedAt:        p.now(),
	}
}

// record persists sig. The quota pre-check can race with other jobs for the
// same wallet, so the store's debit has the final say.
func (p *Processor) record(ctx context.Context, log *slog.Logger, jc jobContext, sig domain.Signal, outcome domain.JobOutcome) (domain.JobOutcome, error) {
	if err := p.Signals.Record(ctx, sig); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			log.InfoContext(ctx, "signal already recorded for job key")
			return domain.OutcomeDuplicate, nil
		case errors.Is(err, domain.ErrQuotaExhausted):
			return p.quotaExhausted(ctx, log, jc), nil
		}
		return "", fmt.Errorf("pipeline: record signal: %w", err)
	}
	return outcome, nil
}

func (p *Processor) quotaExhausted(ctx context.Context, log *slog.Logger, jc jobContext) domain.JobOutcome {
	log.InfoContext(ctx, "trade quota exhausted")
	if err := p.Audit.Log(ctx, "quota_exhausted", map[string]any{
		"job_id":        jc.job.ID,
		"deployment_id": jc.deployment.ID,
		"user_wallet":   jc.deployment.UserWallet,
		"token":         jc.token,
	}); err != nil {
		log.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
	return domain.OutcomeQuotaExhausted
}

// applyDecision copies the oracle outcome onto sig and sets the skip reason.
// held are the positions in the signal's token.
func applyDecision(sig *domain.Signal, out oracle.Outcome, held []domain.OpenPosition, prefs domain.Preferences) {
	d := out.Decision
	sig.ShouldTrade = d.ShouldOpenNewPosition
	sig.AllocationPct = d.FundAllocationPct
	sig.Leverage = d.Leverage
	sig.ClosePositionIDs = append([]string{}, d.ClosePositionIDs...)
	sig.NetChange = d.NetChange
	sig.Rationale = d.Rationale
	sig.OracleFailure = out.Failure
	sig.SizeModel.ValuePct = d.FundAllocationPct
	sig.RiskModel = riskModel(prefs, d.Leverage)

	if sig.Side == "" && len(sig.ClosePositionIDs) > 0 {
		for _, pos := range held {
			if pos.ID == sig.ClosePositionIDs[0] {
				sig.Side = pos.Side
				break
			}
		}
	}

	if sig.ShouldTrade {
		sig.SkippedReason = nil
		return
	}
	var reason domain.SkipReason
	switch {
	case out.Fallback():
		reason = domain.SkipOracleFallback
	case d.NetChange == domain.NetChangeClose:
		reason = domain.SkipCloseOnly
	case holdsSide(held, sig.Side):
		reason = domain.SkipNoChange
	default:
		reason = domain.SkipOracleDeclined
	}
	sig.SkippedReason = &reason
}

func holdsSide(held []domain.OpenPosition, side domain.Side) bool {
	if side == "" {
		return false
	}
	for _, p := range held {
		if p.Side == side {
			return true
		}
	}
	return false
}

// riskModel scales the base stop-loss and take-profit by the user's risk
// tolerance: 0 gives 0.75x, 50 gives 1x, 100 gives 1.25x.
func riskModel(prefs domain.Preferences, leverage float64) domain.RiskModel {
	rt := prefs.RiskTolerance
	if rt < 0 {
		rt = 0
	}
	if rt > 100 {
		rt = 100
	}
	factor := 0.75 + 0.5*float64(rt)/100
	return domain.RiskModel{
		StopLoss:   baseStopLoss * factor,
		TakeProfit: baseTakeProfit * factor,
		Leverage:   leverage,
	}
}

func outcomeFor(nc domain.NetChange) domain.JobOutcome {
	switch nc {
	case domain.NetChangeOpen:
		return domain.OutcomeOpened
	case domain.NetChangeFlip:
		return domain.OutcomeFlipped
	case domain.NetChangeClose:
		return domain.OutcomeClosed
	}
	return domain.OutcomeSkipped
}
