package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/notify"
)

// Bus channel and stream signals are announced on.
const (
	SignalChannel = "ch:signal"
	SignalStream  = "stream:signals"
)

// SignalService persists decided signals and announces them.
type SignalService struct {
	signals      domain.SignalStore
	bus          domain.SignalBus
	audit        domain.AuditStore
	notifier     *notify.Notifier
	defaultQuota int
	logger       *slog.Logger
}

// NewSignalService creates a SignalService. notifier may be nil.
func NewSignalService(
	signals domain.SignalStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	defaultQuota int,
	logger *slog.Logger,
) *SignalService {
	return &SignalService{
		signals:      signals,
		bus:          bus,
		audit:        audit,
		notifier:     notifier,
		defaultQuota: defaultQuota,
		logger:       logger.With(slog.String("component", "signal_service")),
	}
}

// ExistsJobKey reports whether a signal was already recorded for jobKey.
func (s *SignalService) ExistsJobKey(ctx context.Context, jobKey string) (bool, error) {
	ok, err := s.signals.ExistsJobKey(ctx, jobKey)
	if err != nil {
		return false, fmt.Errorf("signal_service: exists %s: %w", jobKey, err)
	}
	return ok, nil
}

// Record persists sig and debits the wallet's quota atomically. It returns
// domain.ErrAlreadyExists when the job key was already recorded. Announcing
// the signal is best effort: bus, audit and notification failures are logged
// and never undo the write.
func (s *SignalService) Record(ctx context.Context, sig domain.Signal) error {
	if err := s.signals.Record(ctx, sig, s.defaultQuota); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("signal_service: record %s: %w", sig.JobKey, err)
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal signal failed",
			slog.String("signal_id", sig.ID),
			slog.String("error", err.Error()),
		)
	} else {
		if err := s.bus.Publish(ctx, SignalChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "publish signal failed",
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, SignalStream, payload); err != nil {
			s.logger.WarnContext(ctx, "append signal stream failed",
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	detail := map[string]any{
		"signal_id":     sig.ID,
		"job_key":       sig.JobKey,
		"deployment_id": sig.DeploymentID,
		"token":         sig.Token,
		"net_change":    string(sig.NetChange),
		"should_trade":  sig.ShouldTrade,
	}
	if sig.SkippedReason != nil {
		detail["skipped_reason"] = string(*sig.SkippedReason)
	}
	if sig.OracleFailure != domain.OracleOK {
		detail["oracle_failure"] = string(sig.OracleFailure)
	}
	if err := s.audit.Log(ctx, "signal_recorded", detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	if event, ok := notify.SignalEvent(sig); ok {
		title, msg := notify.FormatSignal(sig)
		if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
			s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "signal recorded",
		slog.String("signal_id", sig.ID),
		slog.String("job_key", sig.JobKey),
		slog.String("net_change", string(sig.NetChange)),
		slog.Bool("should_trade", sig.ShouldTrade),
	)
	return nil
}

// ListByDeployment returns a deployment's signals, newest first.
func (s *SignalService) ListByDeployment(ctx context.Context, deploymentID string, opts domain.ListOpts) ([]domain.Signal, error) {
	signals, err := s.signals.ListByDeployment(ctx, deploymentID, opts)
	if err != nil {
		return nil, fmt.Errorf("signal_service: list by deployment %q: %w", deploymentID, err)
	}
	return signals, nil
}

// Backlog returns up to count signals appended to the durable stream after
// lastID, for clients resuming a live feed.
func (s *SignalService) Backlog(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	msgs, err := s.bus.StreamRead(ctx, SignalStream, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("signal_service: read backlog: %w", err)
	}
	return msgs, nil
}
