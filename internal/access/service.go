package access

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dhawalhost/wardgate/internal/audit"
	"github.com/dhawalhost/wardgate/internal/session"
	"github.com/dhawalhost/wardgate/internal/signals"
	"github.com/dhawalhost/wardgate/pkg/observability"
)

// TerminationReason is stamped on sessions terminated by policy.
const TerminationReason = "terminated by conditional access policy"

// AuditAppender is the audit surface consumed by the decision path.
type AuditAppender interface {
	Append(ctx context.Context, r audit.Record) (string, error)
}

// SessionStore is the session surface consumed by the decision path.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Terminate(ctx context.Context, id, reason string) error
}

// EventSink receives security events raised on termination.
type EventSink interface {
	Ingest(ctx context.Context, event *signals.SecurityEvent) error
}

// Service runs the full evaluation pipeline: extract, score, evaluate,
// audit, execute.
type Service struct {
	extractor *Extractor
	scorer    *Scorer
	evaluator *Evaluator
	auditLog  AuditAppender
	sessions  SessionStore
	events    EventSink
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewService wires the evaluation pipeline.
func NewService(
	extractor *Extractor,
	scorer *Scorer,
	evaluator *Evaluator,
	auditLog AuditAppender,
	sessions SessionStore,
	events EventSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		extractor: extractor,
		scorer:    scorer,
		evaluator: evaluator,
		auditLog:  auditLog,
		sessions:  sessions,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

// Evaluate runs one access evaluation. The audit write and any session
// termination are independent best-effort side effects: a failure in either
// is logged and the decision is still returned, never a partial one.
func (s *Service) Evaluate(ctx context.Context, principalID, sessionID string, meta RequestMeta) Result {
	rc := s.extractor.Extract(ctx, principalID, sessionID, meta)

	if sess, err := s.sessions.Get(ctx, sessionID); err != nil {
		s.logger.Warn("session lookup failed", zap.Error(err), zap.String("session_id", sessionID))
	} else if sess != nil {
		rc.SessionAge = time.Since(sess.CreatedAt)
	}

	score, level, factors := s.scorer.Score(rc)
	decision := s.evaluator.Evaluate(rc, score)

	s.writeAudit(ctx, rc, score, level, factors, decision)

	if decision.Action == ActionTerminate {
		s.terminate(ctx, rc, decision)
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(string(decision.Action), string(level)).Inc()
	}

	s.logger.Info("access decision",
		zap.String("principal_id", principalID),
		zap.String("session_id", sessionID),
		zap.String("action", string(decision.Action)),
		zap.String("rule", decision.Rule),
		zap.Int("risk_score", score),
		zap.String("risk_level", string(level)),
	)

	return Result{
		Allowed:   decision.Action == ActionAllow,
		Action:    decision.Action,
		Reason:    decision.Reason,
		RiskScore: score,
		RiskLevel: level,
	}
}

// writeAudit appends exactly one record per evaluation, allow outcomes
// included. Audit completeness is a security requirement, not an
// optimization.
func (s *Service) writeAudit(ctx context.Context, rc RiskContext, score int, level RiskLevel, factors []string, decision Decision) {
	record := audit.Record{
		PrincipalID:       rc.PrincipalID,
		SessionID:         rc.SessionID,
		IPAddress:         rc.IPAddress,
		UserAgent:         rc.UserAgent,
		DeviceFingerprint: rc.DeviceFingerprint,
		Country:           rc.Country,
		City:              rc.City,
		ISP:               rc.ISP,
		IsVPN:             rc.IsVPN,
		IsTor:             rc.IsTor,
		IPReputation:      string(rc.IPReputation),
		ImpossibleTravel:  rc.ImpossibleTravel,
		NewDevice:         rc.NewDevice,
		UnusualTime:       rc.UnusualTime,
		CredentialLeak:    rc.CredentialLeak,
		LoginVelocity:     rc.LoginVelocity,
		RiskScore:         score,
		RiskLevel:         string(level),
		Action:            string(decision.Action),
		Reason:            decision.Reason,
		Factors:           pq.StringArray(factors),
	}
	if _, err := s.auditLog.Append(ctx, record); err != nil {
		s.logger.Error("audit write failed",
			zap.Error(err),
			zap.String("principal_id", rc.PrincipalID),
			zap.String("session_id", rc.SessionID),
		)
	}
}

func (s *Service) terminate(ctx context.Context, rc RiskContext, decision Decision) {
	if err := s.sessions.Terminate(ctx, rc.SessionID, TerminationReason); err != nil {
		s.logger.Error("session termination failed",
			zap.Error(err),
			zap.String("session_id", rc.SessionID),
		)
	}

	event := &signals.SecurityEvent{
		PrincipalID: rc.PrincipalID,
		SessionID:   rc.SessionID,
		EventType:   signals.EventSessionTerminated,
		Severity:    signals.SeverityHigh,
		Reason:      decision.Reason,
	}
	if err := s.events.Ingest(ctx, event); err != nil {
		s.logger.Error("security event write failed",
			zap.Error(err),
			zap.String("session_id", rc.SessionID),
		)
	}
}
