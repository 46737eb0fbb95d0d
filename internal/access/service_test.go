package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dhawalhost/wardgate/internal/audit"
	"github.com/dhawalhost/wardgate/internal/session"
	"github.com/dhawalhost/wardgate/internal/signals"
)

type fakeAudit struct {
	records []audit.Record
	fail    bool
}

func (f *fakeAudit) Append(_ context.Context, r audit.Record) (string, error) {
	if f.fail {
		return "", errors.New("audit store down")
	}
	f.records = append(f.records, r)
	return "audit-1", nil
}

type fakeSessions struct {
	sessions   map[string]*session.Session
	terminated map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions:   map[string]*session.Session{},
		terminated: map[string]string{},
	}
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeSessions) Terminate(_ context.Context, id, reason string) error {
	// Idempotent like the SQL store: a second terminate is a no-op.
	if _, done := f.terminated[id]; done {
		return nil
	}
	f.terminated[id] = reason
	if s, ok := f.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

type fakeEvents struct {
	events []*signals.SecurityEvent
}

func (f *fakeEvents) Ingest(_ context.Context, e *signals.SecurityEvent) error {
	f.events = append(f.events, e)
	return nil
}

type serviceEnv struct {
	svc      *Service
	history  *fakeHistory
	roles    *fakeRoles
	auditLog *fakeAudit
	sessions *fakeSessions
	events   *fakeEvents
	prov     *Providers
}

func newTestService(t *testing.T) *serviceEnv {
	t.Helper()
	env := &serviceEnv{
		history:  &fakeHistory{fingerprints: map[string]bool{"fp-known": true}},
		roles:    &fakeRoles{role: "user"},
		auditLog: &fakeAudit{},
		sessions: newFakeSessions(),
		events:   &fakeEvents{},
	}
	providers := StaticProviders()
	env.prov = &providers

	extractor := NewExtractor(env.history, env.roles, providers, zap.NewNop())
	extractor.now = fixedClock(14) // outside the unusual-time window

	env.svc = NewService(
		extractor,
		NewScorer(DefaultScoreConfig()),
		NewEvaluator(DefaultRules(), DefaultPolicyConfig()),
		env.auditLog,
		env.sessions,
		env.events,
		nil,
		zap.NewNop(),
	)
	return env
}

// rebuildExtractor replaces the service extractor after provider changes.
func (e *serviceEnv) rebuildExtractor() {
	extractor := NewExtractor(e.history, e.roles, *e.prov, zap.NewNop())
	extractor.now = fixedClock(14)
	e.svc.extractor = extractor
}

func TestEvaluateCleanLoginAllows(t *testing.T) {
	env := newTestService(t)
	env.history.velocity = 1

	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if !result.Allowed || result.Action != ActionAllow {
		t.Fatalf("expected allow, got %+v", result)
	}
	if result.RiskScore != 0 || result.RiskLevel != RiskLevelLow {
		t.Fatalf("expected score 0 level low, got %d %s", result.RiskScore, result.RiskLevel)
	}
	if result.Reason != "" {
		t.Fatalf("allow must not carry a reason, got %q", result.Reason)
	}
}

func TestEvaluateAlwaysWritesOneAuditRecord(t *testing.T) {
	env := newTestService(t)

	env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if len(env.auditLog.records) != 1 {
		t.Fatalf("allow outcome must still write exactly one audit record, got %d", len(env.auditLog.records))
	}

	r := env.auditLog.records[0]
	if r.PrincipalID != "p1" || r.SessionID != "s1" {
		t.Fatalf("audit record keyed wrong: %+v", r)
	}
	if r.Action != string(ActionAllow) {
		t.Fatalf("expected allow action in audit, got %s", r.Action)
	}
}

func TestEvaluateAdminNewDeviceChallenges(t *testing.T) {
	env := newTestService(t)
	env.roles.role = PrivilegeAdmin

	result := env.svc.Evaluate(context.Background(), "admin-1", "s1", RequestMeta{Fingerprint: "fp-never-seen"})
	if result.Action != ActionChallenge {
		t.Fatalf("expected challenge, got %s", result.Action)
	}
	if result.Allowed {
		t.Fatalf("challenge must not report allowed")
	}
	if len(env.sessions.terminated) != 0 {
		t.Fatalf("challenge must not touch session state")
	}
}

func TestEvaluateImpossibleTravelTerminatesSession(t *testing.T) {
	env := newTestService(t)
	env.prov.Travel = travelAlways{}
	env.rebuildExtractor()
	env.sessions.sessions["s1"] = &session.Session{ID: "s1", PrincipalID: "p1", IsActive: true, CreatedAt: time.Now()}

	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if result.Action != ActionTerminate {
		t.Fatalf("expected terminate, got %s", result.Action)
	}
	if env.sessions.sessions["s1"].IsActive {
		t.Fatalf("session must be inactive after terminate")
	}
	if env.sessions.terminated["s1"] != TerminationReason {
		t.Fatalf("expected fixed termination reason, got %q", env.sessions.terminated["s1"])
	}
	if len(env.events.events) != 1 {
		t.Fatalf("expected one security event, got %d", len(env.events.events))
	}
	event := env.events.events[0]
	if event.EventType != signals.EventSessionTerminated || event.Severity != signals.SeverityHigh {
		t.Fatalf("expected high-severity termination event, got %+v", event)
	}
	if len(env.auditLog.records) != 1 {
		t.Fatalf("terminate outcome must still write one audit record")
	}
}

func TestEvaluateTerminateTwiceIsIdempotent(t *testing.T) {
	env := newTestService(t)
	env.prov.Travel = travelAlways{}
	env.rebuildExtractor()
	env.sessions.sessions["s1"] = &session.Session{ID: "s1", IsActive: true, CreatedAt: time.Now()}

	first := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	second := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if first.Action != ActionTerminate || second.Action != ActionTerminate {
		t.Fatalf("both evaluations should terminate: %s, %s", first.Action, second.Action)
	}
	if env.sessions.sessions["s1"].IsActive {
		t.Fatalf("session must remain terminated")
	}
	if len(env.auditLog.records) != 2 {
		t.Fatalf("each evaluation writes its own audit record, got %d", len(env.auditLog.records))
	}
}

func TestEvaluateTorSensitiveActionBlocks(t *testing.T) {
	env := newTestService(t)
	env.prov.Anonymity = anonymityTor{}
	env.rebuildExtractor()

	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{
		Fingerprint: "fp-known",
		ActionType:  "delete_user",
	})
	if result.Action != ActionBlock {
		t.Fatalf("expected block, got %s", result.Action)
	}
	if result.Reason != "Sensitive operations blocked from Tor network" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
	if len(env.sessions.terminated) != 0 {
		t.Fatalf("block must not mutate session state")
	}
}

func TestEvaluateAuditFailureStillReturnsDecision(t *testing.T) {
	env := newTestService(t)
	env.auditLog.fail = true

	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if result.Action != ActionAllow {
		t.Fatalf("audit failure must not change the decision, got %s", result.Action)
	}
}

func TestEvaluatePopulatesSessionAge(t *testing.T) {
	env := newTestService(t)
	env.sessions.sessions["s1"] = &session.Session{
		ID:        "s1",
		IsActive:  true,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}

	// Session age is informational; it must not change a clean decision.
	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if result.Action != ActionAllow {
		t.Fatalf("expected allow, got %s", result.Action)
	}
}

type travelAlways struct{}

func (travelAlways) ImpossibleTravel(context.Context, string, GeoLocation) (bool, error) {
	return true, nil
}

type anonymityTor struct{}

func (anonymityTor) Anonymity(context.Context, string) (bool, bool, error) {
	return false, true, nil
}

type fakeEventStore struct {
	event *signals.SecurityEvent
}

func (f *fakeEventStore) Ingest(context.Context, *signals.SecurityEvent) error { return nil }

func (f *fakeEventStore) LatestByType(_ context.Context, _, eventType string, _ time.Time) (*signals.SecurityEvent, error) {
	if f.event != nil && f.event.EventType == eventType {
		return f.event, nil
	}
	return nil, nil
}

func TestEventBreachCheckerFlipsCredentialLeakRule(t *testing.T) {
	env := newTestService(t)
	env.prov.Breach = NewEventBreachChecker(&fakeEventStore{
		event: &signals.SecurityEvent{EventType: signals.EventCredentialLeak},
	}, 30*24*time.Hour)
	env.rebuildExtractor()

	result := env.svc.Evaluate(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-known"})
	if result.Action != ActionTerminate {
		t.Fatalf("ingested credential-leak event must terminate, got %s", result.Action)
	}
	if result.Reason != "Password found in credential breach database" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEventBreachCheckerDefaultsBenign(t *testing.T) {
	checker := NewEventBreachChecker(&fakeEventStore{}, time.Hour)
	leak, err := checker.CredentialLeak(context.Background(), "p1")
	if err != nil || leak {
		t.Fatalf("no events must mean no leak: %v %v", leak, err)
	}
}
