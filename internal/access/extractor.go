package access

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HistoryStore is the audit-history surface consumed during extraction.
// Satisfied by the audit store.
type HistoryStore interface {
	HasFingerprint(ctx context.Context, principalID, fingerprint string) (bool, error)
	CountRecentLogins(ctx context.Context, principalID string, since time.Time) (int, error)
	LastLoginLocation(ctx context.Context, principalID string) (country, city string, at time.Time, err error)
}

// RoleStore resolves a principal's privilege level.
type RoleStore interface {
	GetRole(ctx context.Context, principalID string) (string, error)
}

// RequestMeta is the raw request metadata handed to the extractor.
type RequestMeta struct {
	ForwardedFor string // X-Forwarded-For header, comma-separated chain
	RealIP       string // X-Real-IP header
	UserAgent    string
	Fingerprint  string // client-supplied device fingerprint, may be empty
	ActionType   string
}

// Unusual-time window: local hour in [02:00, 06:00).
const (
	unusualHourStart = 2
	unusualHourEnd   = 6
)

// Window for the login-velocity count.
const velocityWindow = time.Hour

// Extractor builds a fully populated RiskContext for one
// (principal, session, request) triple. Every signal lookup that fails
// degrades to its documented safe default; extraction itself never fails.
type Extractor struct {
	history   HistoryStore
	roles     RoleStore
	providers Providers
	logger    *zap.Logger
	now       func() time.Time
}

// NewExtractor creates a context extractor.
func NewExtractor(history HistoryStore, roles RoleStore, providers Providers, logger *zap.Logger) *Extractor {
	return &Extractor{
		history:   history,
		roles:     roles,
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// Extract gathers all risk signals for the request.
func (e *Extractor) Extract(ctx context.Context, principalID, sessionID string, meta RequestMeta) RiskContext {
	rc := RiskContext{
		PrincipalID:       principalID,
		SessionID:         sessionID,
		ActionType:        meta.ActionType,
		IPAddress:         sourceAddress(meta),
		UserAgent:         meta.UserAgent,
		DeviceFingerprint: meta.Fingerprint,
		IPReputation:      ReputationClean,
		PrivilegeLevel:    "user",
		SensitiveAction:   IsSensitiveAction(meta.ActionType),
	}

	rc.UnusualTime = isUnusualTime(e.now())
	rc.NewDevice = e.deviceIsNew(ctx, principalID, meta.Fingerprint)
	rc.LoginVelocity = e.loginVelocity(ctx, principalID)

	if role, err := e.roles.GetRole(ctx, principalID); err != nil {
		e.logger.Warn("role lookup failed, defaulting to user", zap.Error(err))
	} else if role != "" {
		rc.PrivilegeLevel = role
	}

	geo := GeoLocation{Country: "Unknown", City: "Unknown"}
	if loc, err := e.providers.Geo.Locate(ctx, rc.IPAddress); err != nil {
		e.logger.Warn("geo lookup failed", zap.Error(err))
	} else {
		geo = loc
	}
	rc.Country = geo.Country
	rc.City = geo.City
	rc.ISP = geo.ISP

	if tier, err := e.providers.Reputation.Reputation(ctx, rc.IPAddress); err != nil {
		e.logger.Warn("reputation lookup failed", zap.Error(err))
	} else if tier != "" {
		rc.IPReputation = tier
	}

	if vpn, tor, err := e.providers.Anonymity.Anonymity(ctx, rc.IPAddress); err != nil {
		e.logger.Warn("anonymity lookup failed", zap.Error(err))
	} else {
		rc.IsVPN = vpn
		rc.IsTor = tor
	}

	if travel, err := e.providers.Travel.ImpossibleTravel(ctx, principalID, geo); err != nil {
		e.logger.Warn("travel check failed", zap.Error(err))
	} else {
		rc.ImpossibleTravel = travel
	}

	if leak, err := e.providers.Breach.CredentialLeak(ctx, principalID); err != nil {
		e.logger.Warn("breach check failed", zap.Error(err))
	} else {
		rc.CredentialLeak = leak
	}

	return rc
}

// sourceAddress prefers the first forwarded entry, then the real-address
// header, then the sentinel. Missing address data never fails the request.
func sourceAddress(meta RequestMeta) string {
	if meta.ForwardedFor != "" {
		first := strings.Split(meta.ForwardedFor, ",")[0]
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if meta.RealIP != "" {
		return meta.RealIP
	}
	return UnknownAddress
}

// deviceIsNew fails toward higher suspicion: an empty fingerprint or a
// failed lookup both count as new.
func (e *Extractor) deviceIsNew(ctx context.Context, principalID, fingerprint string) bool {
	if fingerprint == "" {
		return true
	}
	seen, err := e.history.HasFingerprint(ctx, principalID, fingerprint)
	if err != nil {
		e.logger.Warn("fingerprint lookup failed, treating device as new", zap.Error(err))
		return true
	}
	return !seen
}

// loginVelocity fails open to 0: the signal contributes to, but never
// gates, the decision.
func (e *Extractor) loginVelocity(ctx context.Context, principalID string) int {
	count, err := e.history.CountRecentLogins(ctx, principalID, e.now().Add(-velocityWindow))
	if err != nil {
		e.logger.Warn("login velocity lookup failed, defaulting to 0", zap.Error(err))
		return 0
	}
	return count
}

func isUnusualTime(t time.Time) bool {
	hour := t.Hour()
	return hour >= unusualHourStart && hour < unusualHourEnd
}
