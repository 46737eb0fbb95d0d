package access

import (
	"context"
	"time"

	"github.com/dhawalhost/wardgate/internal/signals"
)

// GeoLocation is a coarse location resolved from a source address.
type GeoLocation struct {
	Country string
	City    string
	ISP     string
}

// GeoProvider resolves a source address to a coarse location.
type GeoProvider interface {
	Locate(ctx context.Context, ip string) (GeoLocation, error)
}

// ReputationProvider classifies a source address.
type ReputationProvider interface {
	Reputation(ctx context.Context, ip string) (ReputationTier, error)
}

// AnonymityProvider detects VPN and Tor usage for a source address.
type AnonymityProvider interface {
	Anonymity(ctx context.Context, ip string) (vpn bool, tor bool, err error)
}

// TravelChecker flags geographically implausible consecutive logins.
type TravelChecker interface {
	ImpossibleTravel(ctx context.Context, principalID string, current GeoLocation) (bool, error)
}

// BreachChecker reports whether the principal's credential is known
// compromised.
type BreachChecker interface {
	CredentialLeak(ctx context.Context, principalID string) (bool, error)
}

// Providers bundles the signal providers consumed by the extractor. Each
// seam is independently replaceable; a failing or absent provider degrades
// to its benign default.
type Providers struct {
	Geo        GeoProvider
	Reputation ReputationProvider
	Anonymity  AnonymityProvider
	Travel     TravelChecker
	Breach     BreachChecker
}

// StaticProviders returns benign defaults for every seam: Unknown location,
// clean reputation, no VPN/Tor, no impossible travel, no credential leak.
func StaticProviders() Providers {
	return Providers{
		Geo:        staticGeo{},
		Reputation: staticReputation{},
		Anonymity:  staticAnonymity{},
		Travel:     staticTravel{},
		Breach:     staticBreach{},
	}
}

type staticGeo struct{}

func (staticGeo) Locate(context.Context, string) (GeoLocation, error) {
	return GeoLocation{Country: "Unknown", City: "Unknown"}, nil
}

type staticReputation struct{}

func (staticReputation) Reputation(context.Context, string) (ReputationTier, error) {
	return ReputationClean, nil
}

type staticAnonymity struct{}

func (staticAnonymity) Anonymity(context.Context, string) (bool, bool, error) {
	return false, false, nil
}

type staticTravel struct{}

func (staticTravel) ImpossibleTravel(context.Context, string, GeoLocation) (bool, error) {
	return false, nil
}

type staticBreach struct{}

func (staticBreach) CredentialLeak(context.Context, string) (bool, error) {
	return false, nil
}

// EventBreachChecker reports a credential leak when an unexpired
// credential-leak security event has been ingested for the principal.
// With no events ingested it behaves like the benign default.
type EventBreachChecker struct {
	events signals.Store
	window time.Duration
}

// NewEventBreachChecker creates a breach checker backed by the security
// event feed. Events older than window are ignored.
func NewEventBreachChecker(events signals.Store, window time.Duration) *EventBreachChecker {
	return &EventBreachChecker{events: events, window: window}
}

func (c *EventBreachChecker) CredentialLeak(ctx context.Context, principalID string) (bool, error) {
	event, err := c.events.LatestByType(ctx, principalID, signals.EventCredentialLeak, time.Now().Add(-c.window))
	if err != nil {
		return false, err
	}
	return event != nil, nil
}

// HistoryTravelChecker compares the current resolution against the
// principal's most recent audited login location. Two different known
// countries within minInterval are treated as impossible travel. Unknown
// locations never trip the check, so with the static geo provider this
// checker always reports false.
type HistoryTravelChecker struct {
	history     HistoryStore
	minInterval time.Duration
}

// NewHistoryTravelChecker creates a travel checker backed by audit history.
func NewHistoryTravelChecker(history HistoryStore, minInterval time.Duration) *HistoryTravelChecker {
	return &HistoryTravelChecker{history: history, minInterval: minInterval}
}

func (c *HistoryTravelChecker) ImpossibleTravel(ctx context.Context, principalID string, current GeoLocation) (bool, error) {
	if current.Country == "" || current.Country == "Unknown" {
		return false, nil
	}
	country, _, at, err := c.history.LastLoginLocation(ctx, principalID)
	if err != nil {
		return false, err
	}
	if country == "" || country == "Unknown" {
		return false, nil
	}
	if country != current.Country && time.Since(at) < c.minInterval {
		return true, nil
	}
	return false, nil
}
