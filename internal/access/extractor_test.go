package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeHistory struct {
	fingerprints map[string]bool
	velocity     int
	lastCountry  string
	lastLoginAt  time.Time
	failLookups  bool
}

func (f *fakeHistory) HasFingerprint(_ context.Context, _, fingerprint string) (bool, error) {
	if f.failLookups {
		return false, errors.New("store down")
	}
	return f.fingerprints[fingerprint], nil
}

func (f *fakeHistory) CountRecentLogins(_ context.Context, _ string, _ time.Time) (int, error) {
	if f.failLookups {
		return 0, errors.New("store down")
	}
	return f.velocity, nil
}

func (f *fakeHistory) LastLoginLocation(_ context.Context, _ string) (string, string, time.Time, error) {
	if f.failLookups {
		return "", "", time.Time{}, errors.New("store down")
	}
	return f.lastCountry, "", f.lastLoginAt, nil
}

type fakeRoles struct {
	role string
	err  error
}

func (f *fakeRoles) GetRole(context.Context, string) (string, error) {
	return f.role, f.err
}

func newTestExtractor(history *fakeHistory, roles *fakeRoles) *Extractor {
	return NewExtractor(history, roles, StaticProviders(), zap.NewNop())
}

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, hour, 30, 0, 0, time.Local)
	}
}

func TestExtractSourceAddressPrecedence(t *testing.T) {
	e := newTestExtractor(&fakeHistory{}, &fakeRoles{role: "user"})

	tests := []struct {
		name string
		meta RequestMeta
		want string
	}{
		{"forwarded chain first entry", RequestMeta{ForwardedFor: "203.0.113.7, 10.0.0.1", RealIP: "198.51.100.1"}, "203.0.113.7"},
		{"real ip fallback", RequestMeta{RealIP: "198.51.100.1"}, "198.51.100.1"},
		{"sentinel when nothing present", RequestMeta{}, UnknownAddress},
		{"blank forwarded falls through", RequestMeta{ForwardedFor: " , ", RealIP: "198.51.100.1"}, "198.51.100.1"},
	}

	for _, tt := range tests {
		rc := e.Extract(context.Background(), "p1", "s1", tt.meta)
		if rc.IPAddress != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, rc.IPAddress)
		}
	}
}

func TestExtractEmptyFingerprintIsAlwaysNewDevice(t *testing.T) {
	history := &fakeHistory{fingerprints: map[string]bool{"": true}}
	e := newTestExtractor(history, &fakeRoles{role: "user"})

	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{})
	if !rc.NewDevice {
		t.Fatalf("empty fingerprint must be treated as a new device")
	}
}

func TestExtractKnownFingerprintIsNotNew(t *testing.T) {
	history := &fakeHistory{fingerprints: map[string]bool{"fp-1": true}}
	e := newTestExtractor(history, &fakeRoles{role: "user"})

	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-1"})
	if rc.NewDevice {
		t.Fatalf("recorded fingerprint should not be new")
	}
}

func TestExtractLookupFailuresDegradeToSafeDefaults(t *testing.T) {
	history := &fakeHistory{failLookups: true}
	e := newTestExtractor(history, &fakeRoles{err: errors.New("store down")})

	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{Fingerprint: "fp-1"})
	if !rc.NewDevice {
		t.Fatalf("fingerprint lookup failure must fail toward new device")
	}
	if rc.LoginVelocity != 0 {
		t.Fatalf("velocity lookup failure must default to 0, got %d", rc.LoginVelocity)
	}
	if rc.PrivilegeLevel != "user" {
		t.Fatalf("role lookup failure must default to user, got %q", rc.PrivilegeLevel)
	}
	if rc.IsVPN || rc.IsTor || rc.ImpossibleTravel || rc.CredentialLeak {
		t.Fatalf("provider-fed flags must default benign: %+v", rc)
	}
	if rc.IPReputation != ReputationClean {
		t.Fatalf("reputation must default clean, got %s", rc.IPReputation)
	}
}

func TestExtractRoleIsApplied(t *testing.T) {
	e := newTestExtractor(&fakeHistory{}, &fakeRoles{role: "admin"})
	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{})
	if rc.PrivilegeLevel != "admin" {
		t.Fatalf("expected admin, got %q", rc.PrivilegeLevel)
	}
}

func TestExtractUnusualTimeWindow(t *testing.T) {
	e := newTestExtractor(&fakeHistory{}, &fakeRoles{role: "user"})

	tests := []struct {
		hour int
		want bool
	}{
		{1, false},
		{2, true},
		{4, true},
		{5, true},
		{6, false},
		{14, false},
	}
	for _, tt := range tests {
		e.now = fixedClock(tt.hour)
		rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{})
		if rc.UnusualTime != tt.want {
			t.Errorf("hour %d: expected unusual=%v, got %v", tt.hour, tt.want, rc.UnusualTime)
		}
	}
}

func TestExtractSensitiveAction(t *testing.T) {
	e := newTestExtractor(&fakeHistory{}, &fakeRoles{role: "user"})

	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{ActionType: "delete_user"})
	if !rc.SensitiveAction {
		t.Fatalf("delete_user should be sensitive")
	}
	rc = e.Extract(context.Background(), "p1", "s1", RequestMeta{ActionType: "view_dashboard"})
	if rc.SensitiveAction {
		t.Fatalf("view_dashboard should not be sensitive")
	}
}

func TestExtractVelocityIsCopied(t *testing.T) {
	e := newTestExtractor(&fakeHistory{velocity: 7}, &fakeRoles{role: "user"})
	rc := e.Extract(context.Background(), "p1", "s1", RequestMeta{})
	if rc.LoginVelocity != 7 {
		t.Fatalf("expected velocity 7, got %d", rc.LoginVelocity)
	}
}

func TestHistoryTravelChecker(t *testing.T) {
	history := &fakeHistory{lastCountry: "DE", lastLoginAt: time.Now().Add(-10 * time.Minute)}
	checker := NewHistoryTravelChecker(history, time.Hour)

	travel, err := checker.ImpossibleTravel(context.Background(), "p1", GeoLocation{Country: "JP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !travel {
		t.Fatalf("country change within the interval should flag impossible travel")
	}

	// Unknown current location never trips the check.
	travel, err = checker.ImpossibleTravel(context.Background(), "p1", GeoLocation{Country: "Unknown"})
	if err != nil || travel {
		t.Fatalf("unknown location must not flag travel: %v %v", travel, err)
	}

	// Same country is fine.
	travel, _ = checker.ImpossibleTravel(context.Background(), "p1", GeoLocation{Country: "DE"})
	if travel {
		t.Fatalf("same country must not flag travel")
	}

	// Old prior login is fine.
	history.lastLoginAt = time.Now().Add(-24 * time.Hour)
	travel, _ = checker.ImpossibleTravel(context.Background(), "p1", GeoLocation{Country: "JP"})
	if travel {
		t.Fatalf("stale prior login must not flag travel")
	}
}
