package access

import (
	"strings"
	"time"
)

// Action is the outcome of a policy evaluation.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionChallenge Action = "challenge"
	ActionBlock     Action = "block"
	ActionTerminate Action = "terminate"
)

// RiskLevel is the named bucket derived from a risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelVeryHigh RiskLevel = "very_high"
	RiskLevelCritical RiskLevel = "critical"
)

// ReputationTier classifies a source address.
type ReputationTier string

const (
	ReputationClean      ReputationTier = "clean"
	ReputationSuspicious ReputationTier = "suspicious"
	ReputationMalicious  ReputationTier = "malicious"
)

// PrivilegeAdmin is the role string that triggers the admin device rule.
const PrivilegeAdmin = "admin"

// UnknownAddress is the sentinel used when no source address can be resolved.
const UnknownAddress = "unknown"

// sensitiveActions is the closed set of high-impact operations.
var sensitiveActions = map[string]struct{}{
	"delete_user":     {},
	"change_password": {},
	"update_billing":  {},
	"revoke_access":   {},
	"export_data":     {},
}

// IsSensitiveAction reports whether the action type belongs to the fixed
// sensitive set. An empty action is never sensitive.
func IsSensitiveAction(actionType string) bool {
	_, ok := sensitiveActions[strings.TrimSpace(actionType)]
	return ok
}

// RiskContext is the full signal bundle gathered for one evaluation. It is
// built, scored and discarded within a single call; only its audit
// projection persists.
type RiskContext struct {
	PrincipalID string
	SessionID   string
	ActionType  string

	// Network identity
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	ISP               string
	IsVPN             bool
	IsTor             bool
	IPReputation      ReputationTier

	// Geolocation
	Country string
	City    string

	// Behavioral signals
	LoginVelocity    int
	ImpossibleTravel bool
	UnusualTime      bool
	NewDevice        bool

	// Identity signals
	CredentialLeak  bool
	SessionAge      time.Duration
	PrivilegeLevel  string
	SensitiveAction bool
}

// Decision is the action selected by the policy evaluator.
type Decision struct {
	Action Action
	Reason string
	Rule   string
}

// Result is returned to the caller of an access evaluation.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	RiskScore int       `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
}
