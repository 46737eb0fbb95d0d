package access

import "fmt"

// PolicyRule is one entry in the ordered rule table. Rules fire
// first-match-wins; once a rule matches, later rules and the score fallback
// are not consulted.
type PolicyRule struct {
	Name    string
	Matches func(rc RiskContext, score int) bool
	Action  Action
	Reason  string
}

// PolicyConfig holds the inclusive lower score bounds for the fallback
// thresholds.
type PolicyConfig struct {
	TerminateAt int
	BlockAt     int
	ChallengeAt int
}

// DefaultPolicyConfig returns the production fallback thresholds.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		TerminateAt: 81,
		BlockAt:     61,
		ChallengeAt: 41,
	}
}

// DefaultRules returns the ordered production rule table. Explicit rules
// represent near-certain compromise signals and must dominate a merely
// moderate aggregate score; the fallback catches combinations the explicit
// rules don't name.
func DefaultRules() []PolicyRule {
	return []PolicyRule{
		{
			Name: "admin_new_device",
			Matches: func(rc RiskContext, _ int) bool {
				return rc.PrivilegeLevel == PrivilegeAdmin && rc.NewDevice
			},
			Action: ActionChallenge,
			Reason: "Admin access from unrecognized device requires MFA",
		},
		{
			Name: "impossible_travel",
			Matches: func(rc RiskContext, _ int) bool {
				return rc.ImpossibleTravel
			},
			Action: ActionTerminate,
			Reason: "User location changed impossibly fast (potential account takeover)",
		},
		{
			Name: "malicious_ip",
			Matches: func(rc RiskContext, _ int) bool {
				return rc.IPReputation == ReputationMalicious
			},
			Action: ActionBlock,
			Reason: "Access from known malicious IP address",
		},
		{
			Name: "credential_leak",
			Matches: func(rc RiskContext, _ int) bool {
				return rc.CredentialLeak
			},
			Action: ActionTerminate,
			Reason: "Password found in credential breach database",
		},
		{
			Name: "tor_sensitive_action",
			Matches: func(rc RiskContext, _ int) bool {
				return rc.IsTor && rc.SensitiveAction
			},
			Action: ActionBlock,
			Reason: "Sensitive operations blocked from Tor network",
		},
	}
}

// Evaluator selects exactly one action for a (context, score) pair. Pure and
// deterministic.
type Evaluator struct {
	rules []PolicyRule
	cfg   PolicyConfig
}

// NewEvaluator creates a policy evaluator over an ordered rule list.
func NewEvaluator(rules []PolicyRule, cfg PolicyConfig) *Evaluator {
	return &Evaluator{rules: rules, cfg: cfg}
}

// Evaluate walks the rule table in order, falling back to the score
// thresholds when no explicit rule matches.
func (e *Evaluator) Evaluate(rc RiskContext, score int) Decision {
	for _, rule := range e.rules {
		if rule.Matches(rc, score) {
			return Decision{Action: rule.Action, Reason: rule.Reason, Rule: rule.Name}
		}
	}

	switch {
	case score >= e.cfg.TerminateAt:
		return Decision{Action: ActionTerminate, Reason: "Critical risk level detected", Rule: "score_terminate"}
	case score >= e.cfg.BlockAt:
		return Decision{Action: ActionBlock, Reason: "Very high risk level detected", Rule: "score_block"}
	case score >= e.cfg.ChallengeAt:
		return Decision{Action: ActionChallenge, Reason: "High risk level, MFA required", Rule: "score_challenge"}
	default:
		return Decision{Action: ActionAllow, Rule: "score_allow"}
	}
}

// Validate sanity-checks the fallback thresholds at wiring time.
func (c PolicyConfig) Validate() error {
	if c.ChallengeAt >= c.BlockAt || c.BlockAt >= c.TerminateAt {
		return fmt.Errorf("policy thresholds must be strictly increasing: challenge=%d block=%d terminate=%d",
			c.ChallengeAt, c.BlockAt, c.TerminateAt)
	}
	return nil
}
