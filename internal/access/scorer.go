package access

// ScoreConfig holds the additive point values and level thresholds for the
// risk scorer. Injected so the rule table can be tuned and tested
// independently of extraction.
type ScoreConfig struct {
	TorPoints              int
	VPNPoints              int
	MaliciousIPPoints      int
	SuspiciousIPPoints     int
	ImpossibleTravelPoints int
	HighVelocityPoints     int
	UnusualTimePoints      int
	NewDevicePoints        int
	CredentialLeakPoints   int

	// VelocityThreshold is the login count above which velocity scores.
	VelocityThreshold int

	MaxScore int

	Levels LevelThresholds
}

// LevelThresholds are inclusive upper score bounds per level. Scores above
// VeryHigh are critical.
type LevelThresholds struct {
	Low      int
	Medium   int
	High     int
	VeryHigh int
}

// DefaultScoreConfig returns the production point table.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		TorPoints:              30,
		VPNPoints:              15,
		MaliciousIPPoints:      30,
		SuspiciousIPPoints:     20,
		ImpossibleTravelPoints: 40,
		HighVelocityPoints:     20,
		UnusualTimePoints:      10,
		NewDevicePoints:        15,
		CredentialLeakPoints:   30,
		VelocityThreshold:      5,
		MaxScore:               100,
		Levels: LevelThresholds{
			Low:      20,
			Medium:   40,
			High:     60,
			VeryHigh: 80,
		},
	}
}

// Scorer deterministically maps a RiskContext to a bounded score. Pure, no
// I/O.
type Scorer struct {
	cfg ScoreConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score sums the applicable points, clamps to [0, MaxScore] and returns the
// score, its level, and the names of the contributing factors.
func (s *Scorer) Score(rc RiskContext) (int, RiskLevel, []string) {
	score := 0
	factors := []string{}

	// Tor supersedes VPN; the two bonuses are never both applied.
	switch {
	case rc.IsTor:
		score += s.cfg.TorPoints
		factors = append(factors, "tor_exit_node")
	case rc.IsVPN:
		score += s.cfg.VPNPoints
		factors = append(factors, "vpn")
	}

	switch rc.IPReputation {
	case ReputationMalicious:
		score += s.cfg.MaliciousIPPoints
		factors = append(factors, "malicious_ip")
	case ReputationSuspicious:
		score += s.cfg.SuspiciousIPPoints
		factors = append(factors, "suspicious_ip")
	}

	if rc.ImpossibleTravel {
		score += s.cfg.ImpossibleTravelPoints
		factors = append(factors, "impossible_travel")
	}
	if rc.LoginVelocity > s.cfg.VelocityThreshold {
		score += s.cfg.HighVelocityPoints
		factors = append(factors, "high_login_velocity")
	}
	if rc.UnusualTime {
		score += s.cfg.UnusualTimePoints
		factors = append(factors, "unusual_time")
	}
	if rc.NewDevice {
		score += s.cfg.NewDevicePoints
		factors = append(factors, "new_device")
	}
	if rc.CredentialLeak {
		score += s.cfg.CredentialLeakPoints
		factors = append(factors, "credential_leak")
	}

	if score > s.cfg.MaxScore {
		score = s.cfg.MaxScore
	}

	return score, s.Level(score), factors
}

// Level maps a score to its named bucket.
func (s *Scorer) Level(score int) RiskLevel {
	switch {
	case score <= s.cfg.Levels.Low:
		return RiskLevelLow
	case score <= s.cfg.Levels.Medium:
		return RiskLevelMedium
	case score <= s.cfg.Levels.High:
		return RiskLevelHigh
	case score <= s.cfg.Levels.VeryHigh:
		return RiskLevelVeryHigh
	default:
		return RiskLevelCritical
	}
}
