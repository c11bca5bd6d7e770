package zones

import (
	"strings"

	"github.com/rotisserie/eris"
)

// RiskLevel is the three-tier danger classification of a zone.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank orders levels so monotonicity can be asserted.
func (l RiskLevel) rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// ParseRiskLevel converts a case-insensitive level name.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if l.rank() == 0 {
		return "", eris.Errorf("zones: unknown risk level %q", s)
	}
	return l, nil
}

// ParseRiskLevels parses a list of level names, ignoring empty entries.
func ParseRiskLevels(names []string) ([]RiskLevel, error) {
	var out []RiskLevel
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		l, err := ParseRiskLevel(n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// RiskThresholds maps occurrence counts to risk levels.
// count <= LowMax is low, count <= MediumMax is medium, anything above is high.
type RiskThresholds struct {
	LowMax    int `yaml:"low_max" mapstructure:"low_max"`
	MediumMax int `yaml:"medium_max" mapstructure:"medium_max"`
}

// DefaultRiskThresholds are the 10/30 tiers.
var DefaultRiskThresholds = RiskThresholds{LowMax: 10, MediumMax: 30}

// Validate rejects thresholds that would make Classify non-monotonic.
func (t RiskThresholds) Validate() error {
	if t.LowMax < 0 || t.MediumMax <= t.LowMax {
		return eris.Errorf("zones: invalid risk thresholds low_max=%d medium_max=%d", t.LowMax, t.MediumMax)
	}
	return nil
}

// Classify returns the risk level for an occurrence count.
func (t RiskThresholds) Classify(count int) RiskLevel {
	switch {
	case count <= t.LowMax:
		return RiskLow
	case count <= t.MediumMax:
		return RiskMedium
	default:
		return RiskHigh
	}
}
