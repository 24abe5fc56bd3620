package risk

// Level discretizes a 0-100 risk score.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Thresholds are the score boundaries between risk levels. They are exposed as
// tunables rather than hidden literals; DefaultThresholds matches the product
// constants 30/60/80/90.
type Thresholds struct {
	Medium   int
	High     int
	Severe   int
	Critical int
}

// DefaultThresholds returns the standard 30/60/80/90 boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 30, High: 60, Severe: 80, Critical: 90}
}

// Level maps a score to its risk level. The chain is order-dependent: the
// Critical check runs before the Severe high band, so reversing the first two
// arms changes classification at the 90 boundary.
func (t Thresholds) Level(score int) Level {
	switch {
	case score >= t.Critical:
		return LevelCritical
	case score >= t.Severe:
		return LevelHigh
	case score >= t.High:
		return LevelHigh
	case score >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClampScore bounds a raw score to the valid [0,100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clampFactor(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
