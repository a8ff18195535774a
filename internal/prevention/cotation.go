package prevention

import "math"

// Cotation factor bounds. Frequency and gravity are ordinal 1..4; mastery is
// the mitigation-effectiveness multiplier (0.5 good control, 0.75 partial,
// 1 none).
const (
	FactorMin = 1
	FactorMax = 4
)

// MasteryLevels are the only admissible mastery multipliers.
var MasteryLevels = []float64{0.5, 0.75, 1}

// RawScore multiplies frequency by gravity. The boolean is false when either
// factor is unset: "not yet evaluated" is a distinct state, never score zero.
func RawScore(frequency, gravity *int) (float64, bool) {
	if frequency == nil || gravity == nil {
		return 0, false
	}
	return float64(*frequency * *gravity), true
}

// ResidualScore applies the mastery multiplier to the raw score, rounded to
// two decimals. Unset mastery means no mitigation credit (multiplier 1).
func ResidualScore(frequency, gravity *int, mastery *float64) (float64, bool) {
	raw, ok := RawScore(frequency, gravity)
	if !ok {
		return 0, false
	}
	m := 1.0
	if mastery != nil {
		m = *mastery
	}
	return math.Round(raw*m*100) / 100, true
}

// LevelFor maps a cotation score to its qualitative tier. Boundaries are
// inclusive on the lower tier: exactly 4 is low, 8 medium, 12 high.
func LevelFor(score float64) Level {
	switch {
	case score <= 4:
		return LevelLow
	case score <= 8:
		return LevelMedium
	case score <= 12:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// RawScore reports the risk's frequency×gravity product, false when the risk
// has not been evaluated yet.
func (r Risk) RawScore() (float64, bool) {
	return RawScore(r.Frequency, r.Gravity)
}

// ResidualScore reports the risk's mastery-weighted score, false when the
// risk has not been evaluated yet.
func (r Risk) ResidualScore() (float64, bool) {
	return ResidualScore(r.Frequency, r.Gravity, r.Mastery)
}

// Scored reports whether both cotation factors are set.
func (r Risk) Scored() bool {
	return r.Frequency != nil && r.Gravity != nil
}

// Level returns the tier of the residual score, false when unscored.
func (r Risk) Level() (Level, bool) {
	score, ok := r.ResidualScore()
	if !ok {
		return "", false
	}
	return LevelFor(score), true
}
