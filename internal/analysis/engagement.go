package analysis

import (
	"math"

	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
)

// Engagement bounds.
const (
	MinEngagement     = 0.1
	MaxEngagement     = 1.0
	NeutralEngagement = 0.5
)

// alignmentTolerance is the lateral deviation at which an alignment bonus
// drops to zero.
const alignmentTolerance = 30.0

// Engagement scores how well the frame works the target muscle, within
// [MinEngagement, MaxEngagement]. A neutral profile always scores
// NeutralEngagement.
func Engagement(p *profile.Profile, angles pose.AngleSet, phase Phase) float64 {
	if p.IsNeutral() {
		return NeutralEngagement
	}

	w := p.Engagement
	score := 0.0

	if a, ok := angles[p.PrimaryJoint]; ok {
		score += w.Primary * p.Range.Fraction(a)
	}

	if a, ok := angles[p.StabilizationJoint]; ok && p.StabilizationJoint != "" {
		score += w.Stabilization * clamp(1-math.Abs(a-180)/stabilizationTolerance, 0, 1) * p.Stabilization
	}

	for _, b := range w.Bonuses {
		score += b.Weight * bonusTerm(b, angles, phase)
	}

	score *= p.Strictness
	if math.IsNaN(score) {
		return MinEngagement
	}
	return clamp(score, MinEngagement, MaxEngagement)
}

func bonusTerm(b profile.Bonus, angles pose.AngleSet, phase Phase) float64 {
	switch b.Kind {
	case profile.BonusConstant:
		return 1
	case profile.BonusEccentric:
		if phase == Eccentric {
			return 1
		}
	case profile.BonusRange:
		if a, ok := angles[b.Joint]; ok && b.Range != nil {
			return b.Range.Fraction(a)
		}
	case profile.BonusAlignment:
		if a, ok := angles[b.Joint]; ok {
			return clamp(1-math.Abs(a)/alignmentTolerance, 0, 1)
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
