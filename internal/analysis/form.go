package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
)

// ViolationKind classifies a form violation.
type ViolationKind string

const (
	TooLow   ViolationKind = "too_low"
	TooHigh  ViolationKind = "too_high"
	Unstable ViolationKind = "unstable"
	Rule     ViolationKind = "rule"
)

// CodeExcessiveMovement is reported when the stabilization joint drifts.
const CodeExcessiveMovement = "excessive_movement"

// stabilizationTolerance is the drift from 180° allowed at zero stabilization.
const stabilizationTolerance = 30.0

// Violation is a structured form problem detected on one frame.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Joint    string        `json:"joint"`
	Observed float64       `json:"observed"`
	Bound    float64       `json:"bound"`
	Code     string        `json:"code,omitempty"`
}

func (v Violation) String() string {
	switch v.Kind {
	case TooLow:
		return fmt.Sprintf("%s too low: %.1f° < %.1f°", v.Joint, v.Observed, v.Bound)
	case TooHigh:
		return fmt.Sprintf("%s too high: %.1f° > %.1f°", v.Joint, v.Observed, v.Bound)
	case Unstable:
		return fmt.Sprintf("%s unstable: %.1f° off level, limit %.1f°", v.Joint, math.Abs(v.Observed-180), v.Bound)
	default:
		return fmt.Sprintf("%s: %s at %.1f° (bound %.1f°)", v.Code, v.Joint, v.Observed, v.Bound)
	}
}

// CheckForm evaluates angles against p. Range checks run first, then the
// stabilization check, then the profile's own rules. Joints missing from
// angles are skipped. A neutral profile never reports violations.
func CheckForm(p *profile.Profile, angles pose.AngleSet) []Violation {
	violations := []Violation{}
	if p.IsNeutral() {
		return violations
	}

	joints := make([]string, 0, len(p.TargetRanges))
	for joint := range p.TargetRanges {
		joints = append(joints, joint)
	}
	sort.Strings(joints)

	for _, joint := range joints {
		a, ok := angles[joint]
		if !ok {
			continue
		}
		r := p.TargetRanges[joint]
		switch {
		case a < r.Min:
			violations = append(violations, Violation{Kind: TooLow, Joint: joint, Observed: a, Bound: r.Min})
		case a > r.Max:
			violations = append(violations, Violation{Kind: TooHigh, Joint: joint, Observed: a, Bound: r.Max})
		}
	}

	if a, ok := angles[p.StabilizationJoint]; ok && p.StabilizationJoint != "" {
		limit := (1 - p.Stabilization) * stabilizationTolerance
		if math.Abs(a-180) > limit {
			violations = append(violations, Violation{
				Kind:     Unstable,
				Joint:    p.StabilizationJoint,
				Observed: a,
				Bound:    limit,
				Code:     CodeExcessiveMovement,
			})
		}
	}

	for _, c := range p.Checks {
		a, ok := angles[c.Joint]
		if !ok {
			continue
		}
		if bound, failed := evaluate(c, a); failed {
			violations = append(violations, Violation{
				Kind:     Rule,
				Joint:    c.Joint,
				Observed: a,
				Bound:    bound,
				Code:     c.Code,
			})
		}
	}

	return violations
}

// evaluate reports whether angle a fails check c and the bound it crossed.
func evaluate(c profile.Check, a float64) (float64, bool) {
	switch c.Kind {
	case profile.CheckMin:
		return c.Value, a < c.Value
	case profile.CheckMax:
		return c.Value, a > c.Value
	case profile.CheckMinAbs:
		return c.Value, math.Abs(a) < c.Value
	case profile.CheckMaxAbs:
		return c.Value, math.Abs(a) > c.Value
	case profile.CheckBand:
		if c.Band == nil {
			return 0, false
		}
		if a < c.Band.Min {
			return c.Band.Min, true
		}
		if a > c.Band.Max {
			return c.Band.Max, true
		}
	}
	return 0, false
}
