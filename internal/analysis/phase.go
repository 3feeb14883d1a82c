// Package analysis turns per-frame joint angles into repetition counts, movement
// phases, form violations and engagement scores.
package analysis

import (
	"fmt"

	"github.com/ayusman/repcoach/internal/profile"
)

// Phase is the instantaneous classification of primary-joint motion.
type Phase int

const (
	None Phase = iota
	Concentric
	Eccentric
	StaticHold
)

var phaseNames = [...]string{"none", "concentric", "eccentric", "static_hold"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// staticHoldROM is the averaged ROM above which a still joint is considered
// held at the end of its range.
const staticHoldROM = 0.9

// DetectPhase classifies averaged velocity and ROM under rule. threshold is the
// profile's velocity threshold and holdOccupancy its isometric ROM threshold.
func DetectPhase(rule profile.Rule, threshold, holdOccupancy, avgVelocity, avgROM float64) Phase {
	switch rule.Family {
	case profile.FamilySymmetric, profile.FamilyScaled:
		switch {
		case avgVelocity > threshold*rule.ConcentricScale:
			return Concentric
		case avgVelocity < -threshold*rule.EccentricScale:
			return Eccentric
		case rule.Hold && avgROM > staticHoldROM:
			return StaticHold
		}
		return None

	case profile.FamilyMagnitude:
		if avgVelocity > threshold || avgVelocity < -threshold {
			if avgVelocity > 0 {
				return Concentric
			}
			return Eccentric
		}
		return None

	case profile.FamilyHold:
		if avgROM > holdOccupancy {
			return StaticHold
		}
		return None

	case profile.FamilyEccentricOnly:
		if avgVelocity < -threshold*rule.EccentricScale {
			return Eccentric
		}
		return None
	}
	return None
}
