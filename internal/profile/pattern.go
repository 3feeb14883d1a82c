package profile

import "fmt"

// Pattern is the coarse biomechanical category that decides which phase and
// completion rules apply to an exercise.
type Pattern string

const (
	Press              Pattern = "press"
	Squat              Pattern = "squat"
	Hinge              Pattern = "hinge"
	Pull               Pattern = "pull"
	Curl               Pattern = "curl"
	Lunge              Pattern = "lunge"
	Plyometric         Pattern = "plyometric"
	Kickback           Pattern = "kickback"
	Rotation           Pattern = "rotation"
	StepUp             Pattern = "step_up"
	Fly                Pattern = "fly"
	Raise              Pattern = "raise"
	LegRaise           Pattern = "leg_raise"
	LateralLunge       Pattern = "lateral_lunge"
	IsometricHold      Pattern = "isometric_hold"
	EccentricOnly      Pattern = "eccentric_only"
	IsolationExtension Pattern = "isolation_extension"
	Isolation          Pattern = "isolation"
)

// PhaseFamily groups patterns by how velocity maps onto a movement phase.
type PhaseFamily int

const (
	// FamilyNone never leaves the None phase.
	FamilyNone PhaseFamily = iota
	// FamilySymmetric compares velocity against ±T.
	FamilySymmetric
	// FamilyScaled compares against T scaled separately per direction.
	FamilyScaled
	// FamilyMagnitude compares |velocity| against T and has no hold state.
	FamilyMagnitude
	// FamilyHold only distinguishes holding from not holding.
	FamilyHold
	// FamilyEccentricOnly only ever emits the eccentric phase.
	FamilyEccentricOnly
)

// Gate is the condition under which a repetition is registered.
type Gate int

const (
	GateNone Gate = iota
	// GateLockout counts when motion reverses after the lockout angle was reached.
	GateLockout
	// GateEdge counts on a concentric to eccentric transition.
	GateEdge
	// GateStretch counts when motion starts again from the stretch angle.
	GateStretch
	// GateHold counts once per hold episode.
	GateHold
	// GateEccentric counts once per eccentric episode.
	GateEccentric
)

func (g Gate) String() string {
	switch g {
	case GateLockout:
		return "lockout"
	case GateEdge:
		return "edge"
	case GateStretch:
		return "stretch"
	case GateHold:
		return "hold"
	case GateEccentric:
		return "eccentric"
	default:
		return "none"
	}
}

// Rule describes how a pattern detects phases and completes repetitions.
type Rule struct {
	Family PhaseFamily
	// ConcentricScale and EccentricScale multiply the velocity threshold.
	ConcentricScale float64
	EccentricScale  float64
	// Hold enables the StaticHold branch of the symmetric and scaled families.
	Hold bool
	Gate Gate
	// ROMGate is the fraction of a profile's MinROM the averaged ROM must reach.
	ROMGate float64
}

var rules = map[Pattern]Rule{
	Press:              {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Hold: true, Gate: GateLockout, ROMGate: 0.5},
	Squat:              {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Hold: true, Gate: GateLockout, ROMGate: 0.6},
	Hinge:              {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Hold: true, Gate: GateLockout, ROMGate: 0.6},
	Pull:               {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Hold: true, Gate: GateEdge, ROMGate: 0.8},
	Fly:                {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Gate: GateEdge, ROMGate: 0.8},
	Raise:              {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Gate: GateEdge, ROMGate: 0.7},
	LegRaise:           {Family: FamilySymmetric, ConcentricScale: 1, EccentricScale: 1, Gate: GateStretch, ROMGate: 0.5},
	Curl:               {Family: FamilyScaled, ConcentricScale: 1.2, EccentricScale: 0.8, Gate: GateEdge, ROMGate: 0.8},
	Lunge:              {Family: FamilyScaled, ConcentricScale: 1.2, EccentricScale: 0.8, Gate: GateLockout, ROMGate: 0.8},
	Plyometric:         {Family: FamilyScaled, ConcentricScale: 1.5, EccentricScale: 0.5, Gate: GateEdge, ROMGate: 0.8},
	LateralLunge:       {Family: FamilyScaled, ConcentricScale: 0.7, EccentricScale: 0.7, Gate: GateStretch, ROMGate: 0.5},
	IsolationExtension: {Family: FamilyScaled, ConcentricScale: 0.8, EccentricScale: 0.8, Gate: GateLockout, ROMGate: 0.9},
	Kickback:           {Family: FamilyMagnitude, ConcentricScale: 1, EccentricScale: 1, Gate: GateEdge, ROMGate: 0.8},
	Rotation:           {Family: FamilyMagnitude, ConcentricScale: 1, EccentricScale: 1, Gate: GateEdge, ROMGate: 1},
	StepUp:             {Family: FamilyMagnitude, ConcentricScale: 1, EccentricScale: 1, Gate: GateEdge, ROMGate: 0.75},
	IsometricHold:      {Family: FamilyHold, Gate: GateHold, ROMGate: 1},
	EccentricOnly:      {Family: FamilyEccentricOnly, EccentricScale: 0.5, Gate: GateEccentric, ROMGate: 0.7},
	Isolation:          {Family: FamilyNone, Gate: GateNone},
}

// Rule returns the rule for p. Unknown patterns get the isolation rule.
func (p Pattern) Rule() Rule {
	if r, ok := rules[p]; ok {
		return r
	}
	return rules[Isolation]
}

// Valid reports whether p is a member of the taxonomy.
func (p Pattern) Valid() bool {
	_, ok := rules[p]
	return ok
}

// ParsePattern converts a string to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown movement pattern %q", s)
	}
	return p, nil
}
