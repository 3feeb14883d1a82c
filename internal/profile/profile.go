// Package profile defines exercise profiles and the registry that serves them.
package profile

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/repcoach/internal/pose"
)

// Defaults applied to profiles that leave the field unset.
const (
	DefaultHoldOccupancy = 0.9
	DefaultStrictness    = 1.0
)

// ErrInvalidProfile wraps every profile validation failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Range is an inclusive angle interval in degrees.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// UnmarshalYAML accepts either [min, max] or {min: .., max: ..}.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: range needs exactly two values, got %d", node.Line, len(pair))
		}
		r.Min, r.Max = pair[0], pair[1]
		return nil
	}

	type plain Range
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Range(p)
	return nil
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Fraction normalizes v into [0, 1] against the range.
func (r Range) Fraction(v float64) float64 {
	span := r.Span()
	if span <= 0 {
		return 0
	}
	return clamp01((v - r.Min) / span)
}

// BonusKind selects how an engagement bonus term is computed.
type BonusKind string

const (
	// BonusConstant contributes its weight unconditionally.
	BonusConstant BonusKind = "constant"
	// BonusRange contributes weight × joint position within its range.
	BonusRange BonusKind = "range"
	// BonusAlignment contributes weight × (1 - |angle|/30).
	BonusAlignment BonusKind = "alignment"
	// BonusEccentric contributes its weight while the movement is eccentric.
	BonusEccentric BonusKind = "eccentric"
)

// Bonus is an optional engagement term on top of the primary and
// stabilization sub-scores.
type Bonus struct {
	Kind   BonusKind `json:"kind" yaml:"kind"`
	Joint  string    `json:"joint,omitempty" yaml:"joint,omitempty"`
	Weight float64   `json:"weight" yaml:"weight"`
	Range  *Range    `json:"range,omitempty" yaml:"range,omitempty"`
}

// Engagement holds the engagement scoring weights.
type Engagement struct {
	Primary       float64 `json:"primary" yaml:"primary"`
	Stabilization float64 `json:"stabilization" yaml:"stabilization"`
	Bonuses       []Bonus `json:"bonuses,omitempty" yaml:"bonuses,omitempty"`
}

// TotalWeight returns the sum of all weights.
func (e Engagement) TotalWeight() float64 {
	weights := []float64{e.Primary, e.Stabilization}
	for _, b := range e.Bonuses {
		weights = append(weights, b.Weight)
	}
	return floats.Sum(weights)
}

// CheckKind selects the comparison an override check performs.
type CheckKind string

const (
	CheckMin    CheckKind = "min"
	CheckMax    CheckKind = "max"
	CheckMinAbs CheckKind = "min_abs"
	CheckMaxAbs CheckKind = "max_abs"
	CheckBand   CheckKind = "band"
)

// Check is an exercise-specific form rule layered over the target ranges.
type Check struct {
	Code  string    `json:"code" yaml:"code"`
	Joint string    `json:"joint" yaml:"joint"`
	Kind  CheckKind `json:"kind" yaml:"kind"`
	// Value is the bound for min, max, min_abs and max_abs.
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
	// Band is the accepted interval for band checks.
	Band *Range `json:"band,omitempty" yaml:"band,omitempty"`
}

// Profile is the canonical, read-only description of one exercise.
type Profile struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	MuscleGroup string      `json:"muscle_group" yaml:"muscle_group"`
	Region      pose.Region `json:"region" yaml:"region"`
	Pattern     Pattern     `json:"pattern" yaml:"pattern"`

	PrimaryJoint      string   `json:"primary_joint" yaml:"primary_joint"`
	Range             Range    `json:"range" yaml:"range"`
	VelocityThreshold float64  `json:"velocity_threshold" yaml:"velocity_threshold"`
	MinROM            float64  `json:"min_rom" yaml:"min_rom"`
	LockoutAngle      *float64 `json:"lockout_angle,omitempty" yaml:"lockout_angle,omitempty"`
	StretchAngle      *float64 `json:"stretch_angle,omitempty" yaml:"stretch_angle,omitempty"`
	ROMGate           *float64 `json:"rom_gate,omitempty" yaml:"rom_gate,omitempty"`
	HoldOccupancy     float64  `json:"hold_occupancy,omitempty" yaml:"hold_occupancy,omitempty"`

	TargetRanges       map[string]Range `json:"target_ranges,omitempty" yaml:"target_ranges,omitempty"`
	StabilizationJoint string           `json:"stabilization_joint,omitempty" yaml:"stabilization_joint,omitempty"`
	Stabilization      float64          `json:"stabilization" yaml:"stabilization"`
	Strictness         float64          `json:"strictness,omitempty" yaml:"strictness,omitempty"`

	Engagement Engagement `json:"engagement" yaml:"engagement"`
	Checks     []Check    `json:"checks,omitempty" yaml:"checks,omitempty"`

	neutral bool
}

// Neutral returns the no-op profile used for unrecognized exercise IDs. It
// never counts repetitions, never reports violations and scores 0.5.
func Neutral(id string) *Profile {
	return &Profile{
		ID:      id,
		Name:    id,
		Region:  pose.FullBody,
		Pattern: Isolation,
		neutral: true,
	}
}

// IsNeutral reports whether p stands in for an unrecognized exercise.
func (p *Profile) IsNeutral() bool {
	return p == nil || p.neutral
}

// Rule returns the completion rule for the profile, honoring a ROM gate override.
func (p *Profile) Rule() Rule {
	r := p.Pattern.Rule()
	if p.ROMGate != nil {
		r.ROMGate = *p.ROMGate
	}
	return r
}

// ROMThreshold is the averaged ROM fraction a repetition must reach.
func (p *Profile) ROMThreshold() float64 {
	return p.MinROM * p.Rule().ROMGate
}

// applyDefaults fills optional fields with their defaults.
func (p *Profile) applyDefaults() {
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Pattern == "" {
		p.Pattern = Isolation
	}
	if p.HoldOccupancy == 0 {
		p.HoldOccupancy = DefaultHoldOccupancy
	}
	if p.Strictness == 0 {
		p.Strictness = DefaultStrictness
	}
}

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	if err := p.validate(); err != nil {
		id := p.ID
		if id == "" {
			id = "<unnamed>"
		}
		return fmt.Errorf("%w %s: %v", ErrInvalidProfile, id, err)
	}
	return nil
}

func (p *Profile) validate() error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if _, err := pose.ParseRegion(string(p.Region)); err != nil {
		return err
	}
	if !p.Pattern.Valid() {
		return fmt.Errorf("unknown movement pattern %q", p.Pattern)
	}
	if p.PrimaryJoint == "" {
		return errors.New("primary_joint is required")
	}
	if p.Range.Span() <= 0 {
		return fmt.Errorf("range [%g, %g] must have min < max", p.Range.Min, p.Range.Max)
	}
	if p.VelocityThreshold < 0 {
		return errors.New("velocity_threshold must not be negative")
	}
	if p.MinROM < 0 || p.MinROM > 1 {
		return fmt.Errorf("min_rom %g outside [0, 1]", p.MinROM)
	}
	if p.ROMGate != nil && (*p.ROMGate <= 0 || *p.ROMGate > 1) {
		return fmt.Errorf("rom_gate %g outside (0, 1]", *p.ROMGate)
	}
	if p.HoldOccupancy <= 0 || p.HoldOccupancy > 1 {
		return fmt.Errorf("hold_occupancy %g outside (0, 1]", p.HoldOccupancy)
	}
	if p.Stabilization < 0 || p.Stabilization > 1 {
		return fmt.Errorf("stabilization %g outside [0, 1]", p.Stabilization)
	}
	if p.Strictness <= 0 {
		return errors.New("strictness must be positive")
	}

	switch p.Pattern.Rule().Gate {
	case GateLockout:
		if p.LockoutAngle == nil {
			return fmt.Errorf("pattern %s requires lockout_angle", p.Pattern)
		}
	case GateStretch:
		if p.StretchAngle == nil {
			return fmt.Errorf("pattern %s requires stretch_angle", p.Pattern)
		}
	}

	for joint, r := range p.TargetRanges {
		if r.Span() < 0 {
			return fmt.Errorf("target range for %s has min > max", joint)
		}
	}

	if err := p.Engagement.validate(); err != nil {
		return err
	}
	for i, c := range p.Checks {
		if err := c.validate(); err != nil {
			return fmt.Errorf("checks[%d]: %w", i, err)
		}
	}
	return nil
}

func (e Engagement) validate() error {
	if e.Primary < 0 || e.Stabilization < 0 {
		return errors.New("engagement weights must not be negative")
	}
	for i, b := range e.Bonuses {
		if b.Weight < 0 {
			return fmt.Errorf("engagement bonus %d has negative weight", i)
		}
		switch b.Kind {
		case BonusConstant, BonusEccentric:
		case BonusRange:
			if b.Joint == "" || b.Range == nil || b.Range.Span() <= 0 {
				return fmt.Errorf("engagement bonus %d: range bonus needs a joint and a non-empty range", i)
			}
		case BonusAlignment:
			if b.Joint == "" {
				return fmt.Errorf("engagement bonus %d: alignment bonus needs a joint", i)
			}
		default:
			return fmt.Errorf("engagement bonus %d: unknown kind %q", i, b.Kind)
		}
	}
	if total := e.TotalWeight(); total > 1+1e-9 {
		return fmt.Errorf("engagement weights sum to %g, must be at most 1", total)
	}
	return nil
}

func (c Check) validate() error {
	if c.Code == "" {
		return errors.New("code is required")
	}
	if c.Joint == "" {
		return errors.New("joint is required")
	}
	switch c.Kind {
	case CheckMin, CheckMax, CheckMinAbs, CheckMaxAbs:
	case CheckBand:
		if c.Band == nil || c.Band.Span() < 0 {
			return errors.New("band check needs a band with min <= max")
		}
	default:
		return fmt.Errorf("unknown check kind %q", c.Kind)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
