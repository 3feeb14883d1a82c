package analysis

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
)

const (
	velocityWindow = 5
	romWindow      = 3
)

// RepCounter tracks one exercise stream and registers completed repetitions.
// It is not safe for concurrent use.
type RepCounter struct {
	profile *profile.Profile
	rule    profile.Rule

	count         uint32
	phase         Phase
	lastAngles    pose.AngleSet
	lastTimestamp float64
	// spent is set once a lockout or stretch visit has produced a rep and
	// cleared when the joint leaves that zone.
	spent bool

	velocities []float64
	roms       []float64
}

// NewRepCounter creates a counter for p. A nil or neutral profile never counts.
func NewRepCounter(p *profile.Profile) *RepCounter {
	if p == nil {
		p = profile.Neutral("")
	}
	return &RepCounter{
		profile:    p,
		rule:       p.Rule(),
		velocities: make([]float64, 0, velocityWindow),
		roms:       make([]float64, 0, romWindow),
	}
}

// Update feeds one frame of angles taken at timestamp (seconds). It returns
// the count and phase with ok set only on the frame a repetition registers.
// A frame without the primary joint contributes ROM 0 and velocity 0.
func (c *RepCounter) Update(angles pose.AngleSet, timestamp float64) (count uint32, phase Phase, ok bool) {
	if c.profile.IsNeutral() {
		return c.count, c.phase, false
	}

	primary := c.profile.PrimaryJoint
	angle, present := angles[primary]

	rom := 0.0
	if present {
		rom = c.profile.Range.Fraction(angle)
	}
	c.roms = push(c.roms, rom, romWindow)
	avgROM := stat.Mean(c.roms, nil)

	velocity := 0.0
	if last, had := c.lastAngles[primary]; had && present {
		if dt := timestamp - c.lastTimestamp; dt > 0 {
			velocity = (angle - last) / dt
		}
	}
	c.velocities = push(c.velocities, velocity, velocityWindow)
	avgVelocity := stat.Mean(c.velocities, nil)

	next := DetectPhase(c.rule, c.profile.VelocityThreshold, c.profile.HoldOccupancy, avgVelocity, avgROM)
	completed := c.completes(next, avgROM)
	if completed {
		c.spent = true
	}
	if present && !c.inZone(angle) {
		c.spent = false
	}

	c.phase = next
	c.lastAngles = angles.Clone()
	c.lastTimestamp = timestamp

	if completed {
		c.count++
		return c.count, next, true
	}
	return c.count, next, false
}

func (c *RepCounter) completes(next Phase, avgROM float64) bool {
	if avgROM < c.profile.ROMThreshold() {
		return false
	}

	last, hadLast := c.lastAngles[c.profile.PrimaryJoint]

	switch c.rule.Gate {
	case profile.GateLockout:
		return hadLast && !c.spent && c.inZone(last) && next == Eccentric
	case profile.GateEdge:
		return c.phase == Concentric && next == Eccentric
	case profile.GateStretch:
		return hadLast && !c.spent && c.inZone(last) && next == Concentric
	case profile.GateHold:
		return next == StaticHold && c.phase != StaticHold
	case profile.GateEccentric:
		return next == Eccentric && c.phase != Eccentric
	}
	return false
}

// inZone reports whether angle is at or past the lockout or stretch angle
// the profile's gate watches.
func (c *RepCounter) inZone(angle float64) bool {
	switch c.rule.Gate {
	case profile.GateLockout:
		return c.profile.LockoutAngle != nil && angle >= *c.profile.LockoutAngle
	case profile.GateStretch:
		return c.profile.StretchAngle != nil && angle <= *c.profile.StretchAngle
	}
	return false
}

// Reset clears the count, phase, history and smoothing windows.
func (c *RepCounter) Reset() {
	c.count = 0
	c.phase = None
	c.lastAngles = nil
	c.lastTimestamp = 0
	c.spent = false
	c.velocities = c.velocities[:0]
	c.roms = c.roms[:0]
}

// Count returns the number of registered repetitions.
func (c *RepCounter) Count() uint32 { return c.count }

// Phase returns the phase detected on the last frame.
func (c *RepCounter) Phase() Phase { return c.phase }

// ROM returns the current averaged ROM fraction, or 0 before the first frame.
func (c *RepCounter) ROM() float64 {
	if len(c.roms) == 0 {
		return 0
	}
	return stat.Mean(c.roms, nil)
}

// Velocity returns the current averaged angular velocity in degrees per second.
func (c *RepCounter) Velocity() float64 {
	if len(c.velocities) == 0 {
		return 0
	}
	return stat.Mean(c.velocities, nil)
}

// push appends v, evicting the oldest values beyond limit.
func push(window []float64, v float64, limit int) []float64 {
	if len(window) == limit {
		copy(window, window[1:])
		window = window[:limit-1]
	}
	return append(window, v)
}
