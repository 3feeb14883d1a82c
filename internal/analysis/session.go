package analysis

import (
	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
)

// Result is the analysis of a single frame.
type Result struct {
	Exercise     string        `json:"exercise"`
	Count        uint32        `json:"rep_count"`
	Phase        Phase         `json:"phase"`
	RepCompleted bool          `json:"rep_completed"`
	Violations   []Violation   `json:"violations"`
	Engagement   float64       `json:"engagement"`
	Angles       pose.AngleSet `json:"angles"`
	// LowConfidence names every keypoint below pose.MinConfidence this frame,
	// including ones no angle uses. Angles built on any of them read as 0°.
	LowConfidence []string `json:"low_confidence,omitempty"`
}

// Session runs the full per-frame pipeline for one exercise stream. It is
// not safe for concurrent use.
type Session struct {
	profile *profile.Profile
	counter *RepCounter
}

// NewSession creates a session for p.
func NewSession(p *profile.Profile) *Session {
	if p == nil {
		p = profile.Neutral("")
	}
	return &Session{
		profile: p,
		counter: NewRepCounter(p),
	}
}

// ProcessFrame parses a flat keypoint buffer and analyzes it. A malformed
// buffer returns pose.ErrInputShape and leaves the session unchanged.
func (s *Session) ProcessFrame(flat []float64, timestamp float64) (Result, error) {
	points, err := pose.ParseKeypoints(flat)
	if err != nil {
		return Result{}, err
	}
	return s.Process(points, timestamp), nil
}

// Process analyzes already parsed keypoints.
func (s *Session) Process(points []pose.Keypoint, timestamp float64) Result {
	angles := pose.Extract(points, s.profile.Region)

	count, phase, completed := s.counter.Update(angles, timestamp)

	return Result{
		Exercise:      s.profile.ID,
		Count:         count,
		Phase:         phase,
		RepCompleted:  completed,
		Violations:    CheckForm(s.profile, angles),
		Engagement:    Engagement(s.profile, angles, phase),
		Angles:        angles,
		LowConfidence: pose.Unseen(points),
	}
}

// Reset restarts repetition tracking.
func (s *Session) Reset() {
	s.counter.Reset()
}

// Profile returns the profile the session analyzes against.
func (s *Session) Profile() *profile.Profile { return s.profile }

// Count returns the repetitions registered so far.
func (s *Session) Count() uint32 { return s.counter.Count() }

// Phase returns the most recent phase.
func (s *Session) Phase() Phase { return s.counter.Phase() }

// ROM returns the averaged ROM fraction.
func (s *Session) ROM() float64 { return s.counter.ROM() }
