package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/source"
)

func catalogProfile(t *testing.T, id string) *profile.Profile {
	t.Helper()
	profiles, err := profile.Default()
	require.NoError(t, err)
	r, err := profile.NewRegistry(profiles)
	require.NoError(t, err)
	p, ok := r.Lookup(id)
	require.True(t, ok, id)
	return p
}

func pressFrames() []source.Frame {
	return source.Sequence(
		[][]pose.Keypoint{
			source.ElbowAt(60), source.ElbowAt(90), source.ElbowAt(172),
			source.ElbowAt(120), source.ElbowAt(65),
		},
		[]float64{0, 1, 2, 2.1, 2.2},
	)
}

func TestSession_ProcessFrame(t *testing.T) {
	s := NewSession(catalogProfile(t, "military-press"))

	var results []Result
	for _, f := range pressFrames() {
		res, err := s.ProcessFrame(f.Keypoints, f.Seconds())
		require.NoError(t, err)
		results = append(results, res)
	}

	for i, res := range results {
		assert.Equal(t, "military-press", res.Exercise)
		assert.Equal(t, i == 3, res.RepCompleted, "frame %d", i)
		assert.Empty(t, res.Violations, "frame %d", i)
		assert.Empty(t, res.LowConfidence, "frame %d", i)
		assert.GreaterOrEqual(t, res.Engagement, MinEngagement)
		assert.LessOrEqual(t, res.Engagement, MaxEngagement)
		assert.Contains(t, res.Angles, pose.ElbowFlexion)
	}

	assert.Equal(t, Concentric, results[2].Phase)
	assert.Equal(t, uint32(1), results[3].Count)
	assert.Equal(t, Eccentric, results[3].Phase)
	assert.Equal(t, uint32(1), results[4].Count)
	assert.InDelta(t, 172, results[2].Angles[pose.ElbowFlexion], 1e-6)
	assert.Equal(t, uint32(1), s.Count())
	assert.Equal(t, Eccentric, s.Phase())
}

func TestSession_InputShapeError(t *testing.T) {
	s := NewSession(catalogProfile(t, "military-press"))
	frames := pressFrames()

	_, err := s.ProcessFrame(frames[0].Keypoints, 0)
	require.NoError(t, err)
	rom := s.ROM()

	_, err = s.ProcessFrame([]float64{0.5, 0.5}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pose.ErrInputShape))
	assert.Equal(t, rom, s.ROM())
	assert.Equal(t, uint32(0), s.Count())
}

func TestSession_ShortBuffer(t *testing.T) {
	s := NewSession(catalogProfile(t, "squat"))
	flat := pose.Flatten(source.StandingPose()[:11])

	res, err := s.ProcessFrame(flat, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Angles)
	assert.Empty(t, res.Violations)
	assert.Equal(t, MinEngagement, res.Engagement)
	assert.Equal(t, 0.0, s.ROM())
}

func TestSession_UnknownExercise(t *testing.T) {
	profiles, err := profile.Default()
	require.NoError(t, err)
	r, err := profile.NewRegistry(profiles)
	require.NoError(t, err)

	p, ok := r.Lookup("moonwalk")
	require.False(t, ok)
	s := NewSession(p)

	for _, f := range append(pressFrames(), pressFrames()...) {
		res, err := s.ProcessFrame(f.Keypoints, f.Seconds())
		require.NoError(t, err)
		assert.Equal(t, NeutralEngagement, res.Engagement)
		assert.Empty(t, res.Violations)
		assert.False(t, res.RepCompleted)
		assert.Equal(t, uint32(0), res.Count)
		assert.Equal(t, None, res.Phase)
	}
}

func TestSession_LowConfidence(t *testing.T) {
	s := NewSession(catalogProfile(t, "military-press"))
	points := source.ElbowAt(90)
	points[pose.LeftWrist].Confidence = 0.05

	res := s.Process(points, 0)
	assert.Equal(t, []string{"left_wrist"}, res.LowConfidence)
	assert.Equal(t, 0.0, res.Angles[pose.ElbowFlexion])
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(catalogProfile(t, "military-press"))

	run := func() []Result {
		var out []Result
		for _, f := range pressFrames() {
			res, err := s.ProcessFrame(f.Keypoints, f.Seconds())
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}

	first := run()
	s.Reset()
	assert.Equal(t, uint32(0), s.Count())
	assert.Equal(t, None, s.Phase())

	second := run()
	assert.Equal(t, first, second)
}
