package pose

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kp(x, y float64) Keypoint {
	return Keypoint{X: x, Y: y, Confidence: 0.9}
}

func standing() []Keypoint {
	return []Keypoint{
		kp(0.50, 0.10), kp(0.52, 0.08), kp(0.48, 0.08), kp(0.54, 0.10), kp(0.46, 0.10),
		kp(0.60, 0.25), kp(0.40, 0.25), kp(0.62, 0.40), kp(0.38, 0.40),
		kp(0.64, 0.55), kp(0.36, 0.55), kp(0.58, 0.55), kp(0.42, 0.55),
		kp(0.58, 0.75), kp(0.42, 0.75), kp(0.58, 0.95), kp(0.42, 0.95),
	}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Keypoint
		want    float64
	}{
		{"right angle", kp(1, 0), kp(0, 0), kp(0, 1), 90},
		{"straight", kp(-1, 0), kp(0, 0), kp(1, 0), 180},
		{"folded", kp(1, 0), kp(0, 0), kp(2, 0), 0},
		{"obtuse reflected", kp(1, 0), kp(0, 0), kp(-1, -1), 135},
		{"low confidence", Keypoint{X: 1, Confidence: 0.05}, kp(0, 0), kp(0, 1), 0},
		{"confidence at threshold", Keypoint{X: 1, Confidence: 0.1}, kp(0, 0), kp(0, 1), 90},
		{"overflowing coordinates", kp(1e308, 1e308), kp(-1e308, -1e308), kp(1e308, -1e308), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Angle(tt.a, tt.b, tt.c), 1e-9)
		})
	}
}

func TestAngle_AlwaysWithinHalfTurn(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		a := kp(rng.Float64()*2-1, rng.Float64()*2-1)
		b := kp(rng.Float64()*2-1, rng.Float64()*2-1)
		c := kp(rng.Float64()*2-1, rng.Float64()*2-1)

		got := Angle(a, b, c)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 180.0)
	}
}

func TestAngleOf(t *testing.T) {
	assert.InDelta(t, 90, AngleOf([]float64{1, 0, 1}, []float64{0, 0, 1}, []float64{0, 1, 1}), 1e-9)
	assert.Equal(t, 0.0, AngleOf([]float64{1, 0}, []float64{0, 0, 1}, []float64{0, 1, 1}))
	assert.Equal(t, 0.0, AngleOf([]float64{1, 0, 1}, nil, []float64{0, 1, 1}))
}

func TestSignedAngle(t *testing.T) {
	assert.InDelta(t, 90, SignedAngle(kp(1, 0), kp(0, 0), kp(0, 1)), 1e-9)
	assert.InDelta(t, -90, SignedAngle(kp(1, 0), kp(0, 0), kp(0, -1)), 1e-9)
	assert.Equal(t, 0.0, SignedAngle(kp(1, 0), Keypoint{}, kp(0, 1)))
}

func TestLateralDeviation(t *testing.T) {
	t.Run("collinear chain", func(t *testing.T) {
		assert.InDelta(t, 0, LateralDeviation(kp(0, 0), kp(0, 1), kp(0, 2)), 1e-9)
	})

	t.Run("sign follows drift side", func(t *testing.T) {
		inward := LateralDeviation(kp(0, 0), kp(0.2, 1), kp(0, 2))
		outward := LateralDeviation(kp(0, 0), kp(-0.2, 1), kp(0, 2))
		assert.InDelta(t, -inward, outward, 1e-9)
		assert.Greater(t, abs(inward), 15.0)
	})

	t.Run("low confidence", func(t *testing.T) {
		assert.Equal(t, 0.0, LateralDeviation(kp(0, 0), Keypoint{X: 0.2, Y: 1}, kp(0, 2)))
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5, Distance(kp(0, 0), kp(3, 4)), 1e-9)
}

func TestParseKeypoints(t *testing.T) {
	t.Run("splits triples", func(t *testing.T) {
		points, err := ParseKeypoints([]float64{1, 2, 0.5, 3, 4, 0.25})
		require.NoError(t, err)
		assert.Equal(t, []Keypoint{{1, 2, 0.5}, {3, 4, 0.25}}, points)
	})

	t.Run("rejects ragged buffers", func(t *testing.T) {
		_, err := ParseKeypoints([]float64{1, 2, 0.5, 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInputShape))
		assert.Contains(t, err.Error(), "got 4")
	})

	t.Run("empty buffer is valid", func(t *testing.T) {
		points, err := ParseKeypoints(nil)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("round trips through Flatten", func(t *testing.T) {
		flat := Flatten(standing())
		points, err := ParseKeypoints(flat)
		require.NoError(t, err)
		assert.Equal(t, standing(), points)
	})
}

func TestExtract(t *testing.T) {
	t.Run("short buffer yields empty set", func(t *testing.T) {
		assert.Empty(t, Extract(standing()[:10], UpperBody))
		assert.Empty(t, Extract(standing()[:16], LowerBody))
		assert.Empty(t, Extract(standing()[:16], FullBody))
	})

	t.Run("upper body needs eleven points", func(t *testing.T) {
		angles := Extract(standing()[:11], UpperBody)
		assert.Contains(t, angles, ElbowFlexion)
		assert.Contains(t, angles, ShoulderStability)
		assert.NotContains(t, angles, KneeFlexion)
	})

	t.Run("standing pose", func(t *testing.T) {
		angles := Extract(standing(), FullBody)

		assert.InDelta(t, 180, angles[KneeFlexion], 1e-6)
		assert.InDelta(t, 180, angles[ElbowFlexion], 1e-6)
		assert.InDelta(t, 180, angles[ShoulderStability], 1e-6)
		assert.InDelta(t, 180, angles[HipStability], 1e-6)
		assert.InDelta(t, 180, angles[TorsoLean], 5)
		assert.InDelta(t, 180, angles[HipExtension], 5)
		assert.InDelta(t, 0, angles[KneeAlignment], 1e-6)
		assert.InDelta(t, 100, angles[StanceWidth], 1e-6)
		assert.Contains(t, angles, ScapularElevation)
		assert.Contains(t, angles, ShoulderFlexion)
		assert.Contains(t, angles, TorsoRotation)
	})

	t.Run("tilted shoulders lose stability", func(t *testing.T) {
		points := standing()
		points[RightShoulder].Y = 0.30
		angles := Extract(points, UpperBody)
		assert.Less(t, angles[ShoulderStability], 170.0)
	})

	t.Run("unseen joints read as zero", func(t *testing.T) {
		points := standing()
		points[LeftKnee].Confidence = 0
		angles := Extract(points, LowerBody)
		assert.Equal(t, 0.0, angles[KneeFlexion])
		assert.Equal(t, []string{"left_knee"}, Unseen(points))
	})
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("lower_body")
	require.NoError(t, err)
	assert.Equal(t, LowerBody, r)

	_, err = ParseRegion("torso")
	assert.Error(t, err)
}
