package pose

import (
	"fmt"
	"math"
)

// Region selects which joint angles Extract computes.
type Region string

const (
	UpperBody Region = "upper_body"
	LowerBody Region = "lower_body"
	FullBody  Region = "full_body"
)

// Angle set keys.
const (
	ElbowFlexion      = "elbow_flexion"
	ElbowFlexionRight = "elbow_flexion_right"
	ShoulderAbduction = "shoulder_abduction"
	ShoulderStability = "shoulder_stability"
	ScapularElevation = "scapular_elevation"
	KneeFlexion       = "knee_flexion"
	HipExtension      = "hip_extension"
	TorsoLean         = "torso_lean"
	HipStability      = "hip_stability"
	KneeAlignment     = "knee_alignment"
	StanceWidth       = "stance_width"
	ShoulderFlexion   = "shoulder_flexion"
	TorsoRotation     = "torso_rotation"
)

// AngleSet maps a joint-region name to degrees. A missing key means the
// metric could not be evaluated for this frame.
type AngleSet map[string]float64

// Get returns the angle stored under key and whether it was present.
func (s AngleSet) Get(key string) (float64, bool) {
	v, ok := s[key]
	return v, ok
}

// Clone returns a shallow copy of the set.
func (s AngleSet) Clone() AngleSet {
	out := make(AngleSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ParseRegion converts a string to a Region.
func ParseRegion(s string) (Region, error) {
	switch r := Region(s); r {
	case UpperBody, LowerBody, FullBody:
		return r, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// MinPoints returns the number of keypoints the region needs.
func (r Region) MinPoints() int {
	if r == UpperBody {
		return 11
	}
	return NumKeypoints
}

// Extract computes the angle set for region. Input shorter than the region
// requires yields an empty set.
func Extract(points []Keypoint, region Region) AngleSet {
	angles := AngleSet{}
	if len(points) < region.MinPoints() {
		return angles
	}

	switch region {
	case UpperBody:
		extractUpper(points, angles)
	case LowerBody:
		extractLower(points, angles)
	case FullBody:
		extractUpper(points, angles)
		extractLower(points, angles)
		angles[ShoulderFlexion] = Angle(points[LeftHip], points[LeftShoulder], points[LeftElbow])
		angles[TorsoRotation] = Angle(points[LeftShoulder], points[Nose], points[RightShoulder])
	}
	return angles
}

func extractUpper(p []Keypoint, angles AngleSet) {
	angles[ElbowFlexion] = Angle(p[LeftShoulder], p[LeftElbow], p[LeftWrist])
	angles[ElbowFlexionRight] = Angle(p[RightShoulder], p[RightElbow], p[RightWrist])
	angles[ShoulderAbduction] = Angle(p[LeftElbow], p[LeftShoulder], p[RightShoulder])
	angles[ShoulderStability] = Angle(p[RightShoulder], p[LeftShoulder], horizontalRef(p[LeftShoulder], p[RightShoulder]))

	if v, ok := ratio(p[LeftEar], p[LeftShoulder], p[LeftShoulder], p[RightShoulder]); ok {
		angles[ScapularElevation] = v
	}
}

func extractLower(p []Keypoint, angles AngleSet) {
	angles[KneeFlexion] = Angle(p[LeftHip], p[LeftKnee], p[LeftAnkle])
	angles[HipExtension] = Angle(p[LeftShoulder], p[LeftHip], p[LeftKnee])
	angles[TorsoLean] = Angle(p[LeftShoulder], p[LeftHip], verticalRef(p[LeftHip]))
	angles[HipStability] = Angle(p[RightHip], p[LeftHip], horizontalRef(p[LeftHip], p[RightHip]))
	angles[KneeAlignment] = LateralDeviation(p[LeftHip], p[LeftKnee], p[LeftAnkle])

	if v, ok := ratio(p[LeftAnkle], p[RightAnkle], p[LeftHip], p[RightHip]); ok {
		angles[StanceWidth] = v
	}
}

// ratio returns dist(a, b) / dist(c, d) as a percentage. It is undefined when
// any point is unseen or the reference span collapses.
func ratio(a, b, c, d Keypoint) (float64, bool) {
	if !a.Visible() || !b.Visible() || !c.Visible() || !d.Visible() {
		return 0, false
	}
	span := Distance(c, d)
	if span < 1e-9 {
		return 0, false
	}
	v := Distance(a, b) / span * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Unseen returns the names of the keypoints that fall below MinConfidence.
func Unseen(points []Keypoint) []string {
	var names []string
	for i, p := range points {
		if i >= NumKeypoints {
			break
		}
		if !p.Visible() {
			names = append(names, Names[i])
		}
	}
	return names
}
