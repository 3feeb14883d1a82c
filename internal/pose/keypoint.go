// Package pose provides body keypoint types, frame parsing and joint geometry.
package pose

import (
	"errors"
	"fmt"
)

// Body keypoint indices following the COCO-17 convention.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// ValuesPerKeypoint is the stride of a flat keypoint buffer: x, y, confidence.
const ValuesPerKeypoint = 3

// MinConfidence is the confidence below which a keypoint is treated as unseen.
const MinConfidence = 0.1

// ErrInputShape is returned when a flat buffer is not a multiple of three values.
var ErrInputShape = errors.New("invalid keypoint buffer shape")

// Keypoint is a single body joint in image coordinates.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Visible reports whether the keypoint confidence reaches MinConfidence.
func (k Keypoint) Visible() bool {
	return k.Confidence >= MinConfidence
}

// ParseKeypoints splits a flat [x0, y0, c0, x1, y1, c1, ...] buffer into keypoints.
func ParseKeypoints(flat []float64) ([]Keypoint, error) {
	if len(flat)%ValuesPerKeypoint != 0 {
		return nil, fmt.Errorf("%w: expected multiple of %d, got %d", ErrInputShape, ValuesPerKeypoint, len(flat))
	}

	points := make([]Keypoint, 0, len(flat)/ValuesPerKeypoint)
	for i := 0; i < len(flat); i += ValuesPerKeypoint {
		points = append(points, Keypoint{
			X:          flat[i],
			Y:          flat[i+1],
			Confidence: flat[i+2],
		})
	}
	return points, nil
}

// Flatten is the inverse of ParseKeypoints.
func Flatten(points []Keypoint) []float64 {
	flat := make([]float64, 0, len(points)*ValuesPerKeypoint)
	for _, p := range points {
		flat = append(flat, p.X, p.Y, p.Confidence)
	}
	return flat
}

// Names maps COCO-17 indices to joint names.
var Names = [NumKeypoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}
