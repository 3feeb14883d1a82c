package source

import (
	"context"
	"math"
	"sync"

	"github.com/ayusman/repcoach/internal/pose"
)

// MockSource is a test implementation of the Source interface.
// It replays a fixed list of frames.
type MockSource struct {
	mu     sync.Mutex
	frames []Frame
	next   int
	err    error
	closed bool
}

// NewMockSource creates a MockSource that replays frames.
func NewMockSource(frames ...Frame) *MockSource {
	return &MockSource{frames: frames}
}

// SetFrames replaces the frames and rewinds the source.
func (m *MockSource) SetFrames(frames []Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.next = 0
}

// SetError sets the error returned by Next instead of a frame.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next pre-configured frame.
func (m *MockSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Frame{}, m.err
	}
	if m.next >= len(m.frames) {
		return Frame{}, ErrEndOfStream
	}
	f := m.frames[m.next]
	m.next++
	return f, nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// StandingPose returns a front-facing upright pose with arms hanging and
// feet hip-width apart. Image coordinates, y grows downward.
func StandingPose() []pose.Keypoint {
	kp := func(x, y float64) pose.Keypoint {
		return pose.Keypoint{X: x, Y: y, Confidence: 0.95}
	}

	points := make([]pose.Keypoint, pose.NumKeypoints)
	points[pose.Nose] = kp(0.50, 0.10)
	points[pose.LeftEye] = kp(0.52, 0.08)
	points[pose.RightEye] = kp(0.48, 0.08)
	points[pose.LeftEar] = kp(0.54, 0.10)
	points[pose.RightEar] = kp(0.46, 0.10)
	points[pose.LeftShoulder] = kp(0.60, 0.25)
	points[pose.RightShoulder] = kp(0.40, 0.25)
	points[pose.LeftElbow] = kp(0.60, 0.40)
	points[pose.RightElbow] = kp(0.40, 0.40)
	points[pose.LeftWrist] = kp(0.60, 0.55)
	points[pose.RightWrist] = kp(0.40, 0.55)
	points[pose.LeftHip] = kp(0.58, 0.55)
	points[pose.RightHip] = kp(0.42, 0.55)
	points[pose.LeftKnee] = kp(0.58, 0.75)
	points[pose.RightKnee] = kp(0.42, 0.75)
	points[pose.LeftAnkle] = kp(0.58, 0.95)
	points[pose.RightAnkle] = kp(0.42, 0.95)
	return points
}

// ElbowAt returns the standing pose with the left elbow bent to deg degrees.
func ElbowAt(deg float64) []pose.Keypoint {
	points := StandingPose()
	points[pose.LeftWrist] = swing(points[pose.LeftShoulder], points[pose.LeftElbow], deg, 0.15)
	return points
}

// KneeAt returns the standing pose with the left knee bent to deg degrees.
func KneeAt(deg float64) []pose.Keypoint {
	points := StandingPose()
	points[pose.LeftAnkle] = swing(points[pose.LeftHip], points[pose.LeftKnee], deg, 0.20)
	return points
}

// HipAt returns the standing pose with the left hip opened to deg degrees.
func HipAt(deg float64) []pose.Keypoint {
	points := StandingPose()
	points[pose.LeftKnee] = swing(points[pose.LeftShoulder], points[pose.LeftHip], deg, 0.20)
	points[pose.LeftAnkle] = swing(points[pose.LeftHip], points[pose.LeftKnee], 180, 0.20)
	return points
}

// Sequence builds frames from poses spaced by the given timestamps in seconds.
func Sequence(poses [][]pose.Keypoint, seconds []float64) []Frame {
	frames := make([]Frame, len(poses))
	for i, p := range poses {
		frames[i] = Frame{Keypoints: pose.Flatten(p), TimestampMS: seconds[i] * 1000}
	}
	return frames
}

// swing places a point at distance length from vertex so that the angle
// anchor-vertex-point equals deg.
func swing(anchor, vertex pose.Keypoint, deg, length float64) pose.Keypoint {
	base := math.Atan2(anchor.Y-vertex.Y, anchor.X-vertex.X)
	theta := base + deg*math.Pi/180
	return pose.Keypoint{
		X:          vertex.X + length*math.Cos(theta),
		Y:          vertex.Y + length*math.Sin(theta),
		Confidence: vertex.Confidence,
	}
}
