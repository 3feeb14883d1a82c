// Package source provides keypoint frame sources for analysis sessions.
package source

import (
	"context"
	"errors"
)

// ErrEndOfStream is returned by Next once a source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one set of keypoints produced by an upstream pose estimator.
type Frame struct {
	// Keypoints is the flat [x, y, confidence, ...] buffer in COCO-17 order.
	Keypoints []float64 `json:"keypoints"`
	// TimestampMS is the capture time in milliseconds.
	TimestampMS float64 `json:"timestamp_ms"`
}

// Seconds returns the frame timestamp in seconds.
func (f Frame) Seconds() float64 {
	return f.TimestampMS / 1000
}

// Source defines the interface for keypoint frame producers.
type Source interface {
	// Next blocks until the next frame is available. It returns
	// ErrEndOfStream when the source is exhausted.
	Next(ctx context.Context) (Frame, error)

	// Close releases any resources held by the source.
	Close() error
}
