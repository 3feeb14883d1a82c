package app

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/source"
)

// Run reads frames until the source is exhausted and returns a summary.
// Frames with a malformed keypoint buffer are counted as rejected and
// skipped. Any other source error, or ctx ending, stops the replay. The
// source is closed on return.
func (a *App) Run(ctx context.Context) (Summary, error) {
	defer a.config.Source.Close()

	sess := a.config.Session
	summary := Summary{
		Exercise:   sess.Profile().ID,
		Violations: make(map[string]int),
	}

	var engagement []float64
	var first, last float64

	for {
		frame, err := a.config.Source.Next(ctx)
		if errors.Is(err, source.ErrEndOfStream) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("reading frame %d: %w", summary.Frames+summary.Rejected+1, err)
		}

		ts := frame.Seconds()
		result, err := sess.ProcessFrame(frame.Keypoints, ts)
		if err != nil {
			if !errors.Is(err, pose.ErrInputShape) {
				return summary, err
			}
			summary.Rejected++
			a.log.Warn("frame rejected", "timestamp", ts, "error", err)
			continue
		}

		if summary.Frames == 0 {
			first = ts
		}
		last = ts
		summary.Frames++
		engagement = append(engagement, result.Engagement)
		for _, v := range result.Violations {
			summary.Violations[violationKey(v)]++
		}
		if result.RepCompleted {
			summary.RepTimes = append(summary.RepTimes, ts)
			a.log.Info("rep completed", "count", result.Count, "timestamp", ts)
		}

		if a.config.OnResult != nil {
			a.config.OnResult(result)
		}
	}

	summary.Reps = sess.Count()
	summary.Duration = last - first
	if len(engagement) > 0 {
		summary.MeanEngagement = stat.Mean(engagement, nil)
	}

	a.log.Debug("replay finished", "frames", summary.Frames, "rejected", summary.Rejected, "reps", summary.Reps)
	return summary, nil
}
