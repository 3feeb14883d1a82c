// Package app replays keypoint frame sources through an analysis session.
package app

import (
	"log/slog"

	"github.com/ayusman/repcoach/internal/analysis"
	"github.com/ayusman/repcoach/internal/source"
)

// Config holds configuration options for a replay.
type Config struct {
	Source  source.Source
	Session *analysis.Session
	Logger  *slog.Logger
	// OnResult, if set, is called for every analyzed frame.
	OnResult func(analysis.Result)
}

// Summary aggregates the results of a replay.
type Summary struct {
	Exercise string `json:"exercise"`
	Frames   int    `json:"frames"`
	Rejected int    `json:"rejected"`
	Reps     uint32 `json:"reps"`
	// RepTimes holds the timestamp, in seconds, of each completed repetition.
	RepTimes []float64 `json:"rep_times"`
	// Violations counts frames reporting each violation.
	Violations     map[string]int `json:"violations"`
	MeanEngagement float64        `json:"mean_engagement"`
	// Duration spans the first to the last analyzed frame, in seconds.
	Duration float64 `json:"duration"`
}

// App drives a single session from a frame source.
type App struct {
	config Config
	log    *slog.Logger
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	return &App{
		config: config,
		log:    log.With("exercise", config.Session.Profile().ID),
	}
}

// violationKey names a violation for the summary.
func violationKey(v analysis.Violation) string {
	if v.Code != "" {
		return v.Code
	}
	return v.Joint + " " + string(v.Kind)
}
