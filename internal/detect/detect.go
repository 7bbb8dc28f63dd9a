package detect

import (
	"context"
	"time"
)

// Summary is what a detector run reports back to the scheduler and the
// trigger API. Per-farm failures increment Skipped and never abort the run.
type Summary struct {
	FarmsChecked  int `json:"farms_checked"`
	AlertsCreated int `json:"alerts_created"`
	FarmsSkipped  int `json:"farms_skipped"`
}

func (s *Summary) merge(other Summary) {
	s.FarmsChecked += other.FarmsChecked
	s.AlertsCreated += other.AlertsCreated
	s.FarmsSkipped += other.FarmsSkipped
}

// Detector is one stateless evaluation strategy, run as a batch pass over
// all farms. A run is idempotent with respect to alert count: re-running
// with unchanged data creates no additional alerts.
type Detector interface {
	Name() string
	Run(ctx context.Context) (Summary, error)
}

const (
	week  = 7 * 24 * time.Hour
	month = 30 * 24 * time.Hour
)
