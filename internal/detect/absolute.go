package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

// AbsoluteThreshold flags farms whose usage in the window exceeds a fixed
// policy limit, independent of history or peers.
type AbsoluteThreshold struct {
	store  store.Store
	cfg    config.AbsoluteConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewAbsoluteThreshold(st store.Store, cfg config.AbsoluteConfig, writer *AlertWriter, logger *slog.Logger) *AbsoluteThreshold {
	return &AbsoluteThreshold{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *AbsoluteThreshold) Name() string { return "absolute_threshold" }

func (d *AbsoluteThreshold) Run(ctx context.Context) (Summary, error) {
	farms, err := d.store.ListFarms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list farms: %w", err)
	}
	now := d.now().UTC()
	from := now.Add(-d.cfg.Window)
	limit := d.cfg.MonthlyEventLimit

	var sum Summary
	for _, farm := range farms {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		count, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, from, now)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("absolute threshold check failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		sum.FarmsChecked++
		if count <= limit {
			continue
		}
		exceedance := float64(count) / float64(limit)
		alert := &model.AMUAlert{
			FarmID:    farm.ID,
			AlertType: model.AlertAbsoluteThreshold,
			Severity:  thresholdSeverity(exceedance),
			Message: fmt.Sprintf("Usage threshold breached: %d treatments in %s against a limit of %d (%.0f%%)",
				count, d.cfg.Window, limit, exceedance*100),
			Details: map[string]float64{
				"eventCount": float64(count),
				"limit":      float64(limit),
				"exceedance": exceedance,
			},
		}
		created, err := d.writer.CreateAMU(ctx, alert)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("absolute threshold write failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		if created {
			sum.AlertsCreated++
		}
	}
	return sum, nil
}

// Breaches at 130% of the limit or beyond are critical.
func thresholdSeverity(exceedance float64) model.Severity {
	switch {
	case exceedance >= 1.30:
		return model.SeverityCritical
	case exceedance >= 1.15:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}
