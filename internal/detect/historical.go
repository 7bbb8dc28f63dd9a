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

// historicalWeeks is the fixed week count used to derive a weekly average
// from the six-month reference window. The source system always divides by
// 25 regardless of calendar month lengths; preserved as-is.
const historicalWeeks = 25.0

// minWeeklyAverageFloor substitutes for a zero historical average when
// computing the spike ratio for the message. It never affects the trigger
// decision itself.
const minWeeklyAverageFloor = 0.1

// HistoricalSpike flags farms whose last-week usage is both above a fixed
// minimum and more than SpikeFactor times their own six-month weekly average.
type HistoricalSpike struct {
	store  store.Store
	cfg    config.HistoricalConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoricalSpike(st store.Store, cfg config.HistoricalConfig, writer *AlertWriter, logger *slog.Logger) *HistoricalSpike {
	return &HistoricalSpike{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *HistoricalSpike) Name() string { return "historical_spike" }

func (d *HistoricalSpike) Run(ctx context.Context) (Summary, error) {
	farms, err := d.store.ListFarms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list farms: %w", err)
	}
	now := d.now().UTC()
	weekStart := now.Add(-week)
	historyStart := now.Add(-6 * month)

	var sum Summary
	for _, farm := range farms {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		res, err := d.checkFarm(ctx, farm, weekStart, historyStart, now)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("historical spike check failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		sum.merge(res)
	}
	return sum, nil
}

func (d *HistoricalSpike) checkFarm(ctx context.Context, farm model.Farm, weekStart, historyStart, now time.Time) (Summary, error) {
	sum := Summary{FarmsChecked: 1}
	currentWeek, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, weekStart, now)
	if err != nil {
		return Summary{}, err
	}
	// Historical window deliberately excludes the current week.
	historical, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, historyStart, weekStart)
	if err != nil {
		return Summary{}, err
	}

	weeklyAvg := float64(historical) / historicalWeeks
	if currentWeek <= d.cfg.MinWeeklyEvents {
		return sum, nil
	}
	if float64(currentWeek) <= weeklyAvg*d.cfg.SpikeFactor {
		return sum, nil
	}

	flooredAvg := weeklyAvg
	if flooredAvg < minWeeklyAverageFloor {
		flooredAvg = minWeeklyAverageFloor
	}
	ratio := float64(currentWeek) / flooredAvg

	alert := &model.AMUAlert{
		FarmID:    farm.ID,
		AlertType: model.AlertHistoricalSpike,
		Severity:  spikeSeverity(ratio),
		Message: fmt.Sprintf("Antimicrobial usage spike: %d treatments this week vs a weekly average of %.1f (%.1fx)",
			currentWeek, weeklyAvg, ratio),
		Details: map[string]float64{
			"currentWeekCount":        float64(currentWeek),
			"historicalCount":         float64(historical),
			"historicalWeeklyAverage": weeklyAvg,
			"spikeRatio":              ratio,
		},
	}
	created, err := d.writer.CreateAMU(ctx, alert)
	if err != nil {
		return Summary{}, err
	}
	if created {
		sum.AlertsCreated = 1
	}
	return sum, nil
}

func spikeSeverity(ratio float64) model.Severity {
	switch {
	case ratio >= 4:
		return model.SeverityCritical
	case ratio >= 3:
		return model.SeverityHigh
	case ratio >= 2.5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
