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

// SustainedHighUsage flags farms whose weekly usage stayed above twice
// their own baseline for N consecutive weeks ending now. A single
// non-qualifying week resets the streak.
type SustainedHighUsage struct {
	store  store.Store
	cfg    config.SustainedConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewSustainedHighUsage(st store.Store, cfg config.SustainedConfig, writer *AlertWriter, logger *slog.Logger) *SustainedHighUsage {
	return &SustainedHighUsage{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *SustainedHighUsage) Name() string { return "sustained_high_usage" }

func (d *SustainedHighUsage) Run(ctx context.Context) (Summary, error) {
	farms, err := d.store.ListFarms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list farms: %w", err)
	}
	now := d.now().UTC()

	var sum Summary
	for _, farm := range farms {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		res, err := d.checkFarm(ctx, farm, now)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("sustained usage check failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		sum.merge(res)
	}
	return sum, nil
}

func (d *SustainedHighUsage) checkFarm(ctx context.Context, farm model.Farm, now time.Time) (Summary, error) {
	sum := Summary{FarmsChecked: 1}

	baselineFrom := now.Add(-time.Duration(d.cfg.BaselineWeeks) * week)
	total, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, baselineFrom, now)
	if err != nil {
		return Summary{}, err
	}
	baseline := float64(total) / float64(d.cfg.BaselineWeeks)

	// weeks[0] is the most recent week; streak counts back from it and
	// breaks at the first non-qualifying week.
	streak := 0
	var peak float64
	for i := 0; i < d.cfg.LookbackWeeks; i++ {
		to := now.Add(-time.Duration(i) * week)
		from := to.Add(-week)
		count, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, from, to)
		if err != nil {
			return Summary{}, err
		}
		if !d.qualifies(count, baseline) {
			break
		}
		streak++
		if float64(count) > peak {
			peak = float64(count)
		}
	}
	if streak < d.cfg.ConsecutiveWeeks {
		return sum, nil
	}

	alert := &model.AMUAlert{
		FarmID:    farm.ID,
		AlertType: model.AlertSustainedHigh,
		Severity:  model.SeverityCritical,
		Message: fmt.Sprintf("Sustained high usage: %d consecutive weeks above %.1fx the farm's weekly baseline of %.1f",
			streak, d.cfg.IntensityFactor, baseline),
		Details: map[string]float64{
			"consecutiveWeeks": float64(streak),
			"requiredWeeks":    float64(d.cfg.ConsecutiveWeeks),
			"weeklyBaseline":   baseline,
			"peakWeeklyCount":  peak,
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

// qualifies guards against zero baselines with an absolute event floor so a
// quiet farm's first few treatments do not read as sustained overuse.
func (d *SustainedHighUsage) qualifies(count int, baseline float64) bool {
	if count < d.cfg.MinWeeklyEvents {
		return false
	}
	return float64(count) > baseline*d.cfg.IntensityFactor
}
