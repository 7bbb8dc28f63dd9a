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

// TrendIncrease flags farms whose usage rose strictly month over month
// across three consecutive buckets and whose increase over the span beats
// the configured floor. Buckets are counted independently so a single early
// spike cannot fake a trend.
type TrendIncrease struct {
	store  store.Store
	cfg    config.TrendConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewTrendIncrease(st store.Store, cfg config.TrendConfig, writer *AlertWriter, logger *slog.Logger) *TrendIncrease {
	return &TrendIncrease{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *TrendIncrease) Name() string { return "trend_increase" }

func (d *TrendIncrease) Run(ctx context.Context) (Summary, error) {
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
				d.logger.Warn("trend check failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		sum.merge(res)
	}
	return sum, nil
}

func (d *TrendIncrease) checkFarm(ctx context.Context, farm model.Farm, now time.Time) (Summary, error) {
	sum := Summary{FarmsChecked: 1}
	// months[0] is the oldest bucket, months[2] the most recent.
	var months [3]int
	for i := 0; i < 3; i++ {
		to := now.Add(-time.Duration(2-i) * month)
		from := to.Add(-month)
		count, err := d.store.CountUsageEvents(ctx, farm.ID, model.UsageApproved, from, to)
		if err != nil {
			return Summary{}, err
		}
		months[i] = count
	}

	if !(months[0] < months[1] && months[1] < months[2]) {
		return sum, nil
	}
	if months[0] == 0 {
		// No baseline, percentage change is undefined.
		return sum, nil
	}
	pct := float64(months[2]-months[0]) / float64(months[0]) * 100
	if pct <= d.cfg.MinIncreasePercent {
		return sum, nil
	}

	severity := model.SeverityLow
	if pct >= d.cfg.MinIncreasePercent*2 {
		severity = model.SeverityMedium
	}
	alert := &model.AMUAlert{
		FarmID:    farm.ID,
		AlertType: model.AlertTrendIncrease,
		Severity:  severity,
		Message: fmt.Sprintf("Rising usage trend: %d -> %d -> %d treatments over three months (+%.0f%%)",
			months[0], months[1], months[2], pct),
		Details: map[string]float64{
			"month1":          float64(months[0]),
			"month2":          float64(months[1]),
			"month3":          float64(months[2]),
			"increasePercent": pct,
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
