package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/drugs"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

// CriticalDrugUsage flags farms where WHO Watch/Reserve antimicrobials make
// up too large a share of last month's classified usage. Unclassified drugs
// count toward neither side of the ratio but are reported in the details.
type CriticalDrugUsage struct {
	store  store.Store
	cfg    config.CriticalDrugConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewCriticalDrugUsage(st store.Store, cfg config.CriticalDrugConfig, writer *AlertWriter, logger *slog.Logger) *CriticalDrugUsage {
	return &CriticalDrugUsage{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *CriticalDrugUsage) Name() string { return "critical_drug" }

func (d *CriticalDrugUsage) Run(ctx context.Context) (Summary, error) {
	farms, err := d.store.ListFarms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list farms: %w", err)
	}
	now := d.now().UTC()
	from := now.Add(-month)

	var sum Summary
	for _, farm := range farms {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		res, err := d.checkFarm(ctx, farm, from, now)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("critical drug check failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		sum.merge(res)
	}
	return sum, nil
}

func (d *CriticalDrugUsage) checkFarm(ctx context.Context, farm model.Farm, from, to time.Time) (Summary, error) {
	sum := Summary{FarmsChecked: 1}
	byDrug, err := d.store.CountUsageByDrug(ctx, farm.ID, model.UsageApproved, from, to)
	if err != nil {
		return Summary{}, err
	}
	var access, watch, reserve, unclassified, critical int
	for drug, count := range byDrug {
		class := drugs.Classify(drug)
		switch class {
		case drugs.ClassAccess:
			access += count
		case drugs.ClassWatch:
			watch += count
		case drugs.ClassReserve:
			reserve += count
		default:
			unclassified += count
		}
		if drugs.IsCritical(class) {
			critical += count
		}
	}
	classified := access + watch + reserve
	if classified == 0 {
		return sum, nil
	}
	percent := float64(critical) / float64(classified) * 100
	if percent <= d.cfg.MaxCriticalPercent {
		return sum, nil
	}

	severity := model.SeverityMedium
	if percent >= d.cfg.MaxCriticalPercent*1.5 {
		severity = model.SeverityHigh
	}
	alert := &model.AMUAlert{
		FarmID:    farm.ID,
		AlertType: model.AlertCriticalDrug,
		Severity:  severity,
		Message: fmt.Sprintf("WHO Watch/Reserve drugs are %.0f%% of classified usage (%d of %d), above the %.0f%% limit",
			percent, critical, classified, d.cfg.MaxCriticalPercent),
		Details: map[string]float64{
			"criticalPercent":                float64(percent),
			"criticalCount":                  float64(critical),
			"classifiedCount":                float64(classified),
			"drugClassBreakdown.access":      float64(access),
			"drugClassBreakdown.watch":       float64(watch),
			"drugClassBreakdown.reserve":     float64(reserve),
			"drugClassBreakdown.unclassified": float64(unclassified),
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
